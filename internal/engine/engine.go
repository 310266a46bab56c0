// Package engine interprets normalized channel messages as room commands
// and drives the room state machine.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/domain"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/irc"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/store"
)

// Announcer is the outbound side of the engine. Loud draws the channel's
// attention (PRIVMSG, bell for those who set one); Quiet does not (NOTICE).
type Announcer interface {
	Loud(text string)
	Quiet(text string)
}

// IRC bold + color markers for join/part lines.
const (
	inMark  = "\x02\x0312,00[IN]\x03\x02"
	outMark = "\x02\x0306,00[OUT]\x03\x02"
)

func inout(mark, nickname string) string {
	return mark + " " + nickname
}

// rule is one entry of the dispatch table. Rules are evaluated
// non-exclusively, in table order, against the same message: matching is
// independent per rule, and every matching rule runs.
type rule struct {
	token string
	match func(text string) bool
	run   func(ctx context.Context, msg *irc.Privmsg)
}

// Engine owns the dispatch table, the identity alias map and the pacing of
// multi-line output. All state mutation happens on the session task; the
// engine itself is not safe for concurrent dispatch.
type Engine struct {
	store    *store.Store
	ann      Announcer
	aliases  map[string]string
	pacing   time.Duration
	onChange func()
	rules    []rule
}

type Option func(*Engine)

// WithPacing sets the delay between the lines of rooms/rbhelp output, which
// throttles outbound bursts the transport cannot absorb.
func WithPacing(d time.Duration) Option {
	return func(e *Engine) { e.pacing = d }
}

// WithOnChange registers a hook invoked after every persisted mutation.
func WithOnChange(fn func()) Option {
	return func(e *Engine) { e.onChange = fn }
}

func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		aliases: make(map[string]string),
		pacing:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = []rule{
		{"mkroom@", prefix("mkroom@"), e.create},
		{"kaisan", equals("kaisan"), func(ctx context.Context, m *irc.Privmsg) { e.disband(m, true) }},
		{"ggwp", equals("ggwp"), func(ctx context.Context, m *irc.Privmsg) { e.disband(m, false) }},
		{"chcap@", prefix("chcap@"), e.changeCapacity},
		{"chrn@", prefix("chrn@"), e.renameRoom},
		{"chhost@", prefix("chhost@"), e.transferHost},
		{"yyk@", prefix("yyk@"), e.reserveJoin},
		{"kick@", prefix("kick@"), func(ctx context.Context, m *irc.Privmsg) { e.kickOrCancel(m, true) }},
		{"cancel@", prefix("cancel@"), func(ctx context.Context, m *irc.Privmsg) { e.kickOrCancel(m, false) }},
		{"no", matchJoin, e.join},
		{"nuke", equals("nuke"), e.leave},
		{"rooms", equals("rooms"), e.listRooms},
		{"force_breakup@", prefix("force_breakup@"), e.forceDisband},
		{"rbhelp", equals("rbhelp"), e.showHelp},
	}
	return e
}

// SetAnnouncer binds the outbound side for the current session cycle.
func (e *Engine) SetAnnouncer(a Announcer) {
	e.ann = a
}

func prefix(token string) func(string) bool {
	return func(text string) bool { return strings.HasPrefix(text, token) }
}

func equals(token string) func(string) bool {
	return func(text string) bool { return text == token }
}

// matchJoin accepts the bare join token or join-with-room-number, and
// nothing else that happens to start with "no".
func matchJoin(text string) bool {
	if text == "no" {
		return true
	}
	arg, found := strings.CutPrefix(text, "no@")
	if !found {
		return false
	}
	n, err := strconv.Atoi(arg)
	if err != nil || strconv.Itoa(n) != arg {
		return false
	}
	return n >= 1 && n < domain.MaxRoomNumber
}

// Dispatch runs one message through the table. Alias declaration is
// resolved first, then the acting identity is rewritten through the alias
// map, then every matching rule fires in table order.
func (e *Engine) Dispatch(ctx context.Context, msg *irc.Privmsg) {
	if strings.HasPrefix(msg.Text, "iam@") {
		e.declareAlias(msg)
	}
	if truename, ok := e.aliases[msg.Nickname]; ok {
		msg = &irc.Privmsg{Nickname: truename, Text: msg.Text}
	}
	for _, r := range e.rules {
		if r.match(msg.Text) {
			r.run(ctx, msg)
		}
	}
	log.Debug().Str("module", "engine").Str("nickname", msg.Nickname).Str("text", msg.Text).Msg("dispatched")
}

// arg returns the inline argument after the first @.
func arg(text string) string {
	_, after, _ := strings.Cut(text, "@")
	return after
}

// printRoom announces one room's state: number, name, ordered member list,
// remaining seats, and a contextual comment.
func (e *Engine) printRoom(room *domain.Room, loud bool, comment string) {
	members, _ := json.Marshal(room.Members)
	s := fmt.Sprintf("[%d] %s %s @%d %s", room.Number, room.Name, members, room.Remaining(), comment)
	e.store.Touch(room, time.Now())
	if loud {
		e.ann.Loud(s)
	} else {
		e.ann.Quiet(s)
	}
}

// persist saves the snapshot and notifies observers. Called after every
// successful mutating command.
func (e *Engine) persist() {
	e.store.Save()
	if e.onChange != nil {
		e.onChange()
	}
}

func (e *Engine) create(ctx context.Context, msg *irc.Privmsg) {
	if room := e.store.FindByMember(msg.Nickname); room != nil {
		e.printRoom(room, false, "入室済み")
		return
	}
	room := domain.NewRoom(msg.Nickname, arg(msg.Text))
	e.store.Add(room)
	e.printRoom(room, false, inout(inMark, msg.Nickname))
	e.persist()
}

func (e *Engine) disband(msg *irc.Privmsg, loud bool) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストでない方は強制解散を使ってください")
		return
	}
	comment := "解散。お疲れさまでした"
	if loud {
		comment = "ホストに解散されました"
	}
	e.printRoom(room, loud, comment)
	e.store.Remove(room)
	e.persist()
}

func (e *Engine) forceDisband(ctx context.Context, msg *irc.Privmsg) {
	number, err := strconv.Atoi(arg(msg.Text))
	if err != nil {
		e.ann.Quiet("部屋番号の指定が誤っています")
		return
	}
	room := e.store.FindByNumber(number)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	e.store.Remove(room)
	e.persist()
	e.printRoom(room, true, "強制解散しました")
}

// ExpireRooms force-disbands rooms older than ttl. Driven by the session
// supervisor between polls.
func (e *Engine) ExpireRooms(ttl time.Duration) {
	expired := e.store.Expired(ttl, time.Now())
	for _, room := range expired {
		// Announce before removing so the number shown is the live one,
		// the same order disband uses.
		e.printRoom(room, true, "時間切れのため自動解散しました")
		e.store.Remove(room)
	}
	if len(expired) > 0 {
		e.persist()
	}
}

func (e *Engine) changeCapacity(ctx context.Context, msg *irc.Privmsg) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストだけが定員を変更できます")
		return
	}
	capacity, err := strconv.Atoi(arg(msg.Text))
	if err != nil {
		e.ann.Quiet("定員の指定が誤っています")
		return
	}
	before := room.Capacity
	e.store.Update(room, func(r *domain.Room) { err = r.SetCapacity(capacity) })
	switch {
	case errors.Is(err, domain.ErrCapacityBounds):
		e.ann.Quiet("定員の指定が誤っています。2～8の数字を入力してください")
		return
	case errors.Is(err, domain.ErrCapacityTooLow):
		e.ann.Quiet("入室済み人数よりも定員を少なく設定することはできません")
		return
	}
	e.persist()
	e.printRoom(room, false, fmt.Sprintf("%dから%dに定員を変更しました", before, capacity))
}

func (e *Engine) renameRoom(ctx context.Context, msg *irc.Privmsg) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストだけが部屋名を変更できます")
		return
	}
	before := room.Name
	after := arg(msg.Text)
	e.store.Update(room, func(r *domain.Room) { r.Name = after })
	e.persist()
	e.printRoom(room, false, fmt.Sprintf("%s から %s に部屋名を変更しました", before, after))
}

func (e *Engine) transferHost(ctx context.Context, msg *irc.Privmsg) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストだけがホスト交代を実行できます")
		return
	}
	before := room.Host
	after := arg(msg.Text)
	var err error
	e.store.Update(room, func(r *domain.Room) { err = r.SetHost(after) })
	if err != nil {
		e.ann.Quiet("部屋にいない人とはホスト交代できません")
		return
	}
	e.persist()
	e.printRoom(room, false, fmt.Sprintf("%sさんから%sさんにホスト交代しました", before, after))
}

// reserveJoin lets the host seat someone who is not on IRC ("proxy join").
func (e *Engine) reserveJoin(ctx context.Context, msg *irc.Privmsg) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません。ホストになれば使用できます")
		return
	}
	if room.Full() {
		e.ann.Quiet("満員です")
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストだけが予約を実行できます")
		return
	}
	e.joinValidated(room, arg(msg.Text))
}

func (e *Engine) kickOrCancel(msg *irc.Privmsg, isKick bool) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if room.Host != msg.Nickname {
		e.ann.Quiet("ホストだけがキックを実行できます")
		return
	}
	target := arg(msg.Text)
	var err error
	e.store.Update(room, func(r *domain.Room) { err = r.RemoveMember(target) })
	switch {
	case errors.Is(err, domain.ErrCannotKickHost):
		e.ann.Quiet("ホストをキックすることはできません")
		return
	case errors.Is(err, domain.ErrNotMember):
		e.ann.Quiet("対象が見つかりません")
		return
	}
	e.persist()
	verb := "キャンセル"
	if isKick {
		verb = "キック"
	}
	e.printRoom(room, false, inout(outMark, target)+fmt.Sprintf(" ホストにより%sされました", verb))
}

// joinValidated is the shared join transition: capacity check, uniqueness
// check, append, persist, and the extra loud broadcast on exactly filling
// the room.
func (e *Engine) joinValidated(room *domain.Room, nickname string) {
	if room.Full() {
		e.printRoom(room, false, "満員で入れません")
		return
	}
	if current := e.store.FindByMember(nickname); current != nil {
		if current == room {
			e.printRoom(room, false, "入室済み")
		} else {
			e.ann.Quiet("別の部屋に入室済みです")
		}
		return
	}
	var err error
	e.store.Update(room, func(r *domain.Room) { err = r.Join(nickname) })
	if err != nil {
		e.printRoom(room, false, "入室済み")
		return
	}
	e.persist()
	loud := room.Full()
	if loud {
		e.ann.Loud("埋まり。まもなく開始です。ホストの方はチーム分けをお願いします。GL")
	}
	e.printRoom(room, loud, inout(inMark, nickname))
}

func (e *Engine) join(ctx context.Context, msg *irc.Privmsg) {
	if e.store.Len() == 0 {
		e.ann.Quiet("現在、部屋はありません")
		return
	}
	if !strings.Contains(msg.Text, "@") {
		open := e.store.Open()
		switch {
		case len(open) == 0:
			e.ann.Quiet("現在、部屋はありません")
		case len(open) == 1:
			room := open[0]
			if room.HasMember(msg.Nickname) {
				e.printRoom(room, false, "入室済み")
				return
			}
			e.joinValidated(room, msg.Nickname)
		default:
			e.ann.Quiet("入れる部屋が複数あるので@で区切って部屋番号を指定してください。の＠部屋番号")
		}
		return
	}
	number, err := strconv.Atoi(arg(msg.Text))
	if err != nil {
		e.ann.Quiet("部屋番号の指定が誤っています")
		return
	}
	target := e.store.FindByNumber(number)
	if target == nil {
		e.ann.Quiet("対象の部屋が見つかりません")
		return
	}
	if current := e.store.FindByMember(msg.Nickname); current != nil {
		if current == target {
			e.printRoom(current, false, "入室済み")
			return
		}
		if target.Full() {
			e.printRoom(target, false, "満員で入れません")
			return
		}
		// Moving rooms: the leave transition runs first and disbands the
		// old room if the mover hosted it.
		e.leave(ctx, msg)
	}
	e.joinValidated(target, msg.Nickname)
}

func (e *Engine) leave(ctx context.Context, msg *irc.Privmsg) {
	room := e.store.FindByMember(msg.Nickname)
	if room == nil {
		e.ann.Quiet("あなたは部屋に入っていません")
		return
	}
	if room.Host == msg.Nickname {
		e.disband(msg, true)
		return
	}
	var err error
	e.store.Update(room, func(r *domain.Room) { err = r.RemoveMember(msg.Nickname) })
	if err != nil {
		return
	}
	e.persist()
	e.printRoom(room, false, inout(outMark, msg.Nickname))
}

func (e *Engine) listRooms(ctx context.Context, msg *irc.Privmsg) {
	rooms := e.store.All()
	if len(rooms) == 0 {
		e.ann.Quiet("現在、部屋はありません")
		return
	}
	for _, room := range rooms {
		e.printRoom(room, false, "")
		if !e.pace(ctx) {
			return
		}
	}
}

func (e *Engine) declareAlias(msg *irc.Privmsg) {
	truename := arg(msg.Text)
	e.aliases[msg.Nickname] = truename
	e.ann.Quiet(fmt.Sprintf("%sさんは%sさんなんだね", truename, msg.Nickname))
}

func (e *Engine) showHelp(ctx context.Context, msg *irc.Privmsg) {
	for _, line := range strings.Split(Usage, "\n") {
		e.ann.Quiet(line)
		if !e.pace(ctx) {
			return
		}
	}
}

// pace sleeps the fixed per-line delay, observing cancellation between
// lines so a dying session cycle does not finish a long listing.
func (e *Engine) pace(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(e.pacing):
		return true
	}
}
