// Package session runs the connection lifecycle: handshake, poll loop,
// keep-alive replies, operator shutdown, and reconnect-with-cooldown.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/config"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/engine"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/irc"
)

// Conn is the transport surface the supervisor needs. *irc.Conn satisfies
// it; tests substitute a fake.
type Conn interface {
	Connect() error
	SendLine(text string) error
	PollReadable(timeout time.Duration) (bool, error)
	ReceiveChunk() (string, error)
	Close() error
}

// Supervisor owns the reconnect policy. Each session cycle gets a fresh
// connection, exclusively; connections are never reused across cycles.
type Supervisor struct {
	cfg    *config.Config
	engine *engine.Engine
	dial   func() Conn

	operator io.Reader
	exit     atomic.Bool
}

func New(cfg *config.Config, eng *engine.Engine, operator io.Reader) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		engine:   eng,
		dial:     func() Conn { return irc.NewConn(cfg.Server) },
		operator: operator,
	}
}

// Run cycles sessions until the operator requests shutdown or ctx is
// canceled. A cycle that dies any other way is restarted after the
// cooldown, indefinitely.
func (s *Supervisor) Run(ctx context.Context) error {
	exitCh := make(chan struct{})
	go s.watchOperator(exitCh)

	for {
		cycleCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-exitCh:
				cancel()
			case <-cycleCtx.Done():
			}
		}()
		s.runCycle(cycleCtx)
		cancel()

		if s.exit.Load() {
			log.Info().Str("module", "session").Msg("operator shutdown")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Info().Str("module", "session").Dur("cooldown", s.cfg.ReconnectCooldown).Msg("session ended, reconnecting after cooldown")
		select {
		case <-time.After(s.cfg.ReconnectCooldown):
		case <-exitCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchOperator blocks on the operator prompt and flips the exit flag on
// the shutdown keyword.
func (s *Supervisor) watchOperator(exitCh chan struct{}) {
	fmt.Println("exitと入力したら終了: ")
	scanner := bufio.NewScanner(s.operator)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "exit" {
			s.exit.Store(true)
			close(exitCh)
			return
		}
	}
}

// runCycle is one handshake-to-disconnect lifetime. The QUIT notification
// and the close run on every exit path, normal or not.
func (s *Supervisor) runCycle(ctx context.Context) {
	conn := s.dial()
	if err := conn.Connect(); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("connect")
		return
	}
	defer func() {
		_ = conn.SendLine(irc.QuitLine())
		_ = conn.Close()
	}()

	if !s.handshake(ctx, conn) {
		return
	}
	s.engine.SetAnnouncer(irc.NewChannelAnnouncer(conn, s.cfg.Channel))
	log.Info().Str("module", "session").Str("server", s.cfg.Server).Str("channel", s.cfg.Channel).Msg("joined, polling")

	// A chunk can end mid-line; the unterminated tail waits here for the
	// next read. Never carried across cycles.
	var remainder string
	for ctx.Err() == nil {
		if s.cfg.RoomTTL > 0 {
			s.engine.ExpireRooms(s.cfg.RoomTTL)
		}
		ready, err := conn.PollReadable(s.cfg.PollInterval)
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("poll")
			return
		}
		if !ready {
			continue
		}
		chunk, err := conn.ReceiveChunk()
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("receive")
			return
		}
		remainder, err = s.handleChunk(ctx, conn, remainder+chunk)
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("dispatch")
			return
		}
	}
}

// handshake registers the identity and joins the channel. The wait for the
// server greeting is bounded; silence aborts the cycle into reconnect.
func (s *Supervisor) handshake(ctx context.Context, conn Conn) bool {
	if err := conn.SendLine(irc.UserLine(s.cfg.Nickname)); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("register user")
		return false
	}
	if err := conn.SendLine(irc.NickLine(s.cfg.Nickname)); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("register nick")
		return false
	}
	ready, err := conn.PollReadable(s.cfg.HandshakeTimeout)
	if err != nil || !ready {
		log.Error().Err(err).Str("module", "session").Msg("handshake timeout")
		return false
	}
	if _, err := conn.ReceiveChunk(); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("handshake greeting")
		return false
	}
	select {
	case <-time.After(s.cfg.SettleDelay):
	case <-ctx.Done():
		return false
	}
	if err := conn.SendLine(irc.JoinLine(s.cfg.Channel)); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("join channel")
		return false
	}
	return true
}

// handleChunk answers keep-alives and dispatches the chunk's complete
// lines, returning the unterminated tail. A panic out of dispatch must not
// kill the process; it ends the cycle and the reconnect policy takes over.
func (s *Supervisor) handleChunk(ctx context.Context, conn Conn, chunk string) (remainder string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "session").Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from dispatch panic")
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()
	var lines []string
	lines, remainder = irc.SplitChunk(chunk)
	for _, line := range lines {
		if irc.IsPing(line) {
			if err := conn.SendLine(irc.PongLine(irc.PingArg(line))); err != nil {
				return remainder, err
			}
			continue
		}
		msg := irc.ParsePrivmsg(line, s.cfg.Channel)
		if msg == nil {
			continue
		}
		s.engine.Dispatch(ctx, msg)
	}
	return remainder, nil
}
