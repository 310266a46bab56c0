package irc

import (
	"strings"
)

// Privmsg is one normalized inbound channel message.
type Privmsg struct {
	Nickname string
	Text     string
}

// textNormalizer folds localized tokens into their canonical command form:
// full-width digits and symbols, plus the Japanese command aliases. Longer
// patterns are listed before their substrings so 強制解散 wins over 解散.
var textNormalizer = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
	"＠", "@",
	"　", " ",
	"の", "no",
	"ぬけ", "nuke",
	"強制解散", "force_breakup",
	"解散", "kaisan",
)

// NormalizeText applies the canonical-form folding and trims whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(textNormalizer.Replace(text))
}

// IsPing reports whether the line is a server keep-alive probe.
func IsPing(line string) bool {
	return strings.HasPrefix(line, "PING")
}

// PingArg extracts the probe token to echo back in the PONG reply.
func PingArg(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// ParsePrivmsg extracts sender and normalized text from a channel PRIVMSG
// line. Anything else (server numerics, other channels, malformed lines)
// yields nil.
func ParsePrivmsg(line, channel string) *Privmsg {
	if !strings.HasPrefix(line, ":") {
		return nil
	}
	sep := " PRIVMSG " + channel + " :"
	user, text, found := strings.Cut(line[1:], sep)
	if !found {
		return nil
	}
	nickname, _, _ := strings.Cut(user, "!")
	if nickname == "" {
		return nil
	}
	return &Privmsg{
		Nickname: nickname,
		Text:     NormalizeText(text),
	}
}

// SplitChunk breaks a received chunk into its complete lines and returns
// the unterminated tail. TCP reads carry no framing: a chunk can hold
// several protocol lines and end mid-line, so the caller keeps the
// remainder and prepends it to the next chunk.
func SplitChunk(chunk string) (lines []string, remainder string) {
	for {
		line, rest, found := strings.Cut(chunk, "\n")
		if !found {
			return lines, chunk
		}
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
		chunk = rest
	}
}
