// Package irc is the line-protocol transport: a single duplex TCP
// connection to the chat server plus the parsing of inbound lines.
package irc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const recvBufSize = 32768

// readGrace bounds a ReceiveChunk that races the peer: PollReadable has
// already seen buffered data, so this deadline should never fire.
const readGrace = 5 * time.Second

var ErrClosed = errors.New("connection closed")

// Conn owns one outbound connection. It is used by a single session cycle
// and never reused after Close.
type Conn struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool
}

func NewConn(addr string) *Conn {
	return &Conn{addr: addr}
}

func (c *Conn) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, recvBufSize)
	return nil
}

// SendLine writes one protocol line, appending the terminator.
func (c *Conn) SendLine(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClosed
	}
	if _, err := c.conn.Write([]byte(text + "\r\n")); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// PollReadable waits up to timeout for inbound data. A timeout is not an
// error; it just means nothing arrived.
func (c *Conn) PollReadable(timeout time.Duration) (bool, error) {
	if c.conn == nil {
		return false, ErrClosed
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	if _, err := c.reader.Peek(1); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("poll: %w", err)
	}
	return true, nil
}

// ReceiveChunk returns whatever is currently available, up to the buffer
// size. The chunk may hold several lines or a partial trailing one; the
// caller splits on line boundaries.
func (c *Conn) ReceiveChunk() (string, error) {
	if c.conn == nil {
		return "", ErrClosed
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(readGrace)); err != nil {
		return "", err
	}
	buf := make([]byte, recvBufSize)
	n, err := c.reader.Read(buf)
	if err != nil {
		return "", fmt.Errorf("receive: %w", err)
	}
	return string(buf[:n]), nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Protocol line constructors. The session supervisor composes the handshake
// and keep-alive traffic from these.

func UserLine(nickname string) string {
	return fmt.Sprintf("USER %s 0 * %s", nickname, nickname)
}

func NickLine(nickname string) string {
	return fmt.Sprintf("NICK %s", nickname)
}

func JoinLine(channel string) string {
	return fmt.Sprintf("JOIN %s", channel)
}

func PongLine(arg string) string {
	return fmt.Sprintf("PONG %s", arg)
}

func QuitLine() string {
	return "QUIT"
}

func PrivmsgLine(channel, text string) string {
	return fmt.Sprintf("PRIVMSG %s :%s", channel, text)
}

func NoticeLine(channel, text string) string {
	return fmt.Sprintf("NOTICE %s :%s", channel, text)
}

// LineSender is the slice of Conn the announcer needs.
type LineSender interface {
	SendLine(text string) error
}

// ChannelAnnouncer sends loud (PRIVMSG) and quiet (NOTICE) announcements to
// one fixed channel. Send failures end the session cycle elsewhere; here
// they are dropped.
type ChannelAnnouncer struct {
	sender  LineSender
	channel string
}

func NewChannelAnnouncer(sender LineSender, channel string) *ChannelAnnouncer {
	return &ChannelAnnouncer{sender: sender, channel: channel}
}

func (a *ChannelAnnouncer) Loud(text string) {
	_ = a.sender.SendLine(PrivmsgLine(a.channel, text))
}

func (a *ChannelAnnouncer) Quiet(text string) {
	_ = a.sender.SendLine(NoticeLine(a.channel, text))
}
