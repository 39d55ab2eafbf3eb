package telnet

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"
)

// Telnet command bytes (RFC 854) the console understands.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	GA   byte = 249
	NOP  byte = 241
	SE   byte = 240
)

// Telnet options referenced during negotiation.
const (
	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
	OptLinemode        byte = 34
)

// Conn is one operator's console connection. Reads yield command lines with
// Telnet commands and control bytes removed; writes are serialized so roll
// prompts and command output never interleave.
type Conn struct {
	raw net.Conn
	in  *bufio.Reader

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewConn wraps raw. A zero readTimeout lets an operator idle forever.
//
// Precondition: raw must be open.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		in:           bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate offers to suppress go-ahead. Echo and line editing stay with the
// client; the console reads whole lines.
func (c *Conn) Negotiate() error {
	return c.send([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine returns the next command line without its terminator. CR LF, CR
// NUL, bare CR and bare LF all end a line.
//
// Postcondition: On error the partial line read so far is returned with it.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line strings.Builder
	for {
		b, err := c.in.ReadByte()
		if err != nil {
			return line.String(), err
		}
		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return line.String(), err
			}
		case b == '\n':
			return line.String(), nil
		case b == '\r':
			if next, err := c.in.Peek(1); err == nil && (next[0] == '\n' || next[0] == 0) {
				_, _ = c.in.ReadByte()
			}
			return line.String(), nil
		case b >= ' ' || b == '\t':
			line.WriteByte(b)
		}
	}
}

// skipCommand consumes the rest of a command whose IAC was just read.
func (c *Conn) skipCommand() error {
	cmd, err := c.in.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err = c.in.ReadByte()
		return err
	case SB:
		var prev byte
		for {
			b, err := c.in.ReadByte()
			if err != nil {
				return err
			}
			if prev == IAC && b == SE {
				return nil
			}
			prev = b
		}
	}
	return nil
}

// WriteLine sends text and a CR LF. Embedded newlines become CR LF so
// multi-line output such as CSV renders on every client.
func (c *Conn) WriteLine(text string) error {
	return c.send([]byte(NormalizeNewlines(text) + "\r\n"))
}

// WritePrompt sends prompt with no line ending so the operator types after it.
func (c *Conn) WritePrompt(prompt string) error {
	return c.send([]byte(prompt))
}

func (c *Conn) send(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(p)
	return err
}

// NormalizeNewlines rewrites bare \n line breaks to \r\n.
//
// Postcondition: Every \n in the result is preceded by \r.
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", "\r\n")
}

// Close closes the connection, unblocking a pending ReadLine.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr is the operator's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// FilterIAC strips Telnet commands from raw server output, collapsing an
// escaped IAC IAC to one 0xFF. Console test clients read through it.
func FilterIAC(input []byte) []byte {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); {
		if input[i] != IAC || i+1 == len(input) {
			out = append(out, input[i])
			i++
			continue
		}
		n, escaped := commandLen(input[i:])
		if escaped {
			out = append(out, IAC)
		}
		i += n
	}
	return out
}

// commandLen measures the command at the head of b, which starts with IAC.
// A truncated command runs to the end of b.
func commandLen(b []byte) (n int, escaped bool) {
	switch b[1] {
	case IAC:
		return 2, true
	case WILL, WONT, DO, DONT:
		return min(3, len(b)), false
	case SB:
		for j := 2; j+1 < len(b); j++ {
			if b[j] == IAC && b[j+1] == SE {
				return j + 2, false
			}
		}
		return len(b), false
	}
	return 2, false
}
