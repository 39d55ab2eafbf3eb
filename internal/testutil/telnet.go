package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
)

// ConsoleClient drives the Telnet operator console in integration tests.
type ConsoleClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewConsoleClient dials addr and returns a client.
//
// Precondition: addr must be a valid "host:port" string with a listening console.
// Postcondition: Returns a connected ConsoleClient or fails the test.
func NewConsoleClient(t *testing.T, addr string) *ConsoleClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("console client connected to %s [%s]", addr, time.Since(start))
	return &ConsoleClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// ReadUntil reads until substr appears in the output, with Telnet negotiation
// bytes and ANSI styling removed. It returns the accumulated text.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns output containing substr, or fails on timeout.
func (c *ConsoleClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var raw []byte
	tmp := make([]byte, 1024)
	for {
		n, err := c.reader.Read(tmp)
		if n > 0 {
			raw = append(raw, tmp[:n]...)
			text := telnet.StripANSI(string(telnet.FilterIAC(raw)))
			if strings.Contains(text, substr) {
				return text
			}
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, raw, err)
		}
	}
}

// Send writes a line of text, appending \r\n.
//
// Postcondition: text + \r\n is written to the connection.
func (c *ConsoleClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Command sends text and reads until want appears.
func (c *ConsoleClient) Command(text, want string) string {
	c.t.Helper()
	c.Send(text)
	return c.ReadUntil(want, 5*time.Second)
}

// Close closes the underlying connection.
func (c *ConsoleClient) Close() {
	c.conn.Close()
}
