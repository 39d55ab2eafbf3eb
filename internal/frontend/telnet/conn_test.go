package telnet

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, time.Second, time.Second), client
}

func TestConn_ReadLineFiltersIACAndControls(t *testing.T) {
	conn, client := pipeConn(t)
	go func() {
		_, _ = client.Write([]byte{IAC, DO, OptSuppressGoAhead, 'r', 'o', 0x07, 'l', 'l', ' ', '1', '\r', '\n'})
		_, _ = client.Write([]byte("stats\r\x00"))
		_, _ = client.Write([]byte("quit\n"))
	}()

	for _, want := range []string{"roll 1", "stats", "quit"} {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestConn_WriteLineNormalizesNewlines(t *testing.T) {
	conn, client := pipeConn(t)
	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		done <- string(buf[:n])
	}()
	require.NoError(t, conn.WriteLine("a,b\nc,d"))
	assert.Equal(t, "a,b\r\nc,d\r\n", <-done)
}

func TestNormalizeNewlines(t *testing.T) {
	assert.Equal(t, "x\r\ny\r\nz", NormalizeNewlines("x\ny\r\nz"))
	assert.Equal(t, "plain", NormalizeNewlines("plain"))
}

// Property: every LF in normalized output is preceded by CR.
func TestPropertyNormalizeNewlines(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-z\n\r]{0,40}`).Draw(t, "text")
		out := NormalizeNewlines(text)
		for i := strings.IndexByte(out, '\n'); i >= 0; {
			assert.True(t, i > 0 && out[i-1] == '\r')
			next := strings.IndexByte(out[i+1:], '\n')
			if next < 0 {
				break
			}
			i += next + 1
		}
	})
}

func TestFilterIAC_NoIAC(t *testing.T) {
	input := []byte("hello world")
	result := FilterIAC(input)
	assert.Equal(t, input, result)
}

func TestFilterIAC_WillCommand(t *testing.T) {
	input := []byte{IAC, WILL, OptEcho, 'h', 'i'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("hi"), result)
}

func TestFilterIAC_WontCommand(t *testing.T) {
	input := []byte{IAC, WONT, OptSuppressGoAhead, 'o', 'k'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("ok"), result)
}

func TestFilterIAC_DoCommand(t *testing.T) {
	input := []byte{'a', IAC, DO, OptLinemode, 'b'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("ab"), result)
}

func TestFilterIAC_DontCommand(t *testing.T) {
	input := []byte{IAC, DONT, OptEcho}
	result := FilterIAC(input)
	assert.Empty(t, result)
}

func TestFilterIAC_SubNegotiation(t *testing.T) {
	input := []byte{IAC, SB, 24, 0, 'x', 't', 'e', 'r', 'm', IAC, SE, 'z'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("z"), result)
}

func TestFilterIAC_TruncatedCommands(t *testing.T) {
	assert.Equal(t, []byte("ok"), FilterIAC([]byte{'o', 'k', IAC, SB, 24, 0, 'x'}))
	assert.Equal(t, []byte("ok"), FilterIAC([]byte{'o', 'k', IAC, WILL}))
	assert.Equal(t, []byte{'o', 'k', IAC}, FilterIAC([]byte{'o', 'k', IAC}))
}

func TestConn_ReadLineSkipsSubNegotiation(t *testing.T) {
	conn, client := pipeConn(t)
	go func() {
		_, _ = client.Write([]byte{IAC, SB, 24, 0, 'v', 't', IAC, SE, 'c', 's', 'v', '\r', '\n'})
	}()
	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "csv", line)
}

func TestFilterIAC_EscapedIAC(t *testing.T) {
	input := []byte{'a', IAC, IAC, 'b'}
	result := FilterIAC(input)
	assert.Equal(t, []byte{byte('a'), IAC, byte('b')}, result)
}

func TestFilterIAC_NOP(t *testing.T) {
	input := []byte{'x', IAC, NOP, 'y'}
	result := FilterIAC(input)
	assert.Equal(t, []byte("xy"), result)
}

func TestFilterIAC_MultipleCommands(t *testing.T) {
	input := []byte{
		IAC, WILL, OptSuppressGoAhead,
		IAC, WILL, OptEcho,
		'h', 'e', 'l', 'l', 'o',
	}
	result := FilterIAC(input)
	assert.Equal(t, []byte("hello"), result)
}

// Property: FilterIAC on input without any IAC bytes returns the input unchanged.
func TestPropertyFilterIAC_NoIACBytesPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Generate bytes that don't contain IAC (0xFF)
		length := rapid.IntRange(0, 200).Draw(t, "length")
		input := make([]byte, length)
		for i := range input {
			input[i] = byte(rapid.IntRange(0, 254).Draw(t, "byte"))
		}
		result := FilterIAC(input)
		assert.Equal(t, input, result, "input without IAC bytes should pass through unchanged")
	})
}

func TestFilterIAC_EscapedIACBeforeText(t *testing.T) {
	assert.Equal(t, []byte{IAC, 'x'}, FilterIAC([]byte{IAC, IAC, 'x'}))
	assert.Equal(t, []byte{IAC, ']'}, FilterIAC([]byte{IAC, IAC, ']'}))
}

// Property: text mixed with escaped IACs and option negotiations filters to
// the text with each escaped pair collapsed to one 0xFF.
func TestPropertyFilterIAC_KeepsTextAndEscapedIAC(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(t, "tokens")
		var input, want []byte
		for range n {
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				b := byte(rapid.IntRange(0, 254).Draw(t, "byte"))
				input = append(input, b)
				want = append(want, b)
			case 1:
				input = append(input, IAC, IAC)
				want = append(want, IAC)
			default:
				cmd := rapid.SampledFrom([]byte{WILL, WONT, DO, DONT}).Draw(t, "cmd")
				opt := byte(rapid.IntRange(0, 254).Draw(t, "option"))
				input = append(input, IAC, cmd, opt)
			}
		}
		got := FilterIAC(input)
		if len(want) == 0 {
			assert.Empty(t, got)
			return
		}
		assert.Equal(t, want, got)
	})
}

// Property: FilterIAC output length is always <= input length.
func TestPropertyFilterIAC_OutputNeverLongerThanInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(0, 200).Draw(t, "length")
		input := make([]byte, length)
		for i := range input {
			input[i] = byte(rapid.IntRange(0, 255).Draw(t, "byte"))
		}
		result := FilterIAC(input)
		assert.LessOrEqual(t, len(result), len(input),
			"filtered output should never be longer than input")
	})
}
