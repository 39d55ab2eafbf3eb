// Package console is the line-oriented operator console. The same session
// runs on a local terminal and on Telnet connections.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
)

// Prompt is printed before every command.
const Prompt = "boxcars> "

// LineIO is the transport a Session reads commands from and writes output to.
type LineIO interface {
	ReadLine() (string, error)
	WriteLine(text string) error
	WritePrompt(prompt string) error
}

// Session runs the command loop for one operator.
type Session struct {
	svc    *conductor.Service
	io     LineIO
	style  telnet.Styler
	logger *zap.Logger
}

// NewSession creates a Session. A nil logger discards output.
//
// Precondition: svc and lio must be non-nil.
func NewSession(svc *conductor.Service, lio LineIO, style telnet.Styler, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{svc: svc, io: lio, style: style, logger: logger}
}

// Run greets the operator and executes commands until "quit", end of input or
// ctx cancellation.
//
// Postcondition: Returns nil after "quit" or end of input; otherwise the
// transport or context error.
func (s *Session) Run(ctx context.Context) error {
	if err := s.io.WriteLine(s.style.Paint(telnet.Bold, "Boxcars conductor") + ". Type 'help' for commands."); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.io.WritePrompt(Prompt); err != nil {
			return err
		}
		line, err := s.io.ReadLine()
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		quit, execErr := s.Execute(ctx, line)
		if execErr != nil {
			if writeErr := s.io.WriteLine(s.style.Paint(telnet.Red, "Error: "+execErr.Error())); writeErr != nil {
				return writeErr
			}
		}
		if quit || errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// Execute runs one command line.
//
// Postcondition: quit is true only for the quit command.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	if name == "quit" || name == "exit" {
		return true, s.io.WriteLine("Bye.")
	}
	cmd, ok := commands()[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q, try 'help'", name)
	}
	s.logger.Debug("console command", zap.String("command", name))
	return false, cmd.run(ctx, s, fields[1:])
}

func (s *Session) println(format string, args ...any) error {
	return s.io.WriteLine(fmt.Sprintf(format, args...))
}

// Handler adapts Session to telnet.SessionHandler.
type Handler struct {
	svc    *conductor.Service
	logger *zap.Logger
}

// NewHandler creates a Telnet session handler over svc.
func NewHandler(svc *conductor.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// HandleSession runs a colour console on conn.
func (h *Handler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	logger := h.logger.With(zap.String("remote_addr", conn.RemoteAddr().String()))
	return NewSession(h.svc, conn, telnet.Styler{Enabled: true}, logger).Run(ctx)
}

// StreamIO is a LineIO over a reader and a writer, used for stdin/stdout.
type StreamIO struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	w       io.Writer
}

// NewStreamIO wraps r and w.
func NewStreamIO(r io.Reader, w io.Writer) *StreamIO {
	return &StreamIO{scanner: bufio.NewScanner(r), w: w}
}

// ReadLine returns the next line without its terminator, or io.EOF.
func (s *StreamIO) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimRight(s.scanner.Text(), "\r"), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// WriteLine writes text and a newline.
func (s *StreamIO) WriteLine(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, text)
	return err
}

// WritePrompt writes prompt without a newline.
func (s *StreamIO) WritePrompt(prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.w, prompt)
	return err
}
