// Package board provides a thin façade over an interactive MicroPython
// interpreter session reached over a duplex byte channel, plus the board
// inspection queries layered on top of it. The physical serial framing is
// treated as already solved: Channel is satisfied by any connected duplex
// stream, real or in-memory.
package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/arduino/mip-installer/transfer"
)

// DefaultPromptTimeout is the default window spec.md §5 gives
// WaitForPrompt before it fails with PromptTimeout.
const DefaultPromptTimeout = 3 * time.Second

// PromptTimeout is returned when no interpreter prompt appears within the
// configured window.
type PromptTimeout struct {
	Timeout time.Duration
}

func (e PromptTimeout) Error() string {
	return fmt.Sprintf("no interpreter prompt within %s", e.Timeout)
}

// Channel is the opaque duplex byte stream underneath a Session: physical
// serial framing and prompt handshaking below this interface are out of
// scope (spec.md §1).
type Channel interface {
	io.Reader
	io.Writer
	io.Closer
}

// Session is the board session façade (spec.md C6): acquire prompt, switch
// to raw execution mode, execute a statement, run a file, put and remove
// files, close. It has no operation for reading a file back from the board.
type Session struct {
	ch        Channel
	r         *bufio.Reader
	fs        afero.Fs
	chunkSize int
}

// NewSession wraps an already-open Channel. Opening/closing the physical
// port (C15) is the caller's concern; Session only speaks the interpreter
// protocol over it. fs resolves host-side paths passed to ExecFile/PutFile.
func NewSession(ch Channel, fs afero.Fs, chunkSize int) *Session {
	return &Session{ch: ch, r: bufio.NewReader(ch), fs: fs, chunkSize: chunkSize}
}

// IsOpen reports whether the underlying channel is still usable. A Session
// never re-opens itself; once closed it must be discarded.
func (s *Session) IsOpen() bool {
	return s.ch != nil
}

// Close closes the underlying channel. Safe to call multiple times.
func (s *Session) Close() error {
	if s.ch == nil {
		return nil
	}
	err := s.ch.Close()
	s.ch = nil
	return err
}

// WaitForPrompt interrupts any running program and waits up to timeout for
// the interpreter's ">" prompt.
func (s *Session) WaitForPrompt(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}

	if _, err := s.ch.Write([]byte{ctrlC, ctrlC}); err != nil {
		return err
	}

	found := make(chan error, 1)
	go func() {
		for {
			b, err := s.r.ReadByte()
			if err != nil {
				found <- err
				return
			}
			if b == '>' {
				found <- nil
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case err := <-found:
		return err
	case <-ctx.Done():
		return PromptTimeout{Timeout: timeout}
	}
}

// EnterRawMode switches the interpreter into raw execution mode.
func (s *Session) EnterRawMode() error {
	if _, err := s.ch.Write([]byte{ctrlA}); err != nil {
		return err
	}
	_, err := s.r.ReadBytes('>')
	return err
}

// ExitRawMode returns the interpreter to its friendly REPL.
func (s *Session) ExitRawMode() error {
	_, err := s.ch.Write([]byte{ctrlB})
	return err
}

// ExecStatement sends text as a single raw-mode statement and returns its
// stdout, with stderr surfaced as a ProtocolError-wrapped error when
// non-empty.
func (s *Session) ExecStatement(text string) (string, error) {
	if _, err := s.ch.Write(append([]byte(text), ctrlD)); err != nil {
		return "", err
	}

	reply, err := readRawReply(s.r)
	if err != nil {
		return "", err
	}
	if reply.Stderr != "" {
		return reply.Stdout, fmt.Errorf("%w: %s", ProtocolError{Raw: reply.Stderr}, reply.Stderr)
	}
	return reply.Stdout, nil
}

// ExecFile reads hostPath and runs its contents as a single raw-mode
// statement, the way `mpremote run` streams a script body directly rather
// than staging it on the board first.
func (s *Session) ExecFile(hostPath string) (string, error) {
	content, err := afero.ReadFile(s.fs, hostPath)
	if err != nil {
		return "", err
	}
	return s.ExecStatement(string(content))
}

// RemoveFile deletes devicePath on the board via os.remove, quoting it the
// way every statement-composing helper in this package does (spec.md §9
// open question on consistent quoting).
func (s *Session) RemoveFile(devicePath string) error {
	_, err := s.ExecStatement(fmt.Sprintf("import os\nos.remove(%s)", Quote(devicePath)))
	return err
}

// PutFile uploads hostPath to devicePath using the chunked, CRC-verified
// writer (spec.md C8), reporting percentage progress via onProgress.
func (s *Session) PutFile(hostPath string, devicePath string, onProgress func(int)) error {
	data, err := afero.ReadFile(s.fs, hostPath)
	if err != nil {
		return err
	}

	chunkSize := s.chunkSize
	if chunkSize <= 0 {
		chunkSize = transfer.DefaultChunkSize
	}

	w := transfer.NewWriter(s, chunkSize)
	return w.Write(data, devicePath, onProgress)
}

// Quote renders a Go string as a MicroPython single-quoted string literal,
// escaping backslashes, single quotes, newlines and carriage returns so that
// values composed into on-device statements (archive names, device paths)
// cannot break out of the literal (spec.md §9 open question).
func Quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for _, b := range []byte(s) {
		switch b {
		case '\\', '\'':
			out = append(out, '\\', b)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, b)
		}
	}
	out = append(out, '\'')
	return string(out)
}
