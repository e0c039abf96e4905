package board

import (
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeSession wires a Session to one end of an in-memory pipe and hands
// the test the other end to play the board's part.
func newFakeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, board := net.Pipe()
	t.Cleanup(func() { client.Close(); board.Close() })
	return NewSession(client, afero.NewMemMapFs(), 512), board
}

// readUntilCtrlD drains board until it sees the 0x04 terminator ExecStatement
// appends to every raw-mode statement, returning everything read before it.
func readUntilCtrlD(t *testing.T, board net.Conn) string {
	t.Helper()
	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := board.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			continue
		}
		if buf[0] == ctrlD {
			return string(out)
		}
		out = append(out, buf[0])
	}
}

func TestSession_ExecStatement_Success(t *testing.T) {
	session, fakeBoard := newFakeSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readUntilCtrlD(t, fakeBoard)
		_, err := fakeBoard.Write([]byte("OKhello\r\n\x04\x04>"))
		require.NoError(t, err)
	}()

	out, err := session.ExecStatement("print('hello')")
	<-done

	assert.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestSession_ExecStatement_StderrBecomesProtocolError(t *testing.T) {
	session, fakeBoard := newFakeSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readUntilCtrlD(t, fakeBoard)
		_, err := fakeBoard.Write([]byte("OK\x04Traceback (most recent call last)\x04>"))
		require.NoError(t, err)
	}()

	out, err := session.ExecStatement("1/0")
	<-done

	assert.Equal(t, "", out)
	assert.ErrorContains(t, err, "Traceback")
}

func TestSession_EnterExitRawMode(t *testing.T) {
	session, fakeBoard := newFakeSession(t)

	go func() {
		buf := make([]byte, 1)
		fakeBoard.Read(buf)
		fakeBoard.Write([]byte("raw REPL; CTRL-B to exit\r\n>"))
		fakeBoard.Read(buf) // drain the Ctrl-B exit byte
	}()

	assert.NoError(t, session.EnterRawMode())
	assert.NoError(t, session.ExitRawMode())
}

func TestSession_WaitForPrompt_Timeout(t *testing.T) {
	session, fakeBoard := newFakeSession(t)
	go func() {
		buf := make([]byte, 2)
		fakeBoard.Read(buf) // swallow the double Ctrl-C, never reply
	}()

	err := session.WaitForPrompt(20 * time.Millisecond)
	assert.ErrorAs(t, err, &PromptTimeout{})
}

func TestSession_RemoveFile_QuotesPath(t *testing.T) {
	session, fakeBoard := newFakeSession(t)

	done := make(chan struct{})
	var statement string
	go func() {
		defer close(done)
		statement = readUntilCtrlD(t, fakeBoard)
		fakeBoard.Write([]byte("OK\x04\x04>"))
	}()

	err := session.RemoveFile("/lib/pkg/it's.py")
	<-done

	assert.NoError(t, err)
	assert.Contains(t, statement, `os.remove('/lib/pkg/it\'s.py')`)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, Quote("plain"))
	assert.Equal(t, `'it\'s'`, Quote("it's"))
	assert.Equal(t, `'back\\slash'`, Quote(`back\slash`))
}
