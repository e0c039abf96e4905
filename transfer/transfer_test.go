package transfer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec is a hand-written StatementExecer fake: the teacher's
// gomock-generated doubles aren't reproducible without running mockgen, so
// tests here script responses directly.
type fakeExec struct {
	statements []string
	onExec     func(stmt string) (string, error)
}

func (f *fakeExec) EnterRawMode() error { return nil }
func (f *fakeExec) ExitRawMode() error  { return nil }

func (f *fakeExec) ExecStatement(stmt string) (string, error) {
	f.statements = append(f.statements, stmt)
	if f.onExec == nil {
		return "", nil
	}
	return f.onExec(stmt)
}

func isValidateStatement(stmt string) bool {
	return strings.Contains(stmt, "validate_crc")
}

func TestWriter_Write_Success(t *testing.T) {
	exec := &fakeExec{onExec: func(stmt string) (string, error) {
		if isValidateStatement(stmt) {
			return "1", nil
		}
		return "", nil
	}}

	w := NewWriter(exec, 4)
	var progress []int
	err := w.Write([]byte("0123456789"), "/lib/pkg/a.py", func(p int) { progress = append(progress, p) })

	require.NoError(t, err)
	assert.Equal(t, []int{40, 80, 100}, progress)
	assert.Contains(t, exec.statements[1], "open('/lib/pkg/a.py', 'wb')")
	assert.Equal(t, "f.close()", exec.statements[len(exec.statements)-1])
}

func TestWriter_Write_ShrinksChunkOnCRCMismatch(t *testing.T) {
	calls := 0
	exec := &fakeExec{onExec: func(stmt string) (string, error) {
		if isValidateStatement(stmt) {
			calls++
			if calls == 1 {
				return "0", nil // first chunk at size 4 fails, triggers halving to 2
			}
			return "1", nil
		}
		return "", nil
	}}

	w := NewWriter(exec, 4)
	err := w.Write([]byte("01234567"), "/lib/pkg/a.py", nil)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestWriter_Write_ChunkCorruptionWhenExhausted(t *testing.T) {
	exec := &fakeExec{onExec: func(stmt string) (string, error) {
		if isValidateStatement(stmt) {
			return "0", nil // never validates, forces repeated halving
		}
		return "", nil
	}}

	w := NewWriter(exec, 1)
	err := w.Write([]byte("x"), "/lib/pkg/a.py", nil)

	assert.ErrorAs(t, err, &ChunkCorruption{})
}

func TestWriter_Write_PropagatesExecError(t *testing.T) {
	exec := &fakeExec{onExec: func(stmt string) (string, error) {
		if strings.HasPrefix(stmt, "f = open") {
			return "", assertErr
		}
		return "", nil
	}}

	w := NewWriter(exec, 4)
	err := w.Write([]byte("01234567"), "/lib/pkg/a.py", nil)

	assert.ErrorIs(t, err, assertErr)
}

var assertErr = fakeErr("device offline")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
