package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	statements []string
	untarOut   string
	untarErr   error
}

func (f *fakeExec) EnterRawMode() error { return nil }
func (f *fakeExec) ExitRawMode() error  { return nil }

func (f *fakeExec) ExecStatement(stmt string) (string, error) {
	f.statements = append(f.statements, stmt)
	if strings.HasPrefix(stmt, "untar(") {
		return f.untarOut, f.untarErr
	}
	return "", nil
}

func TestExtract_Success(t *testing.T) {
	exec := &fakeExec{untarOut: "Creating directory /lib/pkg\nExtraction complete"}

	err := Extract(exec, "/pkg.tar.gz", "/lib")

	require.NoError(t, err)
	assert.Contains(t, exec.statements[len(exec.statements)-1], "untar('/pkg.tar.gz', '/lib')")
}

func TestExtract_MissingSentinelFails(t *testing.T) {
	exec := &fakeExec{untarOut: "something else"}

	err := Extract(exec, "/pkg.tar.gz", "/lib")

	var failed ExtractFailed
	assert.ErrorAs(t, err, &failed)
}

func TestExtract_EEXISTBecomesPackageAlreadyInstalled(t *testing.T) {
	exec := &fakeExec{
		untarOut: "Creating directory /lib/pkg\nCreating directory /lib/pkg/sub",
		untarErr: errors.New("OSError: [Errno 17] EEXIST"),
	}

	err := Extract(exec, "/pkg.tar.gz", "/lib")

	var already PackageAlreadyInstalled
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "/lib/pkg/sub", already.Path)
}
