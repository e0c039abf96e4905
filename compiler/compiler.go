// Package compiler adapts the external mpy-cross bytecode compiler binary:
// locating it, reading its format version, and invoking it on a source
// file. The binary itself is treated as an opaque subprocess.
package compiler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CompileFailed wraps a failed invocation of the compiler binary.
type CompileFailed struct {
	Path string
	Err  error
}

func (e CompileFailed) Error() string {
	return fmt.Sprintf("compiling %s failed: %v", e.Path, e.Err)
}

func (e CompileFailed) Unwrap() error { return e.Err }

var formatPattern = regexp.MustCompile(`mpy-cross emitting mpy v(\d+)`)

// Adapter locates and drives the mpy-cross binary.
type Adapter struct {
	// BinaryPath is the well-known path to the compiler, resolved relative
	// to the installed tool. Empty means the compiler is unavailable and
	// the pipeline should degrade to shipping raw source.
	BinaryPath string
}

// Locate resolves the platform-specific compiler binary path relative to
// toolDir (the directory the installer tool itself lives in), returning a
// nil *Adapter if no such binary exists.
func Locate(toolDir string) *Adapter {
	name := "mpy-cross"
	if os.PathSeparator == '\\' {
		name = "mpy-cross.exe"
	}

	path := filepath.Join(toolDir, "mpy-cross", name)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return &Adapter{BinaryPath: path}
}

// ReadCompilerFormat runs the binary with its version flag and extracts the
// major mpy format version it emits.
func (a *Adapter) ReadCompilerFormat() (int, error) {
	out, err := exec.Command(a.BinaryPath, "--version").CombinedOutput()
	if err != nil {
		return 0, CompileFailed{Path: a.BinaryPath, Err: err}
	}

	m := formatPattern.FindSubmatch(out)
	if m == nil {
		return 0, CompileFailed{Path: a.BinaryPath, Err: fmt.Errorf("unrecognized version output: %q", string(out))}
	}

	version, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, CompileFailed{Path: a.BinaryPath, Err: err}
	}
	return version, nil
}

// Supports reports whether the compiler's reported format matches the
// board's.
func (a *Adapter) Supports(boardFormat int) bool {
	format, err := a.ReadCompilerFormat()
	if err != nil {
		return false
	}
	return format == boardFormat
}

// Compile cross-compiles filePath into board bytecode. Files already ending
// in .mpy pass through unchanged. cwd, when non-empty, is set as the
// subprocess's working directory so that embedded source paths in the
// output are relative to it. arch, when non-empty, is passed as
// -march=<arch>.
func (a *Adapter) Compile(filePath string, cwd string, arch string) (string, error) {
	if strings.HasSuffix(filePath, ".mpy") {
		return filePath, nil
	}

	outPath := strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".mpy"

	args := []string{}
	if arch != "" {
		args = append(args, "-march="+arch)
	}
	args = append(args, filePath)

	cmd := exec.Command(a.BinaryPath, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", CompileFailed{Path: filePath, Err: fmt.Errorf("%w: %s", err, string(out))}
	}

	return outPath, nil
}
