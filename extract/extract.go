// Package extract drives the on-board tape-archive extractor (spec.md
// C10): ships the helper script, runs untar(archivePath, destDir), and
// maps its output to PackageAlreadyInstalled or ExtractFailed.
package extract

import (
	"fmt"
	"strings"
)

// ExtractFailed is returned when extraction finishes without the literal
// success sentinel "Extraction complete".
type ExtractFailed struct {
	Err error
}

func (e ExtractFailed) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e ExtractFailed) Unwrap() error { return e.Err }

// PackageAlreadyInstalled is returned when the extractor hit an EEXIST
// directory collision.
type PackageAlreadyInstalled struct {
	Path string
}

func (e PackageAlreadyInstalled) Error() string {
	return fmt.Sprintf("package already installed at %s", e.Path)
}

const successSentinel = "Extraction complete"

// StatementExecer is the subset of the board session façade the extractor
// needs.
type StatementExecer interface {
	EnterRawMode() error
	ExitRawMode() error
	ExecStatement(text string) (string, error)
}

// Extract ships the extraction helper and runs untar(archivePath, destDir)
// on the board.
func Extract(exec StatementExecer, archivePath string, destDir string) error {
	if err := exec.EnterRawMode(); err != nil {
		return err
	}
	defer exec.ExitRawMode()

	if _, err := exec.ExecStatement(extractorScript); err != nil {
		return ExtractFailed{Err: err}
	}

	stmt := fmt.Sprintf("untar(%s, %s)", quote(archivePath), quote(destDir))
	out, err := exec.ExecStatement(stmt)
	if err != nil {
		if isEEXIST(err) {
			return PackageAlreadyInstalled{Path: lastCreatingDirectoryPath(out)}
		}
		return ExtractFailed{Err: err}
	}

	if !strings.Contains(out, successSentinel) {
		return ExtractFailed{Err: fmt.Errorf("missing success sentinel in output: %q", out)}
	}
	return nil
}

func isEEXIST(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "EEXIST") || strings.Contains(msg, "Errno 17")
}

// lastCreatingDirectoryPath parses out for "Creating directory <path>"
// lines and returns the last one: untar prints it immediately before the
// os.mkdir call that raised EEXIST (spec.md §4.10).
func lastCreatingDirectoryPath(out string) string {
	const marker = "Creating directory "
	path := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			path = strings.TrimPrefix(line, marker)
		}
	}
	return path
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
