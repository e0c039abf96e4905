package install

import (
	"fmt"
	"strings"
)

// removeDirectoryScript defines remove_directory_recursive(path), ported
// in logic from the reference MicroPython implementation: it walks a
// directory bottom-up, removing files then the now-empty directory,
// raising OSError with a readable message on failure (spec.md §6).
const removeDirectoryScript = `import os
def _is_directory(path):
    _S_IFDIR = 0o040000
    _S_IFMT = 0o170000
    try:
        result = os.stat(path)
        return result[0] & _S_IFMT == _S_IFDIR
    except OSError:
        return False

def remove_directory_recursive(path):
    for item in os.listdir(path):
        full_path = path + "/" + item
        if _is_directory(full_path):
            remove_directory_recursive(full_path)
        else:
            os.remove(full_path)
    os.rmdir(path)
`

type statementExecer interface {
	ExecStatement(text string) (string, error)
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

// remoteExists reports whether path exists on the board.
func remoteExists(exec statementExecer, path string) (bool, error) {
	stmt := fmt.Sprintf(`import os
try:
    os.stat(%s)
    print(1)
except OSError:
    print(0)`, quote(path))

	out, err := exec.ExecStatement(stmt)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

// removeDirectoryRecursive ships the helper (idempotent to resend) and
// invokes remove_directory_recursive(path) on the board.
func removeDirectoryRecursive(exec statementExecer, path string) error {
	if _, err := exec.ExecStatement(removeDirectoryScript); err != nil {
		return err
	}
	_, err := exec.ExecStatement(fmt.Sprintf("remove_directory_recursive(%s)", quote(path)))
	return err
}
