// Package verify computes a local SHA-256 digest of the archive and
// confirms it against a digest computed on the board (spec.md C9).
package verify

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// Checksummer computes a digest over a file on a filesystem. An interface
// rather than a concrete type so install and packager can accept any
// digest scheme without depending on this package's SHA256 implementation.
type Checksummer interface {
	Checksum(path string) []byte
}

var _ Checksummer = SHA256{}

// SHA256 is the Checksummer this tool ships: it matches the on-device
// validate_hash helper, which only ever computes SHA-256.
type SHA256 struct {
	fs afero.Fs
}

func NewSHA256(fs afero.Fs) SHA256 {
	return SHA256{fs: fs}
}

// Checksum hashes path, returning nil if it can't be opened or read.
func (s SHA256) Checksum(path string) []byte {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil
	}
	return h.Sum(nil)
}

// HashMismatch is returned when the board's digest disagrees with the
// local one.
type HashMismatch struct {
	Path   string
	Local  string
	Remote string
}

func (e HashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch for %s: local %s, remote %s", e.Path, e.Local, e.Remote)
}

// StatementExecer is the subset of the board session façade the verifier
// needs.
type StatementExecer interface {
	EnterRawMode() error
	ExitRawMode() error
	ExecStatement(text string) (string, error)
}

// hashHelperScript defines validate_hash(path, expected_hex_digest,
// chunk_size=512) -> 0|1, ported in logic (not composed by textual
// substitution) from the reference validate_hash implementation.
const hashHelperScript = `from hashlib import sha256
from binascii import hexlify
def validate_hash(path, expected_hex_digest, chunk_size=512):
    h = sha256()
    with open(path, 'rb') as f:
        while True:
            data = f.read(chunk_size)
            if len(data) == 0:
                break
            h.update(data)
    return 1 if hexlify(h.digest()) == expected_hex_digest else 0
`

// Verify computes checksummer's SHA-256 of localPath and ships/ runs the
// hash helper to compare it against remotePath's digest on the board.
func Verify(exec StatementExecer, checksummer Checksummer, localPath string, remotePath string) error {
	localDigest := fmt.Sprintf("%x", checksummer.Checksum(localPath))

	if err := exec.EnterRawMode(); err != nil {
		return err
	}
	defer exec.ExitRawMode()

	if _, err := exec.ExecStatement(hashHelperScript); err != nil {
		return err
	}

	stmt := fmt.Sprintf("print(validate_hash(%s, b'%s'))", quote(remotePath), localDigest)
	out, err := exec.ExecStatement(stmt)
	if err != nil {
		return err
	}

	if strings.TrimSpace(out) != "1" {
		return HashMismatch{Path: remotePath, Local: localDigest, Remote: strings.TrimSpace(out)}
	}
	return nil
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
