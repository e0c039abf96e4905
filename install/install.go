// Package install drives the end-to-end on-board installation of an
// already-built archive (spec.md C11): resolve the library path, guard
// against clobbering existing packages, upload, verify, extract, and
// always clean up the staged archive on the board afterward.
package install

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/arduino/mip-installer/board"
	"github.com/arduino/mip-installer/extract"
	"github.com/arduino/mip-installer/verify"
)

// WouldOverwriteFile is returned when a loose target file already exists
// on the board and overwriting is disabled.
type WouldOverwriteFile struct {
	Path string
}

func (e WouldOverwriteFile) Error() string {
	return fmt.Sprintf("would overwrite existing file %s", e.Path)
}

// WouldOverwriteFolder is returned when a package's target folder already
// exists on the board and overwriting is disabled.
type WouldOverwriteFolder struct {
	Path string
}

func (e WouldOverwriteFolder) Error() string {
	return fmt.Sprintf("would overwrite existing folder %s", e.Path)
}

// Board is the subset of the board session façade the installer drives.
type Board interface {
	EnterRawMode() error
	ExitRawMode() error
	ExecStatement(text string) (string, error)
	PutFile(hostPath string, devicePath string, onProgress func(int)) error
	RemoveFile(devicePath string) error
	Inspect() (board.Caps, error)
}

// State is the installer's progress through spec.md §4.11's state
// machine: Staged -> Uploaded -> Verified -> Extracted -> Cleaned, with
// any failure moving to Cleaning before surfacing the error.
type State int

const (
	Staged State = iota
	Uploaded
	Verified
	Extracted
	Cleaning
	Cleaned
)

// Config is everything Installer needs to place one already-built
// archive onto a board.
type Config struct {
	Board             Board
	Checksummer       verify.Checksummer
	ArchivePath       string
	PackageFiles      []string
	OverwriteExisting bool
	LibraryPath       string
	OnProgress        func(int)
}

// Installer implements workflow.Workflow for a single archive install.
type Installer struct {
	cfg   Config
	state State
}

func NewInstaller(cfg Config) *Installer {
	return &Installer{cfg: cfg, state: Staged}
}

func (i *Installer) State() State { return i.state }

// Execute runs the install to completion, per spec.md §4.11.
func (i *Installer) Execute() (err error) {
	defer func() {
		if err != nil {
			i.state = Cleaning
		}
	}()

	cfg := i.cfg

	libPath := cfg.LibraryPath
	if libPath == "" {
		caps, err := cfg.Board.Inspect()
		if err != nil {
			return err
		}
		libPath = caps.LibraryPath
	}

	folders, looseFiles := splitPackageFiles(cfg.PackageFiles)

	if err := i.preflight(cfg.Board, libPath, folders, looseFiles, cfg.OverwriteExisting); err != nil {
		return err
	}

	devicePath := "/" + filepath.Base(cfg.ArchivePath)

	if err := i.runTransfer(devicePath, libPath); err != nil {
		return err
	}

	i.state = Cleaned
	return nil
}

// preflight checks every target path for a pre-existing file or folder
// while the board is in raw-REPL mode, matching the transport mode every
// other statement caller (transfer, verify, extract) requires.
func (i *Installer) preflight(b Board, libPath string, folders []string, looseFiles []string, overwrite bool) error {
	if err := b.EnterRawMode(); err != nil {
		return err
	}
	defer b.ExitRawMode()

	for _, f := range looseFiles {
		target := joinDevicePath(libPath, f)
		exists, err := remoteExists(b, target)
		if err != nil {
			return err
		}
		if exists && !overwrite {
			return WouldOverwriteFile{Path: target}
		}
	}

	for _, d := range folders {
		target := joinDevicePath(libPath, d)
		exists, err := remoteExists(b, target)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if !overwrite {
			return WouldOverwriteFolder{Path: target}
		}
		if err := removeDirectoryRecursive(b, target); err != nil {
			return err
		}
	}

	return nil
}

// runTransfer drives upload, verify, extract, and the guaranteed cleanup
// of devicePath on the board regardless of which step fails.
func (i *Installer) runTransfer(devicePath string, libPath string) error {
	cfg := i.cfg
	var uploaded bool

	defer func() {
		if !uploaded {
			return
		}
		i.state = Cleaning
		_ = cfg.Board.RemoveFile(devicePath)
	}()

	if err := cfg.Board.PutFile(cfg.ArchivePath, devicePath, cfg.OnProgress); err != nil {
		return err
	}
	uploaded = true
	i.state = Uploaded

	if err := verify.Verify(cfg.Board, cfg.Checksummer, cfg.ArchivePath, devicePath); err != nil {
		return err
	}
	i.state = Verified

	if err := extract.Extract(cfg.Board, devicePath, libPath); err != nil {
		return err
	}
	i.state = Extracted

	return nil
}

func joinDevicePath(libPath string, rel string) string {
	return path.Clean(strings.TrimSuffix(libPath, "/") + "/" + rel)
}

// splitPackageFiles partitions target-relative paths into the set of
// top-level folders they fall under and the loose files that sit directly
// at the library root (spec.md §4.11: "a flat file vs. a package folder
// get different overwrite guards").
func splitPackageFiles(files []string) (folders []string, looseFiles []string) {
	seen := map[string]bool{}
	for _, f := range files {
		clean := path.Clean(f)
		if idx := strings.IndexByte(clean, '/'); idx >= 0 {
			top := clean[:idx]
			if !seen[top] {
				seen[top] = true
				folders = append(folders, top)
			}
			continue
		}
		looseFiles = append(looseFiles, clean)
	}
	return folders, looseFiles
}
