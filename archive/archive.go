// Package archive produces the gzip tape archive shipped to the board and
// derives its filename from the resolved root manifest.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arduino/mip-installer/manifest"
	"github.com/arduino/mip-installer/reporef"
)

// ArchiveFailed wraps a failure while writing the local archive.
type ArchiveFailed struct {
	Path string
	Err  error
}

func (e ArchiveFailed) Error() string {
	return fmt.Sprintf("archiving to %s failed: %v", e.Path, e.Err)
}

func (e ArchiveFailed) Unwrap() error { return e.Err }

// Result is the output of a successful archive build.
type Result struct {
	ArchivePath  string
	PackageFiles []string
}

// Build walks everything under stagingDir and writes a gzip tape archive at
// gzip level 9 to destDir, named from root/rootVersion per Name. Internal
// archive paths are relative to stagingDir and carry no leading slash; each
// subdirectory gets its own directory entry ahead of the files under it.
func Build(fs afero.Fs, stagingDir string, destDir string, nodes []manifest.Node, root reporef.Ref, rootVersion string) (Result, error) {
	files := manifest.PackageFiles(nodes)

	name := Name(nodes, root, rootVersion)
	archivePath := filepath.Join(destDir, name)

	if err := writeTarGz(fs, stagingDir, archivePath); err != nil {
		return Result{}, ArchiveFailed{Path: archivePath, Err: err}
	}

	return Result{ArchivePath: archivePath, PackageFiles: files}, nil
}

func writeTarGz(fs afero.Fs, stagingDir string, archivePath string) error {
	out, err := fs.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return err
	}
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return afero.Walk(fs, stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}

// Name derives the archive filename: <packageName>-<version>.tar.gz.
// packageName is the root manifest's name, or failing that the last path
// segment of the root URL with a trailing ".git" stripped. version is the
// root manifest's version, else rootVersion stripped of a leading "v", else
// "latest" when rootVersion is the default-branch sentinel.
func Name(nodes []manifest.Node, root reporef.Ref, rootVersion string) string {
	var rootManifest manifest.Manifest
	if len(nodes) > 0 {
		rootManifest = nodes[0].Manifest
	}

	packageName := rootManifest.Name
	if packageName == "" {
		packageName = lastSegment(root)
	}

	version := rootManifest.Version
	if version == "" {
		version = versionFromRef(rootVersion)
	}

	return fmt.Sprintf("%s-%s.tar.gz", packageName, version)
}

func lastSegment(ref reporef.Ref) string {
	var raw string
	switch r := ref.(type) {
	case reporef.ShortRepo:
		raw = r.Repo
	case reporef.HttpRepo:
		raw = r.URL
	case reporef.IndexPackage:
		raw = r.Name
	case reporef.DirectFile:
		raw = r.Filename
	default:
		raw = ref.String()
	}

	raw = strings.TrimSuffix(raw, "/")
	if idx := strings.LastIndexByte(raw, '/'); idx >= 0 {
		raw = raw[idx+1:]
	}
	return strings.TrimSuffix(raw, ".git")
}

func versionFromRef(ref string) string {
	if ref == "" || ref == reporef.HEAD {
		return reporef.Latest
	}
	return strings.TrimPrefix(ref, "v")
}
