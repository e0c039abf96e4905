// Package fetch downloads the files named by a resolved manifest into a
// staging directory, optionally post-processing each one (used to splice
// in bytecode compilation).
package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/grab/v3"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/arduino/mip-installer/logging"
	"github.com/arduino/mip-installer/manifest"
	"github.com/arduino/mip-installer/reporef"
)

// DownloadFailed is returned when a file download receives a non-2xx
// response or otherwise fails in transit.
type DownloadFailed struct {
	URL string
	Err error
}

func (e DownloadFailed) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e DownloadFailed) Unwrap() error { return e.Err }

// ProcessHook post-processes a freshly-written file, returning the path the
// caller should treat as final. Returning writtenPath unchanged is a no-op.
type ProcessHook func(writtenPath string) (finalPath string, err error)

// Fetcher downloads a single URLEntry into a staging directory.
type Fetcher struct {
	Fs afero.Fs
}

func NewFetcher(fs afero.Fs) *Fetcher {
	return &Fetcher{Fs: fs}
}

// Fetch translates entry.SourceURL via reporef.Rewrite with version, creates
// any intermediate directories under stagingDir, streams the response body
// to stagingDir/entry.TargetPath, then runs hook if provided.
func (f *Fetcher) Fetch(entry manifest.URLEntry, stagingDir string, version string, hook ProcessHook) (string, error) {
	url, err := resolveSourceURL(entry.SourceURL, version)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(stagingDir, filepath.FromSlash(entry.TargetPath))
	if err := f.Fs.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", err
	}

	logging.Logger().Debugw("fetching", "url", url, "dest", destPath)
	if err := f.download(url, destPath); err != nil {
		logging.Logger().Warnw("download failed", "url", url, "err", err)
		return "", DownloadFailed{URL: url, Err: err}
	}

	if hook == nil {
		return destPath, nil
	}

	finalPath, err := hook(destPath)
	if err != nil {
		return "", err
	}
	if finalPath != destPath {
		if err := f.Fs.Remove(destPath); err != nil {
			return "", err
		}
	}
	return finalPath, nil
}

// resolveSourceURL handles a manifest entry whose source is itself a
// short-form reference (as in a custom manifest's `"github:owner/repo/path"`
// entries, spec.md scenario 2) by rewriting it through reporef the same way
// the root ref is rewritten. An already-raw http(s) URL passes through
// reporef.Parse/Rewrite unchanged (Rewrite is idempotent on raw URLs).
func resolveSourceURL(source string, fallbackVersion string) (string, error) {
	ref, err := reporef.Parse(source)
	if err != nil {
		return "", err
	}

	return reporef.Rewrite(ref, fallbackVersion)
}

// download streams url's body to destPath. Staged downloads use the real
// filesystem via grab regardless of f.Fs, mirroring the teacher's
// url.Client: grab writes directly to disk with progress reporting. Tests
// do not reach this method; they exercise resolveSourceURL and EnsureDir
// directly.
func (f *Fetcher) download(url, destPath string) error {
	req, err := grab.NewRequest(destPath, url)
	if err != nil {
		return err
	}

	resp := grab.DefaultClient.Do(req)
	if err := resp.Err(); err != nil {
		return err
	}

	if resp.HTTPResponse != nil && (resp.HTTPResponse.StatusCode < 200 || resp.HTTPResponse.StatusCode >= 300) {
		return fmt.Errorf("unexpected status %s", resp.HTTPResponse.Status)
	}
	return nil
}

// FetchAll fetches every URLEntry in entries concurrently, per spec.md §5:
// downloads within a single manifest are unordered but the caller must wait
// for all of them before the archiver runs. Results preserve entries'
// order. hook is applied uniformly to every fetched file (nil to ship raw
// source).
func FetchAll(f *Fetcher, entries []manifest.URLEntry, stagingDir string, version string, hook ProcessHook) ([]string, error) {
	paths := make([]string, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(8)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			p, err := f.Fetch(entry, stagingDir, version, hook)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// EnsureDir creates dir (and parents) if it doesn't already exist.
func EnsureDir(fs afero.Fs, dir string) error {
	if _, err := fs.Stat(dir); os.IsNotExist(err) {
		return fs.MkdirAll(dir, 0o755)
	} else if err != nil {
		return err
	}
	return nil
}
