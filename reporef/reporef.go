// Package reporef parses user-supplied package source strings and
// normalizes them into raw-content URLs a Manifest resolver can fetch.
package reporef

import (
	"fmt"
	"strings"
)

// Host identifies the git forge a ShortRepo lives on.
type Host string

const (
	HostGitHub Host = "github"
	HostGitLab Host = "gitlab"
)

// HEAD is the sentinel version meaning "the default branch's latest commit".
const HEAD = "HEAD"

// Latest is the sentinel version used by the index and by archive naming
// when no concrete version was requested.
const Latest = "latest"

// Ref identifies a source to fetch. Exactly one of the embedded kinds is
// populated; callers should switch on the concrete type returned by Parse.
type Ref interface {
	// String renders the ref in its canonical source form (human forge
	// URLs render in the short "github:owner/repo" form), for error
	// messages and visit keys.
	String() string
}

// ShortRepo is the `github:owner/repo[/subpath]` / `gitlab:owner/repo[/subpath]` form.
type ShortRepo struct {
	Host    Host
	Owner   string
	Repo    string
	Subpath string
}

func (r ShortRepo) String() string {
	s := fmt.Sprintf("%s:%s/%s", r.Host, r.Owner, r.Repo)
	if r.Subpath != "" {
		s += "/" + r.Subpath
	}
	return s
}

// HttpRepo is an already-raw (or unrecognized) http(s) URL.
type HttpRepo struct {
	URL string
}

func (r HttpRepo) String() string { return r.URL }

// IndexPackage is a bare package name resolved against the central index.
type IndexPackage struct {
	Name string
}

func (r IndexPackage) String() string { return r.Name }

// DirectFile is a URL pointing at a single .py or .mpy file.
type DirectFile struct {
	URL      string
	Filename string
}

func (r DirectFile) String() string { return r.URL }

// MalformedSource is returned by Parse/Rewrite when a short-form URL is
// truncated (fewer than owner+repo segments).
type MalformedSource struct {
	Input string
}

func (e MalformedSource) Error() string {
	return fmt.Sprintf("malformed source reference %q", e.Input)
}

// Parse classifies a user-supplied source string into one of the Ref kinds.
// It does not perform any I/O.
func Parse(source string) (Ref, error) {
	switch {
	case strings.HasPrefix(source, "github:"):
		return parseShort(HostGitHub, strings.TrimPrefix(source, "github:"))
	case strings.HasPrefix(source, "gitlab:"):
		return parseShort(HostGitLab, strings.TrimPrefix(source, "gitlab:"))
	case strings.HasPrefix(source, "https://github.com/"), strings.HasPrefix(source, "http://github.com/"):
		return parseHumanGitHub(source)
	case strings.HasPrefix(source, "https://gitlab.com/"), strings.HasPrefix(source, "http://gitlab.com/"):
		return parseHumanGitLab(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if isDirectFile(source) {
			return DirectFile{URL: source, Filename: basename(source)}, nil
		}
		return HttpRepo{URL: source}, nil
	default:
		return IndexPackage{Name: source}, nil
	}
}

func isDirectFile(url string) bool {
	return strings.HasSuffix(url, ".py") || strings.HasSuffix(url, ".mpy")
}

func basename(url string) string {
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 {
		return url
	}
	return url[idx+1:]
}

func parseShort(host Host, rest string) (ShortRepo, error) {
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ShortRepo{}, MalformedSource{Input: string(host) + ":" + rest}
	}

	r := ShortRepo{Host: host, Owner: parts[0], Repo: parts[1]}
	if len(parts) == 3 {
		r.Subpath = parts[2]
	}
	return r, nil
}

// parseHumanGitHub folds https://github.com/owner/repo[/tree/ref/subpath...] into a ShortRepo.
func parseHumanGitHub(url string) (ShortRepo, error) {
	rest := strings.TrimPrefix(url, "https://github.com/")
	rest = strings.TrimPrefix(rest, "http://github.com/")
	rest = strings.TrimSuffix(rest, ".git")
	return humanRepoToShort(HostGitHub, rest)
}

func parseHumanGitLab(url string) (ShortRepo, error) {
	rest := strings.TrimPrefix(url, "https://gitlab.com/")
	rest = strings.TrimPrefix(rest, "http://gitlab.com/")
	rest = strings.TrimSuffix(rest, ".git")
	return humanRepoToShort(HostGitLab, rest)
}

func humanRepoToShort(host Host, rest string) (ShortRepo, error) {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ShortRepo{}, MalformedSource{Input: rest}
	}

	owner := parts[0]
	tail := parts[1]

	// Strip a /tree/<ref>/<subpath> or /-/raw/<ref>/<subpath> browser-style
	// suffix down to just the repo name plus remaining subpath.
	repo := tail
	subpath := ""
	for _, marker := range []string{"/tree/", "/blob/", "/-/raw/", "/raw/"} {
		if idx := strings.Index(tail, marker); idx >= 0 {
			repo = tail[:idx]
			afterMarker := tail[idx+len(marker):]
			// afterMarker is "<ref>/<subpath...>"; drop the ref segment.
			if slash := strings.IndexByte(afterMarker, '/'); slash >= 0 {
				subpath = afterMarker[slash+1:]
			}
			break
		}
	}

	if repo == "" {
		return ShortRepo{}, MalformedSource{Input: rest}
	}

	return ShortRepo{Host: host, Owner: owner, Repo: repo, Subpath: subpath}, nil
}

// Rewrite normalizes any Ref to the raw-content URL it should be fetched
// from, translating ref to the host-appropriate token first. It is pure and
// total over well-formed inputs. Idempotent: Rewrite(Rewrite(u, r), r) ==
// Rewrite(u, r), since an HttpRepo/DirectFile URL is returned unchanged.
func Rewrite(ref Ref, version string) (string, error) {
	switch r := ref.(type) {
	case ShortRepo:
		token := translateVersion(version)
		switch r.Host {
		case HostGitHub:
			u := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", r.Owner, r.Repo, token)
			if r.Subpath != "" {
				u += "/" + r.Subpath
			}
			return u, nil
		case HostGitLab:
			u := fmt.Sprintf("https://gitlab.com/%s/%s/-/raw/%s", r.Owner, r.Repo, token)
			if r.Subpath != "" {
				u += "/" + r.Subpath
			}
			return u, nil
		default:
			return "", fmt.Errorf("reporef: unknown host %q", r.Host)
		}
	case HttpRepo:
		return r.URL, nil
	case DirectFile:
		return r.URL, nil
	case IndexPackage:
		return "", fmt.Errorf("reporef: IndexPackage %q has no single raw URL; resolve via the index instead", r.Name)
	default:
		return "", fmt.Errorf("reporef: unsupported ref type %T", ref)
	}
}

// RewritePath rewrites a path relative to a ShortRepo/HttpRepo's root, for
// fetching one file named by a manifest's urls list rather than the ref
// itself. path is joined onto the ref the same way Subpath is.
func RewritePath(ref Ref, version string, path string) (string, error) {
	switch r := ref.(type) {
	case ShortRepo:
		r.Subpath = joinPath(r.Subpath, path)
		return Rewrite(r, version)
	case HttpRepo:
		base := strings.TrimSuffix(r.URL, "/")
		return base + "/" + strings.TrimPrefix(path, "/"), nil
	default:
		return Rewrite(ref, version)
	}
}

func joinPath(base, path string) string {
	base = strings.Trim(base, "/")
	path = strings.TrimPrefix(path, "/")
	if base == "" {
		return path
	}
	if path == "" {
		return base
	}
	return base + "/" + path
}

// translateVersion maps the version token a caller provided to the token
// the raw-content host expects. An empty string or the literal "HEAD" both
// mean "default branch's latest commit", which raw.githubusercontent.com
// and gitlab's raw endpoint both accept literally as "HEAD".
func translateVersion(version string) string {
	if version == "" {
		return HEAD
	}
	return version
}
