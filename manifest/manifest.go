// Package manifest resolves a package source into its manifest and walks
// its transitive dependency graph.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/arduino/mip-installer/reporef"
)

// URLEntry is one (targetRelPath, sourceUrl) pair from a manifest's urls list.
type URLEntry struct {
	TargetPath string
	SourceURL  string
}

// HashEntry is one (targetRelPath, contentHash) pair from an index manifest.
type HashEntry struct {
	TargetPath string
	Hash       string
}

// Dep is one (depUrlOrName, depVersion) pair from a manifest's deps list.
type Dep struct {
	Source  string
	Version string
}

// Manifest is the package descriptor as retrieved from a repository's
// package.json or an index JSON document.
type Manifest struct {
	Name    string
	Version string
	URLs    []URLEntry
	Deps    []Dep
	Hashes  []HashEntry
}

// ManifestUnavailable is returned when a manifest cannot be fetched or parsed.
type ManifestUnavailable struct {
	Source string
	Err    error
}

func (e ManifestUnavailable) Error() string {
	return fmt.Sprintf("manifest unavailable for %s: %v", e.Source, e.Err)
}

func (e ManifestUnavailable) Unwrap() error { return e.Err }

// UnsupportedSource is returned when a DirectFile's URL is not fetchable raw.
type UnsupportedSource struct {
	Source string
}

func (e UnsupportedSource) Error() string {
	return fmt.Sprintf("unsupported source %s: not a fetchable raw URL", e.Source)
}

// MissingUrlsAndHashes is returned when a manifest has neither urls nor hashes.
type MissingUrlsAndHashes struct {
	Source string
}

func (e MissingUrlsAndHashes) Error() string {
	return fmt.Sprintf("manifest for %s has neither urls nor hashes", e.Source)
}

// Getter fetches raw bytes from a URL. The production implementation wraps
// net/http; tests supply an in-memory fake.
type Getter interface {
	Get(url string) ([]byte, error)
}

var _ Getter = HTTPGetter{}

// HTTPGetter is the production Getter, a thin wrapper over http.Get that
// maps non-2xx responses and transport errors to ManifestUnavailable-shaped
// errors for the caller to wrap.
type HTTPGetter struct {
	Client *http.Client
}

func (g HTTPGetter) Get(url string) ([]byte, error) {
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	return io.ReadAll(resp.Body)
}

// repoManifestJSON mirrors the repository manifest shape described in
// spec: { name?, version?, urls: [[path,url],...], deps?: [[dep,ver?],...] }.
type repoManifestJSON struct {
	Name    string     `json:"name"`
	Version string     `json:"version"`
	URLs    [][]string `json:"urls"`
	Deps    [][]string `json:"deps"`
}

// indexManifestJSON mirrors the index manifest shape: { version, hashes:
// [[path,hash],...], deps?: [[dep,ver?],...] }.
type indexManifestJSON struct {
	Version string     `json:"version"`
	Hashes  [][]string `json:"hashes"`
	Deps    [][]string `json:"deps"`
}

// Resolver walks RepoRefs into an ordered sequence of manifests.
type Resolver struct {
	Getter   Getter
	IndexURL string
}

func NewResolver(getter Getter, indexURL string) *Resolver {
	return &Resolver{Getter: getter, IndexURL: strings.TrimSuffix(indexURL, "/")}
}

// Node is one resolved manifest in the dependency walk, paired with the ref
// and version it was resolved from (the version is used when fetching its
// URLEntry sources; the root node's manifest feeds the archive name).
type Node struct {
	Ref      reporef.Ref
	Version  string
	Manifest Manifest
}

// Resolve walks ref's dependency graph depth-first in declared order,
// starting with the root (using override in place of a fetch if provided),
// and returns every manifest node reached, root first. Cyclic or
// duplicate (url, version) pairs are visited once; later encounters are
// skipped, per spec.md's guidance on the naive non-deduplicating walker.
func (r *Resolver) Resolve(ref reporef.Ref, version string, override *Manifest) ([]Node, error) {
	visited := map[string]bool{}
	var nodes []Node

	if err := r.walk(ref, version, override, visited, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func visitKey(ref reporef.Ref, version string) string {
	return fmt.Sprintf("%s@%s", ref.String(), version)
}

func (r *Resolver) walk(ref reporef.Ref, version string, override *Manifest, visited map[string]bool, nodes *[]Node) error {
	key := visitKey(ref, version)
	if visited[key] {
		return nil
	}
	visited[key] = true

	m, err := r.fetchOne(ref, version, override)
	if err != nil {
		return err
	}

	*nodes = append(*nodes, Node{Ref: ref, Version: version, Manifest: m})

	for _, dep := range m.Deps {
		depRef, depVersion, err := resolveDepRef(dep)
		if err != nil {
			return err
		}
		if err := r.walk(depRef, depVersion, nil, visited, nodes); err != nil {
			return err
		}
	}

	return nil
}

// resolveDepRef classifies a dependency entry and applies the default
// version spec.md requires: "HEAD" for repo deps, "latest" for index deps.
func resolveDepRef(dep Dep) (reporef.Ref, string, error) {
	ref, err := reporef.Parse(dep.Source)
	if err != nil {
		return nil, "", err
	}

	version := dep.Version
	if version == "" {
		if _, ok := ref.(reporef.IndexPackage); ok {
			version = reporef.Latest
		} else {
			version = reporef.HEAD
		}
	}
	return ref, version, nil
}

func (r *Resolver) fetchOne(ref reporef.Ref, version string, override *Manifest) (Manifest, error) {
	if override != nil {
		return *override, nil
	}

	switch rf := ref.(type) {
	case reporef.ShortRepo, reporef.HttpRepo:
		return r.fetchRepoManifest(rf, version)
	case reporef.IndexPackage:
		return r.fetchIndexManifest(rf, version)
	case reporef.DirectFile:
		return Manifest{
			URLs: []URLEntry{{TargetPath: rf.Filename, SourceURL: rf.URL}},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("manifest: unsupported ref type %T", ref)
	}
}

func (r *Resolver) fetchRepoManifest(ref reporef.Ref, version string) (Manifest, error) {
	url, err := reporef.RewritePath(ref, version, "package.json")
	if err != nil {
		return Manifest{}, err
	}

	body, err := r.Getter.Get(url)
	if err != nil {
		return Manifest{}, ManifestUnavailable{Source: ref.String(), Err: err}
	}

	var doc repoManifestJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return Manifest{}, ManifestUnavailable{Source: ref.String(), Err: err}
	}

	m := Manifest{
		Name:    doc.Name,
		Version: doc.Version,
		URLs:    toURLEntries(doc.URLs),
		Deps:    toDeps(doc.Deps),
	}
	if len(m.URLs) == 0 {
		return Manifest{}, MissingUrlsAndHashes{Source: ref.String()}
	}
	return m, nil
}

// fetchIndexManifest fetches <index>/package/<fmtOrPy>/<name>/<version>.json
// and adapts its hashes list into urls pointing at the content-addressed
// file blob endpoint, per spec.md §4.2 and §6. Hashes are authoritative
// over any urls the index document might also carry (spec.md §9 open
// question); since the index shape never carries urls in practice, this is
// enforced simply by never reading a urls field from indexManifestJSON.
func (r *Resolver) fetchIndexManifest(ref reporef.IndexPackage, version string) (Manifest, error) {
	return r.fetchIndexManifestWithFormat(ref, version, "py")
}

// FetchIndexManifest exposes fetchIndexManifestWithFormat to callers that
// need to pin a specific descriptor format (the packager orchestrator,
// once it knows the board's mpy format) before resolving the rest of the
// dependency graph via Resolve's override parameter.
func (r *Resolver) FetchIndexManifest(ref reporef.IndexPackage, version string, format string) (Manifest, error) {
	return r.fetchIndexManifestWithFormat(ref, version, format)
}

// fetchIndexManifestWithFormat allows the caller (the packager orchestrator,
// once it knows the board's mpy format) to request the bytecode-specific
// descriptor instead of the literal "py" source descriptor.
func (r *Resolver) fetchIndexManifestWithFormat(ref reporef.IndexPackage, version string, format string) (Manifest, error) {
	if version == "" {
		version = reporef.Latest
	}

	url := fmt.Sprintf("%s/package/%s/%s/%s.json", r.IndexURL, format, ref.Name, version)
	body, err := r.Getter.Get(url)
	if err != nil {
		return Manifest{}, ManifestUnavailable{Source: ref.Name, Err: err}
	}

	var doc indexManifestJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return Manifest{}, ManifestUnavailable{Source: ref.Name, Err: err}
	}

	hashes := toHashEntries(doc.Hashes)
	if len(hashes) == 0 {
		return Manifest{}, MissingUrlsAndHashes{Source: ref.Name}
	}

	m := Manifest{
		Name:    ref.Name,
		Version: doc.Version,
		Hashes:  hashes,
		Deps:    toDeps(doc.Deps),
	}
	m.URLs = make([]URLEntry, len(hashes))
	for i, h := range hashes {
		m.URLs[i] = URLEntry{
			TargetPath: h.TargetPath,
			SourceURL:  r.blobURL(h.Hash),
		}
	}
	return m, nil
}

func (r *Resolver) blobURL(hash string) string {
	prefix := hash
	if len(hash) >= 2 {
		prefix = hash[:2]
	}
	return fmt.Sprintf("%s/file/%s/%s", r.IndexURL, prefix, hash)
}

func toURLEntries(raw [][]string) []URLEntry {
	out := make([]URLEntry, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		out = append(out, URLEntry{TargetPath: pair[0], SourceURL: pair[1]})
	}
	return out
}

func toHashEntries(raw [][]string) []HashEntry {
	out := make([]HashEntry, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		out = append(out, HashEntry{TargetPath: pair[0], Hash: pair[1]})
	}
	return out
}

func toDeps(raw [][]string) []Dep {
	out := make([]Dep, 0, len(raw))
	for _, pair := range raw {
		if len(pair) == 0 {
			continue
		}
		d := Dep{Source: pair[0]}
		if len(pair) > 1 {
			d.Version = pair[1]
		}
		out = append(out, d)
	}
	return out
}

// PackageFiles aggregates every target-relative path across the given
// nodes' manifests, preserving first-seen order. Cyclic/duplicate walks are
// already deduplicated by Resolve, but a manifest may legitimately repeat a
// target path across two dependencies; later entries simply overwrite it at
// archive time (spec.md §7 notes this is a user-manifest conflict, not a
// resolver bug).
func PackageFiles(nodes []Node) []string {
	seen := map[string]bool{}
	var files []string
	for _, n := range nodes {
		for _, u := range n.Manifest.URLs {
			clean := path.Clean(u.TargetPath)
			if !seen[clean] {
				seen[clean] = true
				files = append(files, clean)
			}
		}
	}
	return files
}
