package manifest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arduino/mip-installer/reporef"
)

// fakeGetter serves canned bodies for exact URLs, the hand-written fake
// this package's tests use in place of a generated mock (the teacher's
// gomock-generated fakes aren't reproducible without running mockgen).
type fakeGetter struct {
	bodies map[string][]byte
	errs   map[string]error
}

func (f fakeGetter) Get(url string) ([]byte, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("fakeGetter: no body registered for %s", url)
}

func TestResolve_SingleRepoNoDeps(t *testing.T) {
	getter := fakeGetter{bodies: map[string][]byte{
		"https://raw.githubusercontent.com/o/r/HEAD/package.json": []byte(`{
			"name": "r",
			"version": "1.0.0",
			"urls": [["r.py", "https://raw.githubusercontent.com/o/r/HEAD/r.py"]]
		}`),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	nodes, err := resolver.Resolve(reporef.ShortRepo{Host: reporef.HostGitHub, Owner: "o", Repo: "r"}, reporef.HEAD, nil)

	assert.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, "r", nodes[0].Manifest.Name)
	assert.Equal(t, []URLEntry{{TargetPath: "r.py", SourceURL: "https://raw.githubusercontent.com/o/r/HEAD/r.py"}}, nodes[0].Manifest.URLs)
}

func TestResolve_WalksDeps(t *testing.T) {
	getter := fakeGetter{bodies: map[string][]byte{
		"https://raw.githubusercontent.com/o/root/HEAD/package.json": []byte(`{
			"urls": [["root.py", "https://x/root.py"]],
			"deps": [["github:o/dep", ""]]
		}`),
		"https://raw.githubusercontent.com/o/dep/HEAD/package.json": []byte(`{
			"urls": [["dep.py", "https://x/dep.py"]]
		}`),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	nodes, err := resolver.Resolve(reporef.ShortRepo{Host: reporef.HostGitHub, Owner: "o", Repo: "root"}, reporef.HEAD, nil)

	assert.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, []string{"root.py", "dep.py"}, PackageFiles(nodes))
}

func TestResolve_CyclicDepsVisitedOnce(t *testing.T) {
	getter := fakeGetter{bodies: map[string][]byte{
		"https://raw.githubusercontent.com/o/a/HEAD/package.json": []byte(`{
			"urls": [["a.py", "https://x/a.py"]],
			"deps": [["github:o/b", ""]]
		}`),
		"https://raw.githubusercontent.com/o/b/HEAD/package.json": []byte(`{
			"urls": [["b.py", "https://x/b.py"]],
			"deps": [["github:o/a", ""]]
		}`),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	nodes, err := resolver.Resolve(reporef.ShortRepo{Host: reporef.HostGitHub, Owner: "o", Repo: "a"}, reporef.HEAD, nil)

	assert.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestResolve_OverrideSkipsFetch(t *testing.T) {
	getter := fakeGetter{}
	override := &Manifest{URLs: []URLEntry{{TargetPath: "x.py", SourceURL: "https://x/x.py"}}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	nodes, err := resolver.Resolve(reporef.HttpRepo{URL: "https://example.com/pkg"}, "v1", override)

	assert.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, *override, nodes[0].Manifest)
}

func TestResolve_MissingUrlsAndHashes(t *testing.T) {
	getter := fakeGetter{bodies: map[string][]byte{
		"https://raw.githubusercontent.com/o/r/HEAD/package.json": []byte(`{"name": "r"}`),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	_, err := resolver.Resolve(reporef.ShortRepo{Host: reporef.HostGitHub, Owner: "o", Repo: "r"}, reporef.HEAD, nil)

	assert.ErrorAs(t, err, &MissingUrlsAndHashes{})
}

func TestResolve_IndexPackageDefaultsToLatestAndHashes(t *testing.T) {
	getter := fakeGetter{bodies: map[string][]byte{
		"https://micropython.org/pi/package/py/foo/latest.json": []byte(`{
			"version": "2.0.0",
			"hashes": [["foo.py", "deadbeef"]]
		}`),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	nodes, err := resolver.Resolve(reporef.IndexPackage{Name: "foo"}, "", nil)

	assert.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, []URLEntry{{TargetPath: "foo.py", SourceURL: "https://micropython.org/pi/file/de/deadbeef"}}, nodes[0].Manifest.URLs)
}

func TestResolve_ManifestUnavailable(t *testing.T) {
	getter := fakeGetter{errs: map[string]error{
		"https://raw.githubusercontent.com/o/r/HEAD/package.json": fmt.Errorf("connection refused"),
	}}

	resolver := NewResolver(getter, "https://micropython.org/pi")
	_, err := resolver.Resolve(reporef.ShortRepo{Host: reporef.HostGitHub, Owner: "o", Repo: "r"}, reporef.HEAD, nil)

	assert.ErrorAs(t, err, &ManifestUnavailable{})
}

func TestPackageFiles_DedupesPreservingFirstSeen(t *testing.T) {
	nodes := []Node{
		{Manifest: Manifest{URLs: []URLEntry{{TargetPath: "a/x.py"}, {TargetPath: "b.py"}}}},
		{Manifest: Manifest{URLs: []URLEntry{{TargetPath: "a/x.py"}, {TargetPath: "c.py"}}}},
	}

	assert.Equal(t, []string{"a/x.py", "b.py", "c.py"}, PackageFiles(nodes))
}
