// Package packager is the top-level orchestrator: resolve a source into
// its dependency graph, fetch and optionally cross-compile every file,
// archive the staging tree, and (for packageAndInstall) hand the result
// to install for delivery onto a connected board. It wires C1 (reporef),
// C2 (manifest), C3 (fetch), C4 (compiler), C5 (archive), and C11
// (install) together the way the teacher's apm.APM wired repository sync,
// workflow selection, and the engine.
package packager

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/arduino/mip-installer/archive"
	"github.com/arduino/mip-installer/board"
	"github.com/arduino/mip-installer/compiler"
	"github.com/arduino/mip-installer/engine"
	"github.com/arduino/mip-installer/fetch"
	"github.com/arduino/mip-installer/install"
	"github.com/arduino/mip-installer/logging"
	"github.com/arduino/mip-installer/manifest"
	"github.com/arduino/mip-installer/reporef"
	"github.com/arduino/mip-installer/verify"
	"github.com/arduino/mip-installer/workflow"
)

// Config configures a Packager. Fs, Getter, and IndexURL are required;
// Compiler may be nil (compilation is then skipped and raw source ships).
type Config struct {
	Fs         afero.Fs
	Getter     manifest.Getter
	IndexURL   string
	StagingDir string
	DestDir    string
	Compiler   *compiler.Adapter
	Arch       string
}

// Packager drives one package (or package-and-install) run. Installation
// runs through a workflow.Executor, the same indirection the teacher's APM
// used to run every multi-step operation, so the install leg can be swapped
// or wrapped (retries, metrics) without Packager itself changing.
type Packager struct {
	cfg      Config
	resolver *manifest.Resolver
	executor workflow.Executor
}

func New(cfg Config) *Packager {
	return &Packager{
		cfg:      cfg,
		resolver: manifest.NewResolver(cfg.Getter, cfg.IndexURL),
		executor: engine.NewWorkflowEngine(),
	}
}

// Request names one package build: source is anything reporef.Parse
// accepts, version defaults per-kind when empty, customManifest overrides
// the root fetch entirely (spec.md scenario 2), and targetMpyFormat, when
// nonzero, both requests the index's bytecode descriptor and gates
// cross-compilation to files fetched as plain source.
type Request struct {
	Source          string
	Version         string
	CustomManifest  *manifest.Manifest
	TargetMpyFormat int
	CompileFiles    bool
}

// Package resolves source's dependency graph, fetches every file into a
// fresh staging tree, cross-compiles them when requested and possible,
// and archives the result (spec.md §4.12).
func (p *Packager) Package(req Request) (archive.Result, error) {
	ref, err := reporef.Parse(req.Source)
	if err != nil {
		return archive.Result{}, err
	}

	version := req.Version
	if version == "" {
		version = defaultVersion(ref)
	}

	nodes, err := p.resolveNodes(ref, version, req)
	if err != nil {
		return archive.Result{}, err
	}

	if err := fetch.EnsureDir(p.cfg.Fs, p.cfg.StagingDir); err != nil {
		return archive.Result{}, err
	}
	defer p.cfg.Fs.RemoveAll(p.cfg.StagingDir)

	if err := fetch.EnsureDir(p.cfg.Fs, p.cfg.DestDir); err != nil {
		return archive.Result{}, err
	}

	fetcher := fetch.NewFetcher(p.cfg.Fs)
	hook := p.compileHook(req)

	for _, node := range nodes {
		if _, err := fetch.FetchAll(fetcher, node.Manifest.URLs, p.cfg.StagingDir, node.Version, hook); err != nil {
			return archive.Result{}, err
		}
	}

	return archive.Build(p.cfg.Fs, p.cfg.StagingDir, p.cfg.DestDir, nodes, ref, version)
}

func (p *Packager) resolveNodes(ref reporef.Ref, version string, req Request) ([]manifest.Node, error) {
	override := req.CustomManifest
	if idx, ok := ref.(reporef.IndexPackage); ok && req.TargetMpyFormat != 0 && override == nil {
		m, err := p.resolver.FetchIndexManifest(idx, version, fmt.Sprint(req.TargetMpyFormat))
		if err != nil {
			return nil, err
		}
		override = &m
	}
	return p.resolver.Resolve(ref, version, override)
}

// compileHook wraps compiler.Adapter as a fetch.ProcessHook, degrading to
// a logged warning (spec.md §4.4: "a failed compile degrades to shipping
// the raw source") instead of failing the whole package run.
func (p *Packager) compileHook(req Request) fetch.ProcessHook {
	if !req.CompileFiles || p.cfg.Compiler == nil {
		return nil
	}
	if req.TargetMpyFormat != 0 && !p.cfg.Compiler.Supports(req.TargetMpyFormat) {
		logging.Logger().Warnw("compiler format mismatch, shipping raw source", "wantFormat", req.TargetMpyFormat)
		return nil
	}

	return func(writtenPath string) (string, error) {
		out, err := p.cfg.Compiler.Compile(writtenPath, p.cfg.StagingDir, p.cfg.Arch)
		if err != nil {
			logging.Logger().Warnw("compile failed, shipping raw source", "path", writtenPath, "err", err)
			return writtenPath, nil
		}
		return out, nil
	}
}

// defaultVersion applies spec.md's per-kind default: "HEAD" for anything
// resolved by git ref, "latest" for the central index.
func defaultVersion(ref reporef.Ref) string {
	if _, ok := ref.(reporef.IndexPackage); ok {
		return reporef.Latest
	}
	return reporef.HEAD
}

// InstallConfig configures PackageAndInstall's delivery leg.
type InstallConfig struct {
	Board             install.Board
	Checksummer       verify.Checksummer
	OverwriteExisting bool
	OnProgress        func(int)
}

// PackageAndInstall packages req and immediately installs the result onto
// icfg.Board, per spec.md §4.12's packageAndInstall convenience operation.
func (p *Packager) PackageAndInstall(req Request, icfg InstallConfig) (archive.Result, error) {
	result, err := p.Package(req)
	if err != nil {
		return archive.Result{}, err
	}
	defer func() {
		if err := p.cfg.Fs.Remove(result.ArchivePath); err != nil {
			logging.Logger().Warnw("local archive cleanup failed", "path", result.ArchivePath, "err", err)
		}
	}()

	installer := install.NewInstaller(install.Config{
		Board:             icfg.Board,
		Checksummer:       icfg.Checksummer,
		ArchivePath:       result.ArchivePath,
		PackageFiles:      result.PackageFiles,
		OverwriteExisting: icfg.OverwriteExisting,
		OnProgress:        icfg.OnProgress,
	})

	if err := p.executor.Execute(installer); err != nil {
		return result, fmt.Errorf("package built at %s but install failed: %w", result.ArchivePath, err)
	}
	return result, nil
}

// InspectTargetFormat is a convenience wrapper that returns the connected
// board's mpy format, the value Request.TargetMpyFormat expects. cmd does
// not call it; it reads the format from its own session.Inspect result.
func InspectTargetFormat(b *board.Session) (int, error) {
	caps, err := b.Inspect()
	if err != nil {
		return 0, err
	}
	return caps.MpyFormat, nil
}
