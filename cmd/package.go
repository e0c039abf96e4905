package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arduino/mip-installer/compiler"
	"github.com/arduino/mip-installer/config"
	"github.com/arduino/mip-installer/manifest"
	"github.com/arduino/mip-installer/packager"
)

func packageCmd(fs afero.Fs, v *viper.Viper) *cobra.Command {
	var (
		version      string
		manifestFile string
		compileFiles bool
	)

	command := &cobra.Command{
		Use:   "package <source>",
		Short: "fetches and archives a package without installing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := config.Load(v)

			custom, err := loadCustomManifest(manifestFile)
			if err != nil {
				return err
			}

			p := packager.New(packager.Config{
				Fs:         fs,
				Getter:     manifest.HTTPGetter{},
				IndexURL:   cfg.IndexURL,
				StagingDir: cfg.StagingDir,
				DestDir:    cfg.DestDir,
				Compiler:   compiler.Locate(cfg.CompilerPath),
				Arch:       cfg.Arch,
			})

			result, err := p.Package(packager.Request{
				Source:         args[0],
				Version:        version,
				CustomManifest: custom,
				CompileFiles:   compileFiles,
			})
			if err != nil {
				return err
			}

			fmt.Printf("wrote %s (%d files)\n", result.ArchivePath, len(result.PackageFiles))
			return nil
		},
	}

	command.Flags().StringVar(&version, "version", "", "version, tag, or commit to package (defaults per source kind)")
	command.Flags().StringVar(&manifestFile, "manifest-file", "", "path to a local JSON file overriding the root manifest")
	command.Flags().BoolVar(&compileFiles, "compile", false, "cross-compile fetched .py files with mpy-cross")

	return command
}

// customManifestJSON mirrors repoManifestJSON's wire shape for a
// user-supplied override file (spec.md scenario 2).
type customManifestJSON struct {
	Name    string     `json:"name"`
	Version string     `json:"version"`
	URLs    [][]string `json:"urls"`
	Deps    [][]string `json:"deps"`
}

func loadCustomManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return nil, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc customManifestJSON
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	m := &manifest.Manifest{Name: doc.Name, Version: doc.Version}
	for _, pair := range doc.URLs {
		if len(pair) < 2 {
			continue
		}
		m.URLs = append(m.URLs, manifest.URLEntry{TargetPath: pair[0], SourceURL: pair[1]})
	}
	for _, pair := range doc.Deps {
		if len(pair) == 0 {
			continue
		}
		d := manifest.Dep{Source: pair[0]}
		if len(pair) > 1 {
			d.Version = pair[1]
		}
		m.Deps = append(m.Deps, d)
	}
	return m, nil
}
