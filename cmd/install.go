package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arduino/mip-installer/board"
	"github.com/arduino/mip-installer/compiler"
	"github.com/arduino/mip-installer/config"
	"github.com/arduino/mip-installer/manifest"
	"github.com/arduino/mip-installer/packager"
	"github.com/arduino/mip-installer/verify"
)

func installCmd(fs afero.Fs, v *viper.Viper) *cobra.Command {
	var (
		version      string
		manifestFile string
		compileFiles bool
	)

	command := &cobra.Command{
		Use:   "install <source>",
		Short: "packages and installs a library onto the connected board",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := config.Load(v)

			custom, err := loadCustomManifest(manifestFile)
			if err != nil {
				return err
			}

			if cfg.Port == "" {
				return fmt.Errorf("install: %s flag is required", config.PortKey)
			}

			opener := board.SerialOpener{Baud: cfg.Baud}
			ch, err := opener.Open(cfg.Port)
			if err != nil {
				return err
			}

			session := board.NewSession(ch, fs, cfg.ChunkSize)
			defer session.Close()

			if err := session.WaitForPrompt(cfg.PromptTimeout); err != nil {
				return err
			}

			caps, err := session.Inspect()
			if err != nil {
				return err
			}

			libPath := cfg.LibraryPath
			if libPath == "" {
				libPath = caps.LibraryPath
			}

			p := packager.New(packager.Config{
				Fs:         fs,
				Getter:     manifest.HTTPGetter{},
				IndexURL:   cfg.IndexURL,
				StagingDir: cfg.StagingDir,
				DestDir:    cfg.DestDir,
				Compiler:   compiler.Locate(cfg.CompilerPath),
				Arch:       caps.Architecture,
			})

			result, err := p.PackageAndInstall(packager.Request{
				Source:          args[0],
				Version:         version,
				CustomManifest:  custom,
				CompileFiles:    compileFiles,
				TargetMpyFormat: caps.MpyFormat,
			}, packager.InstallConfig{
				Board:             installBoard{session, libPath},
				Checksummer:       verify.NewSHA256(fs),
				OverwriteExisting: cfg.OverwriteExisting,
				OnProgress: func(pct int) {
					fmt.Printf("\rtransferring... %d%%", pct)
				},
			})
			if err != nil {
				return err
			}

			fmt.Printf("\ninstalled %s\n", result.ArchivePath)
			return nil
		},
	}

	command.Flags().StringVar(&version, "version", "", "version, tag, or commit to install (defaults per source kind)")
	command.Flags().StringVar(&manifestFile, "manifest-file", "", "path to a local JSON file overriding the root manifest")
	command.Flags().BoolVar(&compileFiles, "compile", true, "cross-compile fetched .py files with mpy-cross when the board supports it")

	return command
}

// installBoard adapts *board.Session to install.Board, pinning the
// library path resolved once at session inspection time so Installer
// doesn't need to re-inspect.
type installBoard struct {
	*board.Session
	libPath string
}

func (b installBoard) Inspect() (board.Caps, error) {
	return board.Caps{LibraryPath: b.libPath}, nil
}
