package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/arduino/mip-installer/config"
	"github.com/arduino/mip-installer/constant"
	"github.com/arduino/mip-installer/logging"
)

var (
	homeDir    = os.ExpandEnv("$HOME")
	workingDir = filepath.Join(homeDir, "."+constant.AppName)
)

const configFileKey = "config-file"

// New builds the root command: persistent flags bound to viper, a
// zap logger initialized before any subcommand runs, and the package/
// install subcommands attached.
func New(fs afero.Fs) (*cobra.Command, error) {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:   constant.AppName,
		Short: "mip packages and installs MicroPython libraries onto a connected board",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v); err != nil {
				return err
			}
			return initLogger(v)
		},
	}

	rootCmd.PersistentFlags().String(configFileKey, "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().Int(config.ChunkSizeKey, config.DefaultChunkSize, "initial chunk size for the board transfer")
	rootCmd.PersistentFlags().Duration(config.PromptTimeoutKey, config.DefaultPromptTimeout, "timeout waiting for the board's interpreter prompt")
	rootCmd.PersistentFlags().String(config.IndexURLKey, config.DefaultIndexURL, "base URL of the package index")
	rootCmd.PersistentFlags().String(config.CompilerPathKey, "", "path to the mpy-cross tool directory")
	rootCmd.PersistentFlags().String(config.LibraryPathKey, "", "override the board's detected library path")
	rootCmd.PersistentFlags().Bool(config.OverwriteExistingKey, false, "overwrite an already-installed package")
	rootCmd.PersistentFlags().String(config.PortKey, "", "serial port the board is connected on")
	rootCmd.PersistentFlags().Int(config.BaudKey, config.DefaultBaud, "serial baud rate")
	rootCmd.PersistentFlags().String(config.StagingDirKey, filepath.Join(workingDir, "staging"), "local staging directory for fetched files")
	rootCmd.PersistentFlags().String(config.DestDirKey, filepath.Join(workingDir, "archives"), "local directory archives are written to")
	rootCmd.PersistentFlags().String(config.ArchKey, "", "target architecture passed to mpy-cross")

	var bindErrs error
	for _, key := range []string{
		configFileKey,
		config.ChunkSizeKey, config.PromptTimeoutKey, config.IndexURLKey, config.CompilerPathKey,
		config.LibraryPathKey, config.OverwriteExistingKey, config.PortKey, config.BaudKey,
		config.StagingDirKey, config.DestDirKey, config.ArchKey,
	} {
		bindErrs = errors.Join(bindErrs, v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)))
	}
	if bindErrs != nil {
		return nil, bindErrs
	}

	rootCmd.AddCommand(
		packageCmd(fs, v),
		installCmd(fs, v),
	)

	return rootCmd, nil
}

func initializeConfig(v *viper.Viper) error {
	if !v.IsSet(configFileKey) || v.GetString(configFileKey) == "" {
		return nil
	}

	v.SetConfigFile(os.ExpandEnv(v.GetString(configFileKey)))
	return v.ReadInConfig()
}

func initLogger(v *viper.Viper) error {
	zapCfg := zap.NewProductionConfig()
	l, err := zapCfg.Build()
	if err != nil {
		return err
	}
	logging.Init(l.Sugar())
	return nil
}
