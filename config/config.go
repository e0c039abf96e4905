// Package config loads the installer's runtime configuration via viper,
// the way the teacher's cmd/root.go binds persistent flags and an
// optional YAML config file into package-scoped settings.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Keys are the viper setting names bound to persistent flags in cmd.
const (
	ChunkSizeKey         = "chunk-size"
	PromptTimeoutKey     = "prompt-timeout"
	IndexURLKey          = "index-url"
	CompilerPathKey      = "compiler-path"
	LibraryPathKey       = "library-path"
	OverwriteExistingKey = "overwrite-existing"
	PortKey              = "port"
	BaudKey              = "baud"
	StagingDirKey        = "staging-dir"
	DestDirKey           = "dest-dir"
	ArchKey              = "arch"
)

// Defaults mirror mpremote/mip's own defaults where one exists.
const (
	DefaultChunkSize     = 512
	DefaultPromptTimeout = 3 * time.Second
	DefaultIndexURL      = "https://micropython.org/pi"
	DefaultBaud          = 115200
)

// InstallerConfig is the fully-resolved configuration for one run,
// collected from defaults, an optional config file, and flags, in that
// increasing order of precedence (viper's own resolution order).
type InstallerConfig struct {
	ChunkSize         int
	PromptTimeout     time.Duration
	IndexURL          string
	CompilerPath      string
	LibraryPath       string
	OverwriteExisting bool
	Port              string
	Baud              int
	StagingDir        string
	DestDir           string
	Arch              string
}

// SetDefaults registers InstallerConfig's defaults on v. Called once
// before flags are bound, so an unset flag and an unset config file key
// both fall back to the same value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(ChunkSizeKey, DefaultChunkSize)
	v.SetDefault(PromptTimeoutKey, DefaultPromptTimeout)
	v.SetDefault(IndexURLKey, DefaultIndexURL)
	v.SetDefault(CompilerPathKey, "")
	v.SetDefault(LibraryPathKey, "")
	v.SetDefault(OverwriteExistingKey, false)
	v.SetDefault(BaudKey, DefaultBaud)
}

// Load reads InstallerConfig back out of v after flags/config-file have
// been bound.
func Load(v *viper.Viper) InstallerConfig {
	return InstallerConfig{
		ChunkSize:         v.GetInt(ChunkSizeKey),
		PromptTimeout:     v.GetDuration(PromptTimeoutKey),
		IndexURL:          v.GetString(IndexURLKey),
		CompilerPath:      v.GetString(CompilerPathKey),
		LibraryPath:       v.GetString(LibraryPathKey),
		OverwriteExisting: v.GetBool(OverwriteExistingKey),
		Port:              v.GetString(PortKey),
		Baud:              v.GetInt(BaudKey),
		StagingDir:        v.GetString(StagingDirKey),
		DestDir:           v.GetString(DestDirKey),
		Arch:              v.GetString(ArchKey),
	}
}
