package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := Load(v)

	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultPromptTimeout, cfg.PromptTimeout)
	assert.Equal(t, DefaultIndexURL, cfg.IndexURL)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Empty(t, cfg.CompilerPath)
	assert.False(t, cfg.OverwriteExisting)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(ChunkSizeKey, 128)
	v.Set(IndexURLKey, "https://example.test/pi")
	v.Set(OverwriteExistingKey, true)
	v.Set(PortKey, "/dev/ttyACM0")

	cfg := Load(v)

	assert.Equal(t, 128, cfg.ChunkSize)
	assert.Equal(t, "https://example.test/pi", cfg.IndexURL)
	assert.True(t, cfg.OverwriteExisting)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
}
