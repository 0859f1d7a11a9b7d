package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultSPIClockKHz, cfg.SPIClockKHz)
	assert.Equal(t, defaultPLLMHz, cfg.PLLMHz)
	assert.Equal(t, defaultUDiv, cfg.UDiv)
	assert.False(t, cfg.TestMode)
}

func TestParseSPITriplet(t *testing.T) {
	cfg, err := Parse([]string{"--spi", "2500:700:20"})
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.SPIClockKHz)
	assert.Equal(t, 700, cfg.PLLMHz)
	assert.Equal(t, 20, cfg.UDiv)
}

func TestParseDisableCores(t *testing.T) {
	cfg, err := Parse([]string{"--disable-cores", "3:150"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DisableChips)
	assert.Equal(t, 150, cfg.DisableCores)
}

func TestParseRejectsMalformedTriplet(t *testing.T) {
	_, err := Parse([]string{"--spi", "garbage"})
	assert.Error(t, err)
}

func TestParseTestModeAndDumpTraffic(t *testing.T) {
	cfg, err := Parse([]string{"--test-mode", "--dump-traffic"})
	require.NoError(t, err)
	assert.True(t, cfg.TestMode)
	assert.True(t, cfg.DumpTraffic)
}
