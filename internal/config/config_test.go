package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsnlang/tsn/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	config.BindDefaults(v)

	c, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Threads)
	assert.Equal(t, 1000, c.ScanIntervalMS)
	assert.False(t, c.DisableExecution)
}

func TestLoadReadsOverrides(t *testing.T) {
	v := viper.New()
	config.BindDefaults(v)
	v.Set("threads", 8)
	v.Set("disableOptimizations", true)
	v.Set("workspaceRoot", "/srv/scripts")

	c, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Threads)
	assert.True(t, c.DisableOptimizations)
	assert.Equal(t, "/srv/scripts", c.WorkspaceRoot)
}

func TestLoadRejectsThreadsOutOfRange(t *testing.T) {
	v := viper.New()
	config.BindDefaults(v)
	v.Set("threads", 65)

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestLoadRejectsScanIntervalWhenScanningEnabledWithoutInterval(t *testing.T) {
	v := viper.New()
	config.BindDefaults(v)
	v.Set("scanForChanges", true)
	v.Set("scanIntervalMS", 0)

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestParseArch(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", config.ArchUnknown},
		{"aarch64", config.ArchAarch64},
		{"RISCV64", config.ArchRiscv64},
		{"x86_32", config.ArchX86_32},
	}
	for _, tt := range tests {
		got, err := config.ParseArch(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := config.ParseArch("mips")
	assert.Error(t, err)
}
