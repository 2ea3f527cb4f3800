package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the override variables so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DATA_DIR", "SAVEDUMP_TEMP_DIR", "SAVEDUMP_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "savedump.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<SaveDump>")
	assert.Contains(t, string(data), "<DefaultFormatVersion>8</DefaultFormatVersion>")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "data", "temp"), cfg.GetTempDir())

	n, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(32<<20), n)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "savedump.config")
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
<SaveDump>
  <Server>
    <Port>9000</Port>
    <BindAddress>127.0.0.1</BindAddress>
  </Server>
  <Processing>
    <DefaultFormatVersion>6</DefaultFormatVersion>
  </Processing>
  <Storage>
    <UploadsDirectory>/srv/saves</UploadsDirectory>
  </Storage>
</SaveDump>`
	require.NoError(t, os.WriteFile(path, []byte(xmlData), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, 6, cfg.Processing.DefaultFormatVersion)
	assert.Equal(t, 2, cfg.Processing.MaxConcurrentDecodes)
	assert.Equal(t, "/srv/saves", cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tempDir := filepath.Join(dir, "scratch")
	t.Setenv("PORT", "7000")
	t.Setenv("SAVEDUMP_TEMP_DIR", tempDir)
	t.Setenv("SAVEDUMP_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(dir, "savedump.config"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, tempDir, cfg.GetTempDir())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed xml", `<SaveDump><Server>`},
		{"bad port", `<SaveDump><Server><Port>70000</Port></Server></SaveDump>`},
		{"bad size", `<SaveDump><Storage><MaxUploadSize>lots</MaxUploadSize></Storage></SaveDump>`},
		{"bad level", `<SaveDump><Advanced><LogLevel>chatty</LogLevel></Advanced></SaveDump>`},
		{"bad version", `<SaveDump><Processing><DefaultFormatVersion>0</DefaultFormatVersion></Processing></SaveDump>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "savedump.config")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())

	cfg.Server.AllowOrigins = " http://a.test , ,http://b.test"
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())

	cfg.Server.EnableCORS = false
	assert.Nil(t, cfg.AllowedOrigins())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)
	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.GetDataDir(), cfg.GetUploadDir(), cfg.GetTempDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
