package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "motectl")
}

func TestLoad_Defaults(t *testing.T) {
	dir := withTmpConfig(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8090", cfg.Server)
	require.Equal(t, dir, cfg.StateDir)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 20, cfg.PerPage)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, filepath.Join(dir, "state.db"), cfg.StatePath())
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	dir := withTmpConfig(t)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "motectl.yaml"), []byte(
		"server: https://mote.example.com/\nper_page: 50\nlog:\n  level: info\n  format: json\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "https://mote.example.com", cfg.Server)
	require.Equal(t, 50, cfg.PerPage)
	require.Equal(t, "json", cfg.Log.Format)

	t.Setenv("MOTECTL_LOG_LEVEL", "debug")
	t.Setenv("MOTECTL_TIMEOUT", "5s")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 5*time.Second, cfg.Timeout)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("server", "", "")
	require.NoError(t, fs.Parse([]string{"--server", "http://flag:1"}))
	cfg, err = Load("", fs)
	require.NoError(t, err)
	require.Equal(t, "http://flag:1", cfg.Server)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_ = withTmpConfig(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
