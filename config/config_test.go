package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/removebg-square/canvas"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "input", cfg.InputDir)
	assert.Equal(t, canvas.UniformMargins(111), cfg.Margins)
	assert.Equal(t, "dcraw", cfg.RawConverter.Command)
	assert.Equal(t, filepath.Join("out", "bad"), cfg.BadDirOr("out"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input_dir: photos
preset: landscape
bad_dir: ""
margins:
  left: 40
  top: 20
background: "#ffffff"
remove_size: full
raw_converter:
  command: dcraw_emu
  args: ["-T", "-Z", "-"]
xmp:
  sidecar: true
log_level: debug
skip_existing: true
report: runs/report.json
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.InputDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "landscape", cfg.Preset)
	// 未写出的边距保持默认值
	assert.Equal(t, canvas.Margins{Left: 40, Right: 111, Top: 20, Bottom: 111}, cfg.Margins)
	assert.Equal(t, "#ffffff", cfg.Background)
	assert.Equal(t, "full", cfg.RemoveSize)
	assert.Equal(t, RawConfig{Command: "dcraw_emu", Args: []string{"-T", "-Z", "-"}}, cfg.RawConverter)
	assert.True(t, cfg.XMP.Sidecar)
	assert.Equal(t, AppName, cfg.XMP.Tool)
	assert.Equal(t, "", cfg.BadDirOr("output"))
	assert.True(t, cfg.SkipExisting)
	assert.Equal(t, "runs/report.json", cfg.Report)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("margins: [1, 2"), 0o644))
	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
