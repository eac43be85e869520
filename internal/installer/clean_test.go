package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/kickstart/internal/config"
	"github.com/tanq16/kickstart/internal/utils"
)

func TestClean(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InstallDir = dir

	staging := cfg.TargetPath() + utils.StagingSuffix
	logFile := filepath.Join(dir, utils.LogFile)
	require.NoError(t, os.WriteFile(staging, []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(logFile, []byte("log"), 0o644))
	require.NoError(t, os.WriteFile(cfg.TargetPath(), []byte("binary"), 0o755))

	removed, err := Clean(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{staging, logFile}, removed)
	assert.NoFileExists(t, staging)
	assert.NoFileExists(t, logFile)
	assert.FileExists(t, cfg.TargetPath())

	removed, err = Clean(cfg)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCleanReportsErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.InstallDir = dir
	staging := cfg.TargetPath() + utils.StagingSuffix

	_, err := clean(lockingFS{locked: staging}, cfg)
	assert.Error(t, err)
}
