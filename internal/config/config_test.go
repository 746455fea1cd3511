package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"repo": "https://github.com/acme/legacy-payroll.git",
		"branch": "release",
		"workers": 8,
		"attempt_cap": 5,
		"review_required": true,
		"database_url": "postgres://localhost/migrations"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/legacy-payroll.git", cfg.Repo)
	assert.Equal(t, "release", cfg.Branch)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5, cfg.AttemptCap)
	assert.True(t, cfg.ReviewRequired)
	assert.Equal(t, "postgres://localhost/migrations", cfg.DatabaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Workers: 4, AttemptCap: 3}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{Workers: -1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{AttemptCap: -2}
	assert.Error(t, cfg.Validate())

	cfg = &Config{JUnitJar: filepath.Join(t.TempDir(), "missing.jar")}
	assert.Error(t, cfg.Validate())
}

func TestValidateStaticOnlyExclusive(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "junit.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0644))

	cfg := &Config{StaticOnly: true, JUnitJar: jar}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Repo: "local/path", Workers: 2}
	defaults := Config{
		Repo:        "ignored",
		Branch:      "main",
		TargetStack: "java17",
		Workers:     4,
		AttemptCap:  3,
		Verbose:     true,
	}

	merged := cfg.MergeWithDefaults(defaults)

	assert.Equal(t, "local/path", merged.Repo)
	assert.Equal(t, "main", merged.Branch)
	assert.Equal(t, "java17", merged.TargetStack)
	assert.Equal(t, 2, merged.Workers)
	assert.Equal(t, 3, merged.AttemptCap)
	assert.True(t, merged.Verbose)
}
