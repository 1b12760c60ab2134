// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-reader/internal/cache"
	"github.com/pdiddy/paper-reader/pkg/types"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, types.DefaultConfig())
	v.SetEnvPrefix("PAPER_READER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper-reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/papers
http:
  timeout: 30s
papers:
  max_size_mb: 2048
conversion:
  primary: pdftotext
auth:
  enabled: true
`), 0o644))
	t.Setenv("PAPER_READER_PAPERS_MAX_AGE_DAYS", "14")

	v := newTestViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/srv/papers", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, int64(2048), cfg.Papers.MaxSizeMB)
	assert.Equal(t, 14, cfg.Papers.MaxAgeDays)
	assert.Equal(t, types.BackendPdftotext, cfg.Conversion.Primary)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "paper-reader/0.1", cfg.HTTP.UserAgent)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown backend", "conversion.primary", "grobid"},
		{"zero budget", "papers.max_size_mb", "0"},
		{"negative age", "papers.max_age_days", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper()
			v.Set(tt.key, tt.value)
			_, err := loadConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestReadIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("# reading list\n2301.07041\n\n  hep-th/9901001  \n"), 0o644))

	ids, err := readIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2301.07041", "hep-th/9901001"}, ids)

	_, err = readIDFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "1.0 GiB", humanBytes(1<<30))
}

func TestArtifactLabel(t *testing.T) {
	tests := []struct {
		name string
		rec  types.PaperRecord
		want string
	}{
		{"metadata only", types.PaperRecord{}, "none"},
		{"pdf only", types.PaperRecord{SourcePath: "a.pdf"}, "pdf"},
		{"pdf and text", types.PaperRecord{SourcePath: "a.pdf", TextPath: "a.md"}, "pdf+text"},
		{"text only", types.PaperRecord{TextPath: "a.md"}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, artifactLabel(tt.rec))
		})
	}
}

func TestCacheStatsCommand(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "paper_reader.prom")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--data-dir", dir, "--metrics-file", metricsPath, "cache", "stats", "--json"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		viper.Reset()
	})
	require.NoError(t, rootCmd.Execute())

	var st cache.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, 0, st.Count)
	assert.Equal(t, int64(1024*1024*1024), st.MaxBytes)
	assert.Equal(t, 90, st.MaxAgeDays)

	assert.FileExists(t, filepath.Join(dir, "papers", "papers.db"))
	assert.FileExists(t, metricsPath)
}
