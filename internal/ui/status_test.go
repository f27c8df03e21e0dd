package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusInfo_Zero(t *testing.T) {
	info := StatusInfo{}

	assert.Empty(t, info.VaultName)
	assert.Equal(t, 0, info.TotalNodes)
	assert.Equal(t, 0, info.TotalGhost)
	assert.True(t, info.LastSynced.IsZero())
}

func TestStatusInfo_JSONSerialization(t *testing.T) {
	info := StatusInfo{
		VaultName:      "test-vault",
		TotalNodes:     100,
		TotalGhost:     5,
		TotalTags:      12,
		LastSynced:     time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		CacheSizeBytes: 13 * 1024 * 1024,
		ProviderModel:  "text-embedding-3-small",
		ProviderStatus: "ready",
		WatcherStatus:  "running",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var parsed map[string]any
	err = json.Unmarshal(data, &parsed)
	require.NoError(t, err)

	assert.Equal(t, "test-vault", parsed["vault_name"])
	assert.Equal(t, float64(100), parsed["total_nodes"])
	assert.Equal(t, float64(5), parsed["total_ghosts"])
	assert.Equal(t, "ready", parsed["provider_status"])
	assert.Equal(t, "running", parsed["watcher_status"])
}

func TestStatusRenderer_Render_Basic(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		VaultName:      "my-vault",
		TotalNodes:     50,
		TotalGhost:     3,
		TotalTags:      9,
		LastSynced:     time.Now(),
		CacheSizeBytes: 6*1024*1024 + 512*1024,
		ProviderModel:  "text-embedding-3-small",
		ProviderStatus: "ready",
		WatcherStatus:  "stopped",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "my-vault")
	assert.Contains(t, output, "50")
	assert.Contains(t, output, "3")
	assert.Contains(t, output, "text-embedding-3-small")
	assert.Contains(t, output, "ready")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		VaultName:  "json-vault",
		TotalNodes: 25,
		TotalGhost: 1,
	}

	err := r.RenderJSON(info)
	require.NoError(t, err)

	var parsed StatusInfo
	err = json.Unmarshal(buf.Bytes(), &parsed)
	require.NoError(t, err)
	assert.Equal(t, "json-vault", parsed.VaultName)
	assert.Equal(t, 25, parsed.TotalNodes)
}

func TestStatusRenderer_NoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		VaultName:      "nocolor-vault",
		ProviderStatus: "ready",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "\x1b[")
	assert.NotContains(t, output, "\033[")
}

func TestStatusRenderer_ProviderOffline(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		VaultName:      "offline-vault",
		ProviderStatus: "offline",
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "offline")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatBytes(tt.bytes)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestStatusRenderer_CacheSize(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		VaultName:      "storage-vault",
		CacheSizeBytes: 12*1024*1024 + 512*1024,
	}

	err := r.Render(info)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "MB")
}
