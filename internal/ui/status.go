package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo is the information roux stats renders: cache health and the
// top-level shape of the indexed graph.
type StatusInfo struct {
	VaultName  string    `json:"vault_name"`
	TotalNodes int       `json:"total_nodes"`
	TotalGhost int       `json:"total_ghosts"`
	TotalTags  int       `json:"total_tags"`
	LastSynced time.Time `json:"last_synced"`

	CacheSizeBytes int64 `json:"cache_size_bytes"`

	ProviderModel  string `json:"provider_model,omitempty"`
	ProviderStatus string `json:"provider_status"` // "ready", "offline", "n/a"
	WatcherStatus  string `json:"watcher_status"`  // "running", "stopped", "n/a"
}

// StatusRenderer displays cache/graph status for roux stats.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Vault Status: "+info.VaultName))

	_, _ = fmt.Fprintf(r.out, "  Nodes:        %d\n", info.TotalNodes)
	_, _ = fmt.Fprintf(r.out, "  Ghosts:       %d\n", info.TotalGhost)
	_, _ = fmt.Fprintf(r.out, "  Tags:         %d\n", info.TotalTags)
	if !info.LastSynced.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last synced:  %s\n", formatTime(info.LastSynced))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Cache size:   %s\n", FormatBytes(info.CacheSizeBytes))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Vector provider:")
	_, _ = fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatus(info.ProviderStatus))
	if info.ProviderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:  %s\n", info.ProviderModel)
	}
	_, _ = fmt.Fprintln(r.out)

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderStatus(info.WatcherStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
