package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the rotating server log's base file name under a vault's
// log directory.
const LogFileName = "server.log"

// LogPath returns the server log path under logDir (typically
// Config.LogDir(), i.e. <vault>/.roux/logs).
func LogPath(logDir string) string {
	return filepath.Join(logDir, LogFileName)
}

// FindLogFile resolves the log file to view: an explicit path if given,
// otherwise LogPath(logDir).
func FindLogFile(explicit, logDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := LogPath(logDir)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. Run with --debug or 'roux serve' first.\nExpected at: %s", path)
}

// EnsureLogDir creates logDir if it doesn't exist.
func EnsureLogDir(logDir string) error {
	return os.MkdirAll(logDir, 0o755)
}
