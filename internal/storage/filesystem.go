package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// SanitizeTarget replaces characters unsafe for filesystem paths.
// Allows alphanumeric, dots, and hyphens. Replaces everything else with underscore.
func SanitizeTarget(target string) string {
	return unsafeChars.ReplaceAllString(target, "_")
}

// ReportPath generates a consistent markdown report path for a scan
// Format: {baseDir}/{target}_{YYYYMMDD}_{HHMMSS}.md
func ReportPath(baseDir string, target string, timestamp time.Time) string {
	name := fmt.Sprintf("%s_%s.md", SanitizeTarget(target), timestamp.UTC().Format("20060102_150405"))
	return filepath.Join(baseDir, name)
}

// EnsureDir creates a directory and all parent directories if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
