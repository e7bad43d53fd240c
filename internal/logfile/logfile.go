// Package logfile discovers the debug logs of Chia and its forks.
//
// Every fork keeps its state in a dot-directory under the user's home
// (~/.chia, ~/.flax, ...) with the log at mainnet/log/debug.log. Detect
// returns one File per readable log; the name is the directory without the
// dot, capitalised.
package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoLogFiles is returned by callers that require at least one log.
var ErrNoLogFiles = errors.New("logfile: no log files found")

// File is a discovered log file.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// LogPath returns the debug.log location inside a chain directory.
func LogPath(root, dir string) string {
	return filepath.Join(root, dir, "mainnet", "log", "debug.log")
}

// Detect scans root for chain directories. Names listed in denylist are
// skipped, compared case-insensitively. The result is sorted by name.
func Detect(root string, denylist []string) ([]File, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("logfile: read dir %s: %w", root, err)
	}

	skip := make(map[string]bool, len(denylist))
	for _, n := range denylist {
		skip[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var files []File
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), ".") || len(e.Name()) < 2 {
			continue
		}
		name := displayName(e.Name())
		if skip[strings.ToLower(name)] {
			continue
		}
		path := LogPath(root, e.Name())
		if !readable(path) {
			continue
		}
		files = append(files, File{Name: name, Path: path})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// DefaultRoot returns the user's home directory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("logfile: home dir: %w", err)
	}
	return home, nil
}

func displayName(dir string) string {
	name := strings.TrimPrefix(dir, ".")
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	fi, err := f.Stat()
	return err == nil && fi.Mode().IsRegular()
}
