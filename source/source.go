// Package source maintains the ordered list of locations searched for
// plugins. The list is a flat file, one source per line, created lazily with
// the built-in default collection.
package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lntools/reckless/conf"
)

// DefaultSource is the well-known multi-plugin collection searched when the
// operator has not configured anything else.
const DefaultSource = "https://github.com/lightningd/plugins"

// Load reads the persisted source list, creating it with the default source
// on first use. Order in the file is search priority.
func Load(logger *log.Logger, settings *conf.Settings) ([]string, error) {
	f, err := conf.Obtain(logger, settings.SourcesPath(), DefaultSource+"\n", false)
	if err != nil {
		return nil, fmt.Errorf("failed to load source list: %w", err)
	}

	var sources []string
	for _, line := range f.Lines() {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources, nil
}

// Add appends a source if it looks usable: either an existing local
// directory or a URL carrying a recognized hosting marker. The append is
// idempotent.
func Add(logger *log.Logger, settings *conf.Settings, src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return fmt.Errorf("empty source")
	}

	if info, err := os.Stat(src); err == nil && info.IsDir() {
		// Local directory sources are accepted into the registry but not
		// yet consulted during resolution.
		logger.Warn("Local source registered; search does not use local directories yet", "path", src)
	} else if !strings.Contains(src, "github.com") {
		return fmt.Errorf("unrecognized source %s: not a local directory and no known hosting marker", src)
	}

	f, err := conf.Obtain(logger, settings.SourcesPath(), DefaultSource+"\n", false)
	if err != nil {
		return fmt.Errorf("failed to load source list: %w", err)
	}
	if err := f.Edit(src, ""); err != nil {
		return err
	}
	logger.Info("Added plugin source", "source", src)
	return nil
}

// Remove drops a source from the list. It reports whether the source was
// present; a missing source is not an error.
func Remove(logger *log.Logger, settings *conf.Settings, src string) (bool, error) {
	src = strings.TrimSpace(src)
	f, err := conf.Obtain(logger, settings.SourcesPath(), DefaultSource+"\n", false)
	if err != nil {
		return false, fmt.Errorf("failed to load source list: %w", err)
	}
	if !f.Contains(src) {
		return false, nil
	}
	if err := f.Edit("", src); err != nil {
		return false, err
	}
	logger.Info("Removed plugin source", "source", src)
	return true, nil
}

// Prioritize reorders sources for a specific plugin: a source whose trailing
// path segment matches the plugin name (case-insensitively) is promoted to
// the front so an exact-name repository is tried first.
func Prioritize(sources []string, name string) []string {
	ordered := append([]string(nil), sources...)
	for i, src := range ordered {
		if strings.EqualFold(lastSegment(src), name) {
			promoted := ordered[i]
			copy(ordered[1:i+1], ordered[:i])
			ordered[0] = promoted
			break
		}
	}
	return ordered
}

func lastSegment(src string) string {
	src = strings.TrimRight(src, "/")
	src = strings.TrimSuffix(src, ".git")
	if idx := strings.LastIndexAny(src, "/\\"); idx >= 0 {
		return src[idx+1:]
	}
	return src
}
