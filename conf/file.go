package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
)

// File is a line-oriented config file. Recognized directives are
// plugin=<path>, disable-plugin=<path> and include <path>; every other line
// passes through edits untouched.
type File struct {
	Path  string
	lines []string
}

// PluginLine is the directive enabling a plugin entry point.
func PluginLine(path string) string { return "plugin=" + path }

// DisableLine is the directive keeping an installed plugin inactive.
func DisableLine(path string) string { return "disable-plugin=" + path }

// confirmCreate asks before creating a config file the operator may not
// expect reckless to own. Stubbed in tests.
var confirmCreate = func(path string) (bool, error) {
	var create bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%s does not exist. Create it?", path)).
		Value(&create).
		Run()
	if err != nil {
		return false, err
	}
	return create, nil
}

// Obtain returns the config file at path, creating it populated with
// defaultText when missing. At most one missing parent directory is created;
// a deeper gap means the data directory is wrong and creation fails. With
// warnBeforeCreate set the operator is asked before anything is written.
func Obtain(logger *log.Logger, path, defaultText string, warnBeforeCreate bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return &File{Path: path, lines: splitLines(string(data))}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if warnBeforeCreate {
		ok, err := confirmCreate(path)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm creation of %s: %w", path, err)
		}
		if !ok {
			return nil, fmt.Errorf("creation of %s declined", path)
		}
	}

	if err := makeParents(path, 1); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(defaultText), 0644); err != nil {
		return nil, fmt.Errorf("failed to create config %s: %w", path, err)
	}
	logger.Debug("Created config file", "path", path)

	return &File{Path: path, lines: splitLines(defaultText)}, nil
}

// Edit rewrites the whole file: every line exactly equal to removeLine is
// dropped, runs of blank lines collapse to one, and addLine is appended
// unless an identical line already exists. Either argument may be empty to
// skip that half of the edit. The rewrite is not atomic; reckless is
// single-writer by convention.
func (f *File) Edit(addLine, removeLine string) error {
	var out []string
	present := false
	for _, line := range f.lines {
		if removeLine != "" && line == removeLine {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			line = ""
		}
		if addLine != "" && line == addLine {
			present = true
		}
		out = append(out, line)
	}
	if addLine != "" && !present {
		out = append(out, addLine)
	}
	return f.write(out)
}

// Lines returns a copy of the file's lines in order.
func (f *File) Lines() []string {
	return append([]string(nil), f.lines...)
}

// Contains reports whether an exact line is present.
func (f *File) Contains(line string) bool {
	for _, l := range f.lines {
		if l == line {
			return true
		}
	}
	return false
}

func (f *File) write(lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(f.Path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to rewrite config %s: %w", f.Path, err)
	}
	f.lines = lines
	return nil
}

// EnsureIncluded appends an include directive for includePath to the given
// config if it is not already there. The include chain is append-only.
func EnsureIncluded(logger *log.Logger, networkConf *File, includePath string) error {
	line := "include " + includePath
	if networkConf.Contains(line) {
		return nil
	}
	logger.Debug("Adding include directive", "config", networkConf.Path, "include", includePath)
	return networkConf.Edit(line, "")
}

// makeParents creates missing ancestor directories of path, refusing to
// create more than maxMissing levels. The bound is explicit so a mistyped
// data directory fails instead of silently growing a whole tree.
func makeParents(path string, maxMissing int) error {
	dir := filepath.Dir(path)
	var missing []string
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		missing = append([]string{dir}, missing...)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if len(missing) > maxMissing {
		return fmt.Errorf("refusing to create %d missing directories for %s (limit %d)", len(missing), path, maxMissing)
	}
	for _, d := range missing {
		if err := os.Mkdir(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
