// Package plugin owns the installed-plugin lifecycle: activation state in
// the managed config, best-effort daemon control, metadata, and removal.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/lntools/reckless/conf"
	"github.com/lntools/reckless/lightning"
)

// MetadataFile is the record written into each installed plugin directory.
const MetadataFile = ".reckless.toml"

// Metadata captures where an installed plugin came from.
type Metadata struct {
	Name        string    `toml:"name"`
	Source      string    `toml:"source"`
	Entrypoint  string    `toml:"entrypoint"`
	Revision    string    `toml:"revision,omitempty"`
	Subdir      string    `toml:"subdir,omitempty"`
	InstalledAt time.Time `toml:"installed_at"`
}

// WriteMetadata records install provenance inside the plugin directory.
func WriteMetadata(dir string, meta *Metadata) error {
	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode plugin metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write plugin metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the provenance record of an installed plugin.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin metadata: %w", err)
	}
	var meta Metadata
	if err := toml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode plugin metadata: %w", err)
	}
	return &meta, nil
}

// Entrypoint re-derives the executable file of an installed plugin by
// scanning its directory for the conventional names.
func Entrypoint(settings *conf.Settings, name string) (string, error) {
	dir := settings.PluginDir(name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("plugin %s is not installed under %s", name, settings.RecklessDir)
	}
	for _, guess := range []string{name, name + ".py", "__init__.py"} {
		candidate := filepath.Join(dir, guess)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no entry point found in %s", dir)
}

const managedHeader = "# This file is managed by reckless.\n# Plugin directives below are rewritten in place; other lines pass through.\n"

// managedConfig opens the reckless-owned config, creating it and hooking it
// into the daemon's network config on first use. Creating the daemon's own
// config is the one step that asks the operator first.
func managedConfig(logger *log.Logger, settings *conf.Settings) (*conf.File, error) {
	f, err := conf.Obtain(logger, settings.ManagedConfigPath(), managedHeader, false)
	if err != nil {
		return nil, err
	}
	netConf, err := conf.Obtain(logger, settings.NetworkConfigPath(), "", true)
	if err != nil {
		return nil, err
	}
	if err := conf.EnsureIncluded(logger, netConf, settings.ManagedConfigPath()); err != nil {
		return nil, err
	}
	return f, nil
}

// Enable activates an installed plugin. When a live daemon is reachable it
// is asked to start the plugin first; "already registered" counts as
// success. The persisted config is updated either way, so activation state
// never depends on a running daemon.
func Enable(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) error {
	entrypoint, err := Entrypoint(settings, name)
	if err != nil {
		return err
	}

	cli := lightning.NewClient(settings.LightningDir, settings.Network)
	if cli.Reachable() {
		if err := cli.StartPlugin(ctx, logger, entrypoint); err != nil {
			if lightning.Tolerated(err, lightning.KindAlreadyRegistered) {
				logger.Debug("Plugin already registered with daemon", "name", name)
			} else {
				return fmt.Errorf("failed to start plugin %s: %w", name, err)
			}
		}
	} else {
		logger.Warn("lightningd unreachable, updating config only", "rpc", cli.RPCPath())
	}

	f, err := managedConfig(logger, settings)
	if err != nil {
		return err
	}
	if err := f.Edit(conf.PluginLine(entrypoint), conf.DisableLine(entrypoint)); err != nil {
		return err
	}
	logger.Info("Plugin enabled", "name", name, "entrypoint", entrypoint)
	return nil
}

// Disable deactivates a plugin. The config flip always happens, even when
// the daemon is unreachable or rejects the stop call, because persisted
// state must reflect operator intent; a non-tolerated daemon error is still
// reported to the caller afterwards.
func Disable(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) error {
	entrypoint, err := Entrypoint(settings, name)
	if err != nil {
		return err
	}

	var controlErr error
	cli := lightning.NewClient(settings.LightningDir, settings.Network)
	if cli.Reachable() {
		if err := cli.StopPlugin(ctx, logger, entrypoint); err != nil {
			if lightning.Tolerated(err, lightning.KindNotRunning) {
				logger.Debug("Plugin was not running", "name", name)
			} else {
				controlErr = fmt.Errorf("failed to stop plugin %s: %w", name, err)
			}
		}
	} else {
		logger.Warn("lightningd unreachable, updating config only", "rpc", cli.RPCPath())
	}

	f, err := managedConfig(logger, settings)
	if err != nil {
		return err
	}
	if err := f.Edit(conf.DisableLine(entrypoint), conf.PluginLine(entrypoint)); err != nil {
		return err
	}
	logger.Info("Plugin disabled", "name", name)
	return controlErr
}

// Uninstall stops a plugin best-effort, removes both directive forms from
// the managed config and deletes the installed directory.
func Uninstall(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) error {
	dir := settings.PluginDir(name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("plugin %s is not installed", name)
	}

	if entrypoint, err := Entrypoint(settings, name); err == nil {
		cli := lightning.NewClient(settings.LightningDir, settings.Network)
		if cli.Reachable() {
			if err := cli.StopPlugin(ctx, logger, entrypoint); err != nil && !lightning.Tolerated(err, lightning.KindNotRunning) {
				logger.Warn("Failed to stop plugin before uninstall", "name", name, "error", err)
			}
		}
		f, err := managedConfig(logger, settings)
		if err != nil {
			return err
		}
		if err := f.Edit("", conf.PluginLine(entrypoint)); err != nil {
			return err
		}
		if err := f.Edit("", conf.DisableLine(entrypoint)); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove plugin directory %s: %w", dir, err)
	}
	logger.Info("Plugin uninstalled", "name", name)
	return nil
}

// Info is one installed plugin as shown by the list command.
type Info struct {
	Name        string
	Source      string
	InstalledAt time.Time
}

// ListInstalled enumerates plugin directories under the reckless dir,
// decorating each with its metadata record when one exists.
func ListInstalled(settings *conf.Settings) ([]Info, error) {
	entries, err := os.ReadDir(settings.RecklessDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := Info{Name: entry.Name()}
		if meta, err := ReadMetadata(filepath.Join(settings.RecklessDir, entry.Name())); err == nil {
			info.Source = meta.Source
			info.InstalledAt = meta.InstalledAt
		}
		infos = append(infos, info)
	}
	return infos, nil
}
