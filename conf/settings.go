package conf

import "path/filepath"

// Settings carries the paths and network selection every operation needs.
// It is built once by the CLI layer and passed by reference; nothing in the
// core packages reads flags or environment variables for these values.
type Settings struct {
	// LightningDir is the daemon's data directory, e.g. ~/.lightning.
	LightningDir string
	// RecklessDir is where installed plugins, the managed config and the
	// source list live. Defaults to <LightningDir>/reckless.
	RecklessDir string
	// Network selects the daemon network ("bitcoin", "regtest", ...). It
	// picks both the network config file and the managed config name.
	Network string
	// Verbose surfaces captured subprocess output.
	Verbose bool
}

// NetworkConfigPath is the daemon's own config file for the selected network.
// Reckless only ever appends an include directive to it.
func (s *Settings) NetworkConfigPath() string {
	return filepath.Join(s.LightningDir, s.Network, "config")
}

// ManagedConfigPath is the config file exclusively owned by reckless, holding
// all plugin=/disable-plugin= directives for the selected network.
func (s *Settings) ManagedConfigPath() string {
	return filepath.Join(s.RecklessDir, s.Network+"-reckless.conf")
}

// SourcesPath is the persisted plugin source list.
func (s *Settings) SourcesPath() string {
	return filepath.Join(s.RecklessDir, ".sources")
}

// PluginDir is the permanent directory a named plugin is installed into.
func (s *Settings) PluginDir(name string) string {
	return filepath.Join(s.RecklessDir, name)
}
