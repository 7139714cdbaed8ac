package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/mitchellh/go-homedir"
)

// prefs are optional operator defaults read from
// ~/.config/reckless/reckless.hcl. Flags always win over prefs.
type prefs struct {
	LightningDir string `hcl:"lightning_dir,optional"`
	Network      string `hcl:"network,optional"`
	Verbose      bool   `hcl:"verbose,optional"`
}

func loadPrefs() (*prefs, error) {
	home, err := homedir.Dir()
	if err != nil {
		return &prefs{}, nil
	}
	path := filepath.Join(home, ".config", "reckless", "reckless.hcl")
	if _, err := os.Stat(path); err != nil {
		return &prefs{}, nil
	}

	var p prefs
	if err := hclsimple.DecodeFile(path, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", path, err)
	}
	return &p, nil
}
