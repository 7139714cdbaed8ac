package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lntools/reckless/conf"
	"github.com/lntools/reckless/installer"
	"github.com/lntools/reckless/plugin"
	"github.com/lntools/reckless/resolve"
	"github.com/lntools/reckless/source"
)

// Command is the closed set of core operations the CLI can request. Each
// variant carries its validated arguments; dispatch is an explicit type
// switch rather than a name-indexed table.
type Command interface{ isCommand() }

type InstallCommand struct{ Name string }
type UninstallCommand struct{ Name string }
type SearchCommand struct{ Name string }
type EnableCommand struct{ Name string }
type DisableCommand struct{ Name string }
type ListCommand struct{}
type SourceAddCommand struct{ URL string }
type SourceRemoveCommand struct{ URL string }
type SourceListCommand struct{}

func (InstallCommand) isCommand()      {}
func (UninstallCommand) isCommand()    {}
func (SearchCommand) isCommand()       {}
func (EnableCommand) isCommand()       {}
func (DisableCommand) isCommand()      {}
func (ListCommand) isCommand()         {}
func (SourceAddCommand) isCommand()    {}
func (SourceRemoveCommand) isCommand() {}
func (SourceListCommand) isCommand()   {}

// Dispatch routes one command into the core packages.
func Dispatch(ctx context.Context, logger *log.Logger, settings *conf.Settings, cmd Command) error {
	switch c := cmd.(type) {
	case InstallCommand:
		return runInstall(ctx, logger, settings, c.Name)
	case UninstallCommand:
		return plugin.Uninstall(ctx, logger, settings, c.Name)
	case SearchCommand:
		return runSearch(ctx, logger, settings, c.Name)
	case EnableCommand:
		return plugin.Enable(ctx, logger, settings, c.Name)
	case DisableCommand:
		return plugin.Disable(ctx, logger, settings, c.Name)
	case ListCommand:
		return runList(settings)
	case SourceAddCommand:
		return source.Add(logger, settings, c.URL)
	case SourceRemoveCommand:
		return runSourceRemove(logger, settings, c.URL)
	case SourceListCommand:
		return runSourceList(logger, settings)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

func resolveDescriptor(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) (*resolve.Descriptor, error) {
	sources, err := source.Load(logger, settings)
	if err != nil {
		return nil, err
	}
	ordered := source.Prioritize(sources, name)
	return resolve.New().Search(ctx, logger, name, ordered)
}

func runInstall(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) error {
	desc, err := resolveDescriptor(ctx, logger, settings, name)
	if err != nil {
		return err
	}
	if _, err := installer.Install(ctx, logger, settings, desc); err != nil {
		return err
	}
	return plugin.Enable(ctx, logger, settings, name)
}

func runSearch(ctx context.Context, logger *log.Logger, settings *conf.Settings, name string) error {
	desc, err := resolveDescriptor(ctx, logger, settings, name)
	if err != nil {
		return err
	}
	printSearchResult(desc)
	return nil
}

func runList(settings *conf.Settings) error {
	infos, err := plugin.ListInstalled(settings)
	if err != nil {
		return err
	}
	printInstalled(infos)
	return nil
}

func runSourceRemove(logger *log.Logger, settings *conf.Settings, url string) error {
	removed, err := source.Remove(logger, settings, url)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println(dimStyle.Render(fmt.Sprintf("source not found: %s", url)))
	}
	return nil
}

func runSourceList(logger *log.Logger, settings *conf.Settings) error {
	sources, err := source.Load(logger, settings)
	if err != nil {
		return err
	}
	printSources(sources)
	return nil
}
