package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lntools/reckless/plugin"
	"github.com/lntools/reckless/resolve"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	dimStyle = lipgloss.NewStyle().Faint(true)
)

func printSearchResult(desc *resolve.Descriptor) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("found %s in source: %s", desc.Name, desc.Repo)))
	fmt.Println(itemStyle.Render(fmt.Sprintf("  entry point: %s", desc.Entrypoint)))
	fmt.Println(itemStyle.Render(fmt.Sprintf("  dependencies: %s", desc.DepKind)))
	if desc.Subdir != "" {
		fmt.Println(itemStyle.Render(fmt.Sprintf("  subdirectory: %s", desc.Subdir)))
	}
	if desc.Revision != "" {
		fmt.Println(itemStyle.Render(fmt.Sprintf("  revision: %s", desc.Revision)))
	}
}

func printSources(sources []string) {
	fmt.Println(headerStyle.Render("Plugin sources (search order):"))
	for i, src := range sources {
		fmt.Println(itemStyle.Render(fmt.Sprintf("  %d. %s", i+1, src)))
	}
}

func printInstalled(infos []plugin.Info) {
	if len(infos) == 0 {
		fmt.Println(dimStyle.Render("no plugins installed"))
		return
	}
	fmt.Println(headerStyle.Render("Installed plugins:"))
	for _, info := range infos {
		line := fmt.Sprintf("  %s", info.Name)
		if info.Source != "" {
			line += fmt.Sprintf("  (%s)", info.Source)
		}
		fmt.Println(itemStyle.Render(line))
	}
}
