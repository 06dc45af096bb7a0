package main

import (
	"context"
	"os"

	"github.com/mitchellh/cli"

	cmdServer "github.com/projectcontour/contour-sub001/internal/commands/server"
	cmdVersion "github.com/projectcontour/contour-sub001/internal/commands/version"
	"github.com/projectcontour/contour-sub001/internal/version"
)

// initializeCommands returns the mapping of all available routegraph
// commands.
func initializeCommands(ui cli.Ui) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"server": func() (cli.Command, error) {
			return cmdServer.New(context.Background(), ui, os.Stderr), nil
		},
		"version": func() (cli.Command, error) {
			return &cmdVersion.Command{UI: ui, Version: version.GetHumanVersion()}, nil
		},
	}
}

func helpFunc(commands map[string]cli.CommandFactory) cli.HelpFunc {
	var include []string
	for k := range commands {
		include = append(include, k)
	}
	return cli.FilteredHelpFunc(include, cli.BasicHelpFunc("routegraph"))
}
