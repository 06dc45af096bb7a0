package main

import (
	"log"
	"os"

	"github.com/mitchellh/cli"

	"github.com/projectcontour/contour-sub001/internal/version"
)

func main() {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}
	os.Exit(run(os.Args[1:], ui))
}

func run(args []string, ui cli.Ui) int {
	commands := initializeCommands(ui)
	c := cli.NewCLI("routegraph", version.GetHumanVersion())
	c.Args = args
	c.Commands = commands
	c.HelpFunc = helpFunc(commands)

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}
	return exitStatus
}
