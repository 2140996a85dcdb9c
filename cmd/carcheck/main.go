package main

import (
	"context"
	"os"

	"carcheck/cmd/carcheck/commands"

	"github.com/charmbracelet/fang"
)

var version = "0.1.0"

func main() {
	err := fang.Execute(
		context.Background(),
		commands.NewRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err != nil {
		os.Exit(1)
	}
}
