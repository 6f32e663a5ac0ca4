package main

import (
	"os"

	"github.com/SmitUplenchwar2687/Retrace/internal/cli"
)

func main() {
	err := cli.NewRootCmd().Execute()
	os.Exit(cli.ExitCode(err))
}
