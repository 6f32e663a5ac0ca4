package cli

import (
	internalcli "github.com/SmitUplenchwar2687/Retrace/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the public Retrace root command for embedding.
func NewRootCmd() *cobra.Command {
	return internalcli.NewRootCmd()
}

// ExitCode maps an error returned by the root command to a process exit
// code.
func ExitCode(err error) int {
	return internalcli.ExitCode(err)
}
