// Command solver is the oracle solver/pusher daemon's CLI entrypoint
// (C19): a cobra root command wiring every other component together, in
// the manner of the teacher's NewRootCmd — minus the node-specific
// server/baseapp machinery the teacher needs and this daemon doesn't.
package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the solver's root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solver",
		Short: "SEDA oracle solver/pusher: bridges SEDA data requests to EVM destination chains",
	}

	cmd.AddCommand(NewStartCmd())
	return cmd
}
