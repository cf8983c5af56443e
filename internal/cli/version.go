package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexlab/tracer/internal/buildconfig"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tracer %s (%s)\n", buildconfig.Version(), buildconfig.Commit())
		},
	}

	RootCmd.AddCommand(cmd)
}
