package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/session"
)

func newCatalogueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogue",
		Short: "List every hostcall symbol a vkernel engine links, grouped by the capability it requires",
		RunE:  runCatalogue,
	}
}

func runCatalogue(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	grouped := abi.ByCapability()

	for cap := session.SessionLifecycle; cap <= session.SharedMemory; cap++ {
		calls, ok := grouped[cap]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s\n", cap)
		for _, meta := range calls {
			fmt.Fprintf(out, "  %s\n", meta.Name)
		}
	}

	fmt.Fprintf(out, "ungated\n  core::async::yield_now\n")
	return nil
}
