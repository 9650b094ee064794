// cmd/tools/form-lint/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "form-lint",
		Short:        "Check APPCC control templates and sample values",
		SilenceUsage: true,
	}
	root.AddCommand(newCheckCmd(), newValidateCmd(), newTypesCmd())
	return root
}
