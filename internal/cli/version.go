package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/wapi"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the build version",
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), wapi.GetVersion())
			return err
		},
	}
}
