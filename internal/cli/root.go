// Package cli holds the linker command tree. Every command builds its own
// connections from the environment and closes them before returning.
package cli

import (
	"github.com/spf13/cobra"
)

const serviceName = "bubble-mongo-linker"

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "linker",
		Short: "Link Bubble CRM records to businesses in MongoDB",
		Long: "linker reconciles Bubble CRM records against the Businesses collection.\n" +
			"Records are deduplicated by normalized website and address, matched by\n" +
			"legacy id or by website plus name or phone, and stored in Links.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newWorkCommand(),
		newEnqueueCommand(),
		newReconcileCommand(),
		newMigrateCommand(),
		newResetCommand(),
	)
	return root
}
