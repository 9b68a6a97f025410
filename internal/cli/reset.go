package cli

import (
	"errors"
	"fmt"

	linkrepo "github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"

	"github.com/spf13/cobra"
)

var errResetNotConfirmed = errors.New("refusing to delete all links without --yes")

func newResetCommand() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document in the Links collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errResetNotConfirmed
			}

			cfg := config.Load(serviceName)
			defer cfg.GracefulShutdown()
			cfg.SetMongo()

			deleted, err := linkrepo.NewMongoLinkRepository(cfg).DeleteAll(cmd.Context())
			if err != nil {
				return err
			}
			cfg.Log.Warn("Links collection reset", "deleted", deleted)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d links.\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deleting all links")
	return cmd
}
