package cli

import (
	"context"
	"fmt"
	"time"

	mongoMigration "github.com/HefnerLance/bubble-mongo-linker/internal/migrations/mongo"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"

	"github.com/spf13/cobra"
)

const migrationTimeout = 2 * time.Minute

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Links collection, its validator and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(serviceName)
			defer cfg.GracefulShutdown()
			cfg.SetMongo()

			ctx, cancel := context.WithTimeout(cmd.Context(), migrationTimeout)
			defer cancel()

			if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration completed.")
			return nil
		},
	}
}
