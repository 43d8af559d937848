package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long: `Create the products, invoices, invoice_items and outbox tables if they
do not exist yet. Running it again is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, closeDB, err := openAdapter(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		if err := adapter.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("schema is up to date")
		return nil
	},
}
