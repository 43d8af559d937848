package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the sample product catalog",
	Long: `Insert the ten sample products used for demos. Products whose SKU
already exists are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, closeDB, err := openAdapter(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		added, err := adapter.SeedSampleProducts(cmd.Context())
		if err != nil {
			return err
		}

		products, err := adapter.ListProducts(cmd.Context(), domain.ProductFilter{})
		if err != nil {
			return err
		}
		fmt.Printf("added %d sample products, %d products in catalog\n", added, len(products))
		return nil
	},
}

var lowStockCmd = &cobra.Command{
	Use:   "low-stock",
	Short: "List products at or below their reorder threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, closeDB, err := openAdapter(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		products, err := adapter.ListProducts(cmd.Context(), domain.ProductFilter{LowStockOnly: true})
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Println("no products are low on stock")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSKU\tNAME\tSTOCK\tMIN")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", p.ID, p.SKU, p.Name, p.StockQuantity, p.ReorderThreshold)
		}
		return w.Flush()
	},
}
