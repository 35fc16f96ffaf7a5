package commands

import (
	"fmt"
	"log"
	"os"

	"pricewatch-backend/lib/scrapers/ekatalog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(offersCmd)
}

var offersCmd = &cobra.Command{
	Use:   "offers <item id>",
	Short: "Fetch and print the current price table for an item id.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		client := ekatalog.NewClient()
		offers, err := client.FetchOffers(cmd.Context(), args[0])
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Shop", "Price"})
		for i, offer := range offers {
			t.AppendRow(table.Row{i + 1, offer.ShopName, offer.Price})
		}
		t.Render()
	},
}
