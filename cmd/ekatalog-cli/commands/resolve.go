package commands

import (
	"fmt"
	"log"
	"os"

	"pricewatch-backend/lib/scrapers/ekatalog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <link>",
	Short: "Resolve a catalog link into its item id and display name.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "incorrect number of arguments")
			os.Exit(1)
		}

		client := ekatalog.NewClient()
		if !client.IsSupportedLink(args[0]) {
			log.Fatal("link does not belong to the supported catalog domain")
		}

		itemId, itemName, err := client.ResolveItem(cmd.Context(), args[0])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("id:   %s\nname: %s\n", itemId, itemName)
	},
}
