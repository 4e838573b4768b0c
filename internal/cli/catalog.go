package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"invledger/pkg/catalog"
	"invledger/pkg/reconcile"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the item catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print catalog items in document order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tVALUE")
		for i, it := range cat.Items() {
			fmt.Fprintf(tw, "%d\t%s\t%g\n", i+1, it.Name, it.Value)
		}
		return tw.Flush()
	},
}

var checkThreshold int

var catalogCheckCmd = &cobra.Command{
	Use:   "check <text>",
	Short: "Show which items a piece of recognized text would match",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		text := reconcile.NormalizeText(strings.Join(args, " "))
		cands := reconcile.Match(text, cat.Items(), checkThreshold)
		out := cmd.OutOrStdout()
		if len(cands) == 0 {
			fmt.Fprintf(out, "no match for %q\n", text)
			return nil
		}
		best, _ := reconcile.Best(cands)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tVALUE\tSCORE\tPHASE\t")
		for _, c := range cands {
			mark := ""
			if c == best {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%g\t%d\t%s\t%s\n", c.Name, c.Value, c.Score, c.Phase, mark)
		}
		return tw.Flush()
	},
}

func init() {
	RootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogCheckCmd)
	catalogCmd.PersistentFlags().String("catalog", "ftf_items.json", "Catalog document (overrides CATALOG_PATH)")
	catalogCheckCmd.Flags().IntVar(&checkThreshold, "threshold", reconcile.DefaultThreshold, "Fuzzy match threshold 0..100")
}

// openCatalog loads the catalog strictly; unlike the server a broken
// document is an error here.
func openCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.LoadFile(cfg.CatalogPath)
}
