package cli

import (
	"fmt"
	"image"
	"text/tabwriter"

	"invledger/pkg/grid"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var gridFormat string

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the cell geometry of the canonical canvas",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g := cfg.Engine.Grid
		cells, err := grid.Partition(g.Width, g.Height, g)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if gridFormat == "yaml" {
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(struct {
				Grid  grid.Config `yaml:"grid"`
				Cells []cellView  `yaml:"cells"`
			}{g, cellViews(cells)})
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "canvas %dx%d, %d rows x %d columns\n", g.Width, g.Height, g.Rows(), g.Columns())
		fmt.Fprintln(tw, "CELL\tROW\tCOL\tBOUNDS\tCORNER\tSTRIP")
		for _, c := range cells {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", c.ID, c.Row, c.Col, c.Bounds, c.Corner, c.TextStrip)
		}
		return tw.Flush()
	},
}

type cellView struct {
	ID     int    `yaml:"id"`
	Row    int    `yaml:"row"`
	Col    int    `yaml:"col"`
	Bounds [4]int `yaml:"bounds,flow"`
	Corner [4]int `yaml:"corner,flow"`
	Strip  [4]int `yaml:"strip,flow"`
}

func rect(r image.Rectangle) [4]int {
	return [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

func cellViews(cells []grid.Cell) []cellView {
	out := make([]cellView, len(cells))
	for i, c := range cells {
		out[i] = cellView{ID: c.ID, Row: c.Row, Col: c.Col, Bounds: rect(c.Bounds), Corner: rect(c.Corner), Strip: rect(c.TextStrip)}
	}
	return out
}

func init() {
	RootCmd.AddCommand(gridCmd)
	gridCmd.Flags().StringVarP(&gridFormat, "format", "f", "table", "Output format: table, yaml")
}
