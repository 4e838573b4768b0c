package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"invledger/pkg/catalog"
	"invledger/pkg/config"
	"invledger/pkg/diag"
	"invledger/pkg/ocr"
	"invledger/pkg/reconcile"
	"invledger/pkg/store"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image...]",
	Short: "Reconcile screenshots into a ledger",
	Long: `Reconcile one or more inventory screenshots against the catalog and print
the resulting ledger.

Images come from the arguments and from --dir. With --watch the command keeps
running and reconciles every new image that settles in --dir.`,
	RunE: runScan,
}

var (
	scanDir       string
	scanWatch     bool
	scanSave      bool
	scanDiagDir   string
	scanDevice    string
	scanFormat    string
	scanQuantity  string
	scanItem      string
	scanThreshold int
)

func init() {
	RootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("catalog", "ftf_items.json", "Catalog document (overrides CATALOG_PATH)")
	scanCmd.Flags().StringVar(&scanDir, "dir", "", "Directory of screenshots to reconcile")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "Keep watching --dir for new screenshots")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Store each ledger in the database (needs DB_DSN)")
	scanCmd.Flags().StringVar(&scanDiagDir, "diag-dir", "", "Write intermediate images and traces here")
	scanCmd.Flags().StringVar(&scanDevice, "device", "cli", "Device label stored with saved ledgers")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format: table, json, yaml")
	scanCmd.Flags().StringVar(&scanQuantity, "quantity-isolation", "", "Isolation for the quantity pass: "+strings.Join(ocr.IsolatorNames(), ", "))
	scanCmd.Flags().StringVar(&scanItem, "item-isolation", "", "Isolation for the item pass")
	scanCmd.Flags().IntVar(&scanThreshold, "threshold", -1, "Fuzzy match threshold 0..100 (overrides MATCH_THRESHOLD)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanWatch && scanDir == "" {
		return fmt.Errorf("--watch needs --dir")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyScanFlags(cfg)

	files, err := collectImages(scanDir, args)
	if err != nil {
		return err
	}
	if len(files) == 0 && !scanWatch {
		return reconcile.ErrNoImages
	}

	var opts []reconcile.Option
	if cfg.DiagDir != "" {
		sink, err := diag.NewDir(cfg.DiagDir)
		if err != nil {
			return err
		}
		opts = append(opts, reconcile.WithSink(sink))
	}
	engine, err := ocr.NewEngine(cfg.Engine, catalog.NewFileProvider(cfg.CatalogPath), cfg.QuantityIsolation, cfg.ItemIsolation, opts...)
	if err != nil {
		return err
	}

	var st *store.Store
	if scanSave {
		if !cfg.Persistence() {
			return fmt.Errorf("--save needs DB_DSN")
		}
		if st, err = store.Open(cfg.DSN); err != nil {
			return err
		}
	}

	s := &scanner{engine: engine, store: st, device: scanDevice, format: scanFormat, out: cmd.OutOrStdout()}
	ctx := cmd.Context()
	if len(files) > 0 {
		if err := s.scan(ctx, files); err != nil {
			return err
		}
	}
	if !scanWatch {
		return nil
	}
	return watchDir(ctx, scanDir, defaultSettle, func(path string) {
		if err := s.scan(ctx, []string{path}); err != nil {
			slog.Error("reconciling watched image failed", "file", path, "err", err)
		}
	})
}

func applyScanFlags(cfg *config.Config) {
	if scanDiagDir != "" {
		cfg.DiagDir = scanDiagDir
	}
	if scanQuantity != "" {
		cfg.QuantityIsolation = scanQuantity
	}
	if scanItem != "" {
		cfg.ItemIsolation = scanItem
	}
	if scanThreshold >= 0 {
		cfg.Engine.Threshold = scanThreshold
	}
}

type scanner struct {
	engine interface {
		Reconcile(ctx context.Context, images []reconcile.Image) (*reconcile.Result, error)
	}
	store  *store.Store
	device string
	format string
	out    io.Writer
}

// scan reconciles files as one batch, prints the ledger and optionally saves it.
func (s *scanner) scan(ctx context.Context, files []string) error {
	images := make([]reconcile.Image, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		images = append(images, reconcile.Image{Name: filepath.Base(f), Data: data})
	}
	res, err := s.engine.Reconcile(ctx, images)
	if err != nil {
		return err
	}
	if err := writeResult(s.out, res, s.format); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	ledger := store.NewLedger(res, s.device, nil)
	if err := s.store.SaveLedger(ctx, ledger); err != nil {
		return err
	}
	slog.Info("ledger saved", "id", ledger.ID, "lines", len(ledger.Lines), "total", ledger.Total)
	return nil
}

// collectImages returns the explicit files followed by the supported images
// in dir, sorted by name.
func collectImages(dir string, files []string) ([]string, error) {
	out := append([]string(nil), files...)
	if dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		found = append(found, filepath.Join(dir, e.Name()))
	}
	sort.Strings(found)
	return append(out, found...), nil
}

func isSupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

func writeResult(w io.Writer, res *reconcile.Result, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(res)
	case "", "table":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tIMAGE\tCELL\tITEM\tQTY\tUNIT\tTOTAL")
	for _, l := range res.Lines {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%g\t%g\n", l.Seq, l.Image, l.Cell, l.Item, l.Quantity, l.UnitValue, l.Total)
	}
	fmt.Fprintln(tw)
	for _, img := range res.Images {
		status := fmt.Sprintf("%d lines", img.Lines)
		if img.Err != "" {
			status = "skipped: " + img.Err
		}
		fmt.Fprintf(tw, "\t%s\t\t%s\t\t\t%g\n", img.Name, status, img.Subtotal)
	}
	fmt.Fprintf(tw, "\tTOTAL\t\t\t\t\t%g\n", res.Total)
	return tw.Flush()
}
