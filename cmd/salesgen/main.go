package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dmlat/InfoCoffee-sub001/internal/artifact"
	"github.com/dmlat/InfoCoffee-sub001/internal/catalog"
	"github.com/dmlat/InfoCoffee-sub001/internal/config"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/synth"
)

type generateOptions struct {
	catalogPath string
	years       []int
	outDir      string
	scale       float64
	logLevel    string
}

type inspectOptions struct {
	file        string
	catalogPath string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "salesgen",
		Short: "Generate and inspect synthetic vending sales artifacts",
		Long: `salesgen builds the deterministic sales history used by the dashboard.
The same catalog and year always produce byte-identical files.`,
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(), newInspectCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write products.json and sales-<year>.json",
		Long: `Generate loads the catalog, synthesizes every day of the requested years and
writes the artifacts atomically into the output directory.

Example usage:
  salesgen generate --catalog data/catalog.csv --year 2025 --out static
  salesgen generate --year 2024 --year 2025 --scale 2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "data/catalog.csv", "Catalog file (.csv or products .json)")
	cmd.Flags().IntSliceVar(&opts.years, "year", []int{time.Now().Year()}, "Year to generate, may be repeated")
	cmd.Flags().StringVar(&opts.outDir, "out", "static", "Output directory")
	cmd.Flags().Float64Var(&opts.scale, "scale", synth.DefaultScale, "Volume multiplier applied to catalog bounds")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), config.LoggerConfig{Level: opts.logLevel, Format: "text"})

	for _, year := range opts.years {
		if year < 1 || year > 9999 {
			return fmt.Errorf("year %d out of range", year)
		}
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	products, err := catalog.NewLoader().LoadFile(opts.catalogPath)
	if err != nil {
		return err
	}
	s, err := synth.New(products, catalog.DefaultLocations(), synth.WithScale(opts.scale))
	if err != nil {
		return err
	}

	path, err := artifact.WriteProducts(opts.outDir, products)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d products)\n", path, len(products))

	for _, year := range opts.years {
		start := time.Now()
		entries := artifact.Entries(s.GenerateYear(year))
		path, err := artifact.WriteSales(opts.outDir, year, entries)
		if err != nil {
			return err
		}

		events := 0
		for _, e := range entries {
			events += len(e.Events)
		}
		logger.Info("year generated", "year", year, "days", len(entries), "events", events, "duration", time.Since(start))
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d days, %d events)\n", path, len(entries), events)
	}
	return nil
}

func newInspectCmd() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a sales-<year>.json artifact per month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Sales artifact to inspect")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "Optional catalog for revenue totals")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := artifact.DecodeSales(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(opts.file), err)
	}
	months, err := artifact.SplitMonths(entries)
	if err != nil {
		return err
	}

	var prices map[int]decimal.Decimal
	if opts.catalogPath != "" {
		products, err := catalog.NewLoader().LoadFile(opts.catalogPath)
		if err != nil {
			return err
		}
		prices = make(map[int]decimal.Decimal, len(products))
		for _, p := range products {
			prices[p.ID] = p.Price.Decimal
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	header := "MONTH\tDAYS\tEVENTS"
	if prices != nil {
		header += "\tREVENUE"
	}
	fmt.Fprintln(tw, header)

	keys := make([]models.MonthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b models.MonthKey) int {
		return a.Day(1).Compare(b.Day(1))
	})

	total := 0
	for _, k := range keys {
		m := months[k]
		n := m.EventCount()
		total += n
		line := fmt.Sprintf("%s\t%d\t%d", k, len(m.Days), n)
		if prices != nil {
			line += "\t" + monthRevenue(m, prices).StringFixed(0)
		}
		fmt.Fprintln(tw, line)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\n", len(entries), total)
	return tw.Flush()
}

func monthRevenue(m *models.MonthEvents, prices map[int]decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, events := range m.Days {
		for _, e := range events {
			sum = sum.Add(prices[e.ProductID])
		}
	}
	return sum
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
