package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ncval/internal/cache"
	"ncval/internal/validator"
)

func newRunCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run [files...]",
		Short: "Validate many images non-interactively",
		Long: `Validate several code images in parallel and print one line per file.
Identical images are validated once.`,
		Example: `
# Validate every image in a directory with four workers
ncval run -w 4 build/*.nexe

# JSON lines for regression testing
ncval run --json a.bin b.bin
  `,
		Args: cobra.MinimumNArgs(1),
		RunE: runBatch,
	}
	c.Flags().IntP("workers", "w", 0, "Parallel validations (default: number of CPUs)")
	return c
}

type batchResult struct {
	in     *input
	report *validator.Report
	cached bool
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	v, err := cfg.NewValidator()
	if err != nil {
		return err
	}
	c, err := cache.New(cfg.CacheSize)
	if err != nil {
		return err
	}

	// Each worker loads and validates one file. Identical images share
	// one validation through the cache.
	results := make([]batchResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := loadInput(path, cfg)
			if err != nil {
				return err
			}
			rep, cached := c.Lookup(v, in.region(cfg))
			results[i] = batchResult{in: in, report: rep, cached: cached}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rejected := 0
	out := cmd.OutOrStdout()
	for _, res := range results {
		if !res.report.Accepted {
			rejected++
		}
		if jsonOutput {
			o := newJSONOutput(res.in, v.Fingerprint(), res.report)
			o.Cached = res.cached
			if err := writeJSON(out, o); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, summaryLine(res.in, res.report))
	}

	slog.Debug("Batch finished", "files", len(results), "rejected", rejected, "cache", c.Stats().String())
	if rejected > 0 {
		return fmt.Errorf("%d of %d images %w", rejected, len(results), ErrRejected)
	}
	return nil
}
