package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/electionmap/internal/config"
	"github.com/rewired-gh/electionmap/internal/ingest"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
)

type renderFlags struct {
	configPath string
	data       string
	geometry   string
	width      float64
	out        string
	policy     string
}

func newRenderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:       "render {geo|grid|trend|curve}",
		Short:     "Render one panel to a standalone SVG file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"geo", "grid", "trend", "curve"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := panel.ParseKind(args[0])
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), kind, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "Optional configuration file for render and fetch settings")
	cmd.Flags().StringVar(&f.data, "data", "", "Data source (path, file:// or http(s) URL)")
	cmd.Flags().StringVar(&f.geometry, "geometry", "", "Geometry source for geo panels (defaults to sources.geometry_url)")
	cmd.Flags().Float64Var(&f.width, "width", 0, "Drawing width (defaults to render.width)")
	cmd.Flags().StringVar(&f.out, "out", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Row policy: strict or isolate (defaults to ingest.row_policy)")
	return cmd
}

// loadCLIConfig reads path when given, otherwise uses defaults. CLI commands log to
// stderr in console format.
func loadCLIConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitWriter(os.Stderr, cfg.Logging.Level, "console")
	return cfg, nil
}

func runRender(ctx context.Context, kind panel.Kind, f renderFlags, stdout io.Writer) error {
	cfg, err := loadCLIConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.geometry != "" {
		cfg.Sources.GeometryURL = f.geometry
	}
	if f.width > 0 {
		cfg.Render.Width = f.width
	}
	if f.policy != "" {
		cfg.Ingest.RowPolicy = f.policy
	}

	opts, err := panelOptions(cfg, newFetcher(cfg))
	if err != nil {
		return err
	}
	opts.ResizeDebounce = 0
	p := panel.New("render", kind, f.data, "", opts)

	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.Load(ctx); err != nil {
		if msg := p.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}

	var buf bytes.Buffer
	if err := p.WriteSVG(&buf, 0); err != nil {
		return err
	}
	if f.out == "" || f.out == "-" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(f.out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.out, err)
	}
	logger.Info("Wrote %s (%s)", f.out, humanize.Bytes(uint64(buf.Len())))
	return nil
}

func newTotalsCmd() *cobra.Command {
	var configPath, data, policy string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print electoral vote totals by winner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			if policy == "" {
				policy = cfg.Ingest.RowPolicy
			}
			p, err := ingest.ParsePolicy(policy)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, cfg.Fetch.Timeout*time.Duration(cfg.Fetch.MaxRetries+1))
			defer cancel()

			doc, err := newFetcher(cfg).Fetch(ctx, data)
			if err != nil {
				return err
			}
			res, err := ingest.ParseElection(bytes.NewReader(doc), ingest.Options{Policy: p})
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			for _, rowErr := range res.RowErrors {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", rowErr)
			}
			printTotals(cmd.OutOrStdout(), res.Totals, res.Dataset.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Optional configuration file for fetch settings")
	cmd.Flags().StringVar(&data, "data", "", "Election results source")
	cmd.Flags().StringVar(&policy, "policy", "", "Row policy: strict or isolate")
	return cmd
}

func printTotals(w io.Writer, t models.VoteTotals, states int) {
	fmt.Fprintf(w, "%s: %s\n", models.Harris, humanize.Comma(int64(t.Harris)))
	fmt.Fprintf(w, "%s: %s\n", models.Trump, humanize.Comma(int64(t.Trump)))
	fmt.Fprintf(w, "States: %d\n", states)
}
