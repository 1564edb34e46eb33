package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	var configPath, panelID, loadID string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent panel loads recorded by serve",
		Long: "Print recent panel loads recorded by serve. With --load, print one load " +
			"together with the state results or trend points stored for it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Storage.MaxLoads, cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			if loadID != "" {
				return printLoad(cmd.OutOrStdout(), store, loadID)
			}
			loads, err := store.RecentLoads(panelID, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), loads)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&panelID, "panel", "", "Only show loads of this panel")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of loads to show")
	cmd.Flags().StringVar(&loadID, "load", "", "Show the stored data of the load with this id")
	return cmd
}

func printHistory(w io.Writer, loads []models.LoadRecord) error {
	if len(loads) == 0 {
		_, err := fmt.Fprintln(w, "No loads recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOADED\tPANEL\tGEN\tSTATUS\tHARRIS\tTRUMP\tROWS\tMESSAGE\tID")
	for _, l := range loads {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			humanize.Time(l.LoadedAt), l.PanelID, l.Generation, l.Status,
			l.Totals.Harris, l.Totals.Trump, l.Rows, l.Message, l.ID)
	}
	return tw.Flush()
}

// printLoad prints one recorded load followed by whatever data was stored with it.
// Failed loads and curve panels have no stored data.
func printLoad(w io.Writer, store *storage.Storage, id string) error {
	rec, err := store.GetLoad(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Load %s of panel %s (generation %d)\n", rec.ID, rec.PanelID, rec.Generation)
	fmt.Fprintf(w, "Source: %s\n", rec.Source)
	fmt.Fprintf(w, "Loaded: %s (%s)\n", rec.LoadedAt.Format("2006-01-02 15:04:05"), humanize.Time(rec.LoadedAt))
	if rec.Status == models.LoadError {
		_, err := fmt.Fprintf(w, "Status: %s (%s): %s\n", rec.Status, rec.ErrorKind, rec.Message)
		return err
	}
	fmt.Fprintf(w, "Status: %s\n", rec.Status)

	ds, err := store.LoadResults(id)
	switch {
	case err == nil:
		return printResults(w, ds)
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	points, err := store.LoadTrend(id)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "No data stored for this load")
		return err
	}
	return printTrend(w, points)
}

func printResults(w io.Writer, ds *models.ElectionDataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tWINNER\tVOTES\tBREAKDOWN")
	for _, r := range ds.Results() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t", r.Code, r.Winner, r.ElectoralVotes)
		for i, b := range r.Breakdown {
			if i > 0 {
				fmt.Fprint(tw, ", ")
			}
			fmt.Fprintf(tw, "%s %.1f%%", b.Label, b.Percent)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printTotals(w, ds.Totals(), ds.Len())
	return nil
}

func printTrend(w io.Writer, points []models.TrendRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tHARRIS\tTRUMP\tHARRIS AVG\tTRUMP AVG")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\n", p.Date.Format("01/02/2006"),
			humanize.Comma(int64(p.HarrisDaily)), humanize.Comma(int64(p.TrumpDaily)), p.HarrisAvg, p.TrumpAvg)
	}
	return tw.Flush()
}
