package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/state"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of builds to show" default:"20"`
	ID    string `arg:"" optional:"" help:"Show a single build"`
	JSON  bool   `name:"json" help:"Print JSON"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.State.Path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryState, "failed to open build history").
			WithContext("path", cfg.State.Path).Build()
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	var records []state.Record
	if c.ID != "" {
		rec, err := store.Get(ctx, c.ID)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryNotFound, "build not found").
				WithContext("id", c.ID).Build()
		}
		records = []state.Record{rec}
	} else {
		records, err = store.Recent(ctx, c.Limit)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryState, "failed to read build history").Build()
		}
	}
	return writeHistory(os.Stdout, records, c.JSON)
}

type historyRow struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	DurationMS       int64     `json:"duration_ms"`
	Outcome          string    `json:"outcome"`
	Pages            int       `json:"pages"`
	PassthroughFiles int       `json:"passthrough_files"`
	Warnings         int       `json:"warnings"`
}

func writeHistory(w io.Writer, records []state.Record, asJSON bool) error {
	if asJSON {
		rows := make([]historyRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, historyRow{
				ID: r.ID, StartedAt: r.StartedAt, DurationMS: r.Duration.Milliseconds(),
				Outcome: r.Outcome, Pages: r.Pages, PassthroughFiles: r.PassthroughFiles, Warnings: r.Warnings,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No builds recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tOUTCOME\tPAGES\tPASSTHROUGH\tWARNINGS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Duration.Truncate(time.Millisecond),
			r.Outcome, r.Pages, r.PassthroughFiles, r.Warnings)
	}
	return tw.Flush()
}
