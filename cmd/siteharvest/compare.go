package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/siteharvest/internal/config"
	"github.com/nao1215/siteharvest/internal/database"
)

// defaultListLimit is the number of runs listed by compare --list.
const defaultListLimit = 20

// RouteDiff is the difference between the route paths of two runs.
type RouteDiff struct {
	OldRunID  int64    `json:"old_run_id"`
	NewRunID  int64    `json:"new_run_id"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged int      `json:"unchanged"`

	// Pages compares the documents emitted by the live crawls.
	Pages PageDiff `json:"pages"`
}

// PageDiff is the difference between the crawled pages of two runs.
type PageDiff struct {
	Added   []string     `json:"added"`
	Removed []string     `json:"removed"`
	Changed []PageChange `json:"changed"`
}

// PageChange is a page crawled in both runs whose content differs.
type PageChange struct {
	URL          string `json:"url"`
	OldTextChars int    `json:"old_text_chars"`
	NewTextChars int    `json:"new_text_chars"`
}

// NewCompareCmd creates the compare command.
// This command compares route inventories stored in the run history.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [old-run-id new-run-id]",
		Short: "Compare route inventories of recorded runs",
		Long: `Compare shows which route paths appeared or disappeared between two runs,
and which crawled pages were added, removed or changed content.

Every extract run is recorded in the history database. Without arguments the
two most recent runs are compared.

Examples:
  # Compare the latest two runs
  siteharvest compare

  # Compare two specific runs
  siteharvest compare 3 7

  # List recorded runs
  siteharvest compare --list

  # Output the difference as JSON
  siteharvest compare --json

  # Remove a run from the history
  siteharvest compare --delete 3`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or two run IDs, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List recorded runs")
	cmd.Flags().IntP("limit", "n", defaultListLimit,
		"Number of runs shown by --list (0 for all)")
	cmd.Flags().Int64("delete", 0,
		"Delete the run with this ID from the history")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	// Parse IDs before opening the database so bad input fails fast.
	var ids []int64
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid run ID %q", arg)
		}
		ids = append(ids, id)
	}

	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}
	if deleteID < 0 || (deleteID > 0 && len(ids) > 0) {
		return errors.New("--delete takes one positive run ID and no arguments")
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if deleteID > 0 {
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run #%d\n", deleteID)
		return nil
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		return listRuns(ctx, db, limit, out)
	}

	diff, err := compareRuns(ctx, db, ids)
	if err != nil {
		return err
	}

	switch {
	case jsonOutput:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	case markdownOutput:
		return writeDiffMarkdown(out, diff)
	default:
		writeDiffText(out, diff)
		return nil
	}
}

// listRuns prints the recorded runs, newest first.
func listRuns(ctx context.Context, db *database.RunDB, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'siteharvest extract' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-8s  %s\n", "ID", "Date", "Pages", "Failures", "Hosts")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-8d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Pages,
			r.Failures,
			strings.Join(r.PrimaryHosts, ", "),
		)
	}
	return nil
}

// compareRuns loads two runs and diffs their route paths and crawled
// pages. With no IDs the two most recent runs are used.
func compareRuns(ctx context.Context, db *database.RunDB, ids []int64) (*RouteDiff, error) {
	var older, newer *database.Run
	if len(ids) == 2 {
		var err error
		if older, err = db.GetRun(ctx, ids[0]); err != nil {
			return nil, err
		}
		if newer, err = db.GetRun(ctx, ids[1]); err != nil {
			return nil, err
		}
	} else {
		runs, err := db.LatestRuns(ctx, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to load runs: %w", err)
		}
		if len(runs) < 2 {
			return nil, errors.New("at least two recorded runs are required (use 'siteharvest extract' to record runs)")
		}
		newer, older = runs[0], runs[1]
	}

	diff := diffRoutePaths(older.Routes.AllRoutePaths, newer.Routes.AllRoutePaths)
	diff.OldRunID = older.ID
	diff.NewRunID = newer.ID

	oldPages, err := db.GetPages(ctx, older.ID)
	if err != nil {
		return nil, err
	}
	newPages, err := db.GetPages(ctx, newer.ID)
	if err != nil {
		return nil, err
	}
	diff.Pages = diffPages(oldPages, newPages)
	return diff, nil
}

// diffPages compares pages by URL. A page present in both runs is changed
// when its body hash or its text length differs.
func diffPages(oldPages, newPages []database.PageRecord) PageDiff {
	oldByURL := make(map[string]database.PageRecord, len(oldPages))
	for _, p := range oldPages {
		oldByURL[p.URL] = p
	}
	newByURL := make(map[string]database.PageRecord, len(newPages))
	for _, p := range newPages {
		newByURL[p.URL] = p
	}

	diff := PageDiff{Added: []string{}, Removed: []string{}, Changed: []PageChange{}}
	for u, np := range newByURL {
		op, ok := oldByURL[u]
		switch {
		case !ok:
			diff.Added = append(diff.Added, u)
		case op.RawHash != np.RawHash || op.TextChars != np.TextChars:
			diff.Changed = append(diff.Changed, PageChange{URL: u, OldTextChars: op.TextChars, NewTextChars: np.TextChars})
		}
	}
	for u := range oldByURL {
		if _, ok := newByURL[u]; !ok {
			diff.Removed = append(diff.Removed, u)
		}
	}
	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.SortFunc(diff.Changed, func(a, b PageChange) int { return strings.Compare(a.URL, b.URL) })
	return diff
}

// diffRoutePaths returns the paths only in newPaths as added and the paths
// only in oldPaths as removed, both sorted.
func diffRoutePaths(oldPaths, newPaths []string) *RouteDiff {
	oldSet := make(map[string]bool, len(oldPaths))
	for _, p := range oldPaths {
		oldSet[p] = true
	}
	newSet := make(map[string]bool, len(newPaths))
	for _, p := range newPaths {
		newSet[p] = true
	}

	diff := &RouteDiff{Added: []string{}, Removed: []string{}}
	for p := range newSet {
		if oldSet[p] {
			diff.Unchanged++
		} else {
			diff.Added = append(diff.Added, p)
		}
	}
	for p := range oldSet {
		if !newSet[p] {
			diff.Removed = append(diff.Removed, p)
		}
	}
	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	return diff
}

func writeDiffText(out io.Writer, diff *RouteDiff) {
	fmt.Fprintf(out, "Route changes from run #%d to run #%d\n\n", diff.OldRunID, diff.NewRunID)
	fmt.Fprintf(out, "  Added:     %d\n", len(diff.Added))
	fmt.Fprintf(out, "  Removed:   %d\n", len(diff.Removed))
	fmt.Fprintf(out, "  Unchanged: %d\n", diff.Unchanged)

	if len(diff.Added) == 0 && len(diff.Removed) == 0 {
		fmt.Fprintln(out, "\nNo route changes.")
	} else {
		fmt.Fprintln(out)
		for _, p := range diff.Added {
			fmt.Fprintf(out, "  + %s\n", p)
		}
		for _, p := range diff.Removed {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}

	pages := diff.Pages
	fmt.Fprintf(out, "\nPage changes\n\n")
	fmt.Fprintf(out, "  Added:     %d\n", len(pages.Added))
	fmt.Fprintf(out, "  Removed:   %d\n", len(pages.Removed))
	fmt.Fprintf(out, "  Changed:   %d\n", len(pages.Changed))
	if len(pages.Added)+len(pages.Removed)+len(pages.Changed) == 0 {
		return
	}

	fmt.Fprintln(out)
	for _, u := range pages.Added {
		fmt.Fprintf(out, "  + %s\n", u)
	}
	for _, u := range pages.Removed {
		fmt.Fprintf(out, "  - %s\n", u)
	}
	for _, c := range pages.Changed {
		fmt.Fprintf(out, "  ~ %s (%d -> %d chars)\n", c.URL, c.OldTextChars, c.NewTextChars)
	}
}

func writeDiffMarkdown(out io.Writer, diff *RouteDiff) error {
	md := markdown.NewMarkdown(out)

	md.H1(fmt.Sprintf("Route changes: run #%d to run #%d", diff.OldRunID, diff.NewRunID))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Routes"},
		Rows: [][]string{
			{"Added", strconv.Itoa(len(diff.Added))},
			{"Removed", strconv.Itoa(len(diff.Removed))},
			{"Unchanged", strconv.Itoa(diff.Unchanged)},
		},
	})
	md.PlainText("")

	for _, section := range []struct {
		title string
		paths []string
	}{
		{"Added", diff.Added},
		{"Removed", diff.Removed},
	} {
		if len(section.paths) == 0 {
			continue
		}
		md.H2(section.title)
		md.PlainText("")
		items := make([]string, 0, len(section.paths))
		for _, p := range section.paths {
			items = append(items, "`"+p+"`")
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	pages := diff.Pages
	if len(pages.Added)+len(pages.Removed)+len(pages.Changed) > 0 {
		rows := make([][]string, 0, len(pages.Added)+len(pages.Removed)+len(pages.Changed))
		for _, u := range pages.Added {
			rows = append(rows, []string{"Added", u, ""})
		}
		for _, u := range pages.Removed {
			rows = append(rows, []string{"Removed", u, ""})
		}
		for _, c := range pages.Changed {
			rows = append(rows, []string{"Changed", c.URL, fmt.Sprintf("%d -> %d", c.OldTextChars, c.NewTextChars)})
		}
		md.H2("Page changes")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Change", "URL", "Text chars"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}
