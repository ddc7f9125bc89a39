package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/qolindex/internal/normalize"
)

// revisionsCmd represents the revisions command
var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List the known ranking table format revisions",
	Long: `Lists every built-in format revision and the year schedule used when
the revision is "auto".

Example:
  go run ./cmd/qol revisions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printRevisions(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revisionsCmd)
}

func printRevisions(w io.Writer) {
	names := make([]string, 0, len(normalize.Revisions))
	for name := range normalize.Revisions {
		names = append(names, name)
	}
	sort.Strings(names)

	t := NewTable(w)
	t.SetTitle("Format revisions")
	t.AppendHeader(table.Row{"Name", "Layout", "Columns", "Rank", "Placeholders"})
	for _, name := range names {
		rev := normalize.Revisions[name]
		t.AppendRow(table.Row{
			rev.Name,
			rev.Layout.String(),
			columnsLabel(rev),
			rankLabel(rev),
			fmt.Sprintf("%q→null %q→0", rev.Sentinels.NotAvailable, rev.Sentinels.NoData),
		})
	}
	t.Render()

	fmt.Fprintln(w)
	st := NewTable(w)
	st.SetTitle(`Schedule ("auto")`)
	st.AppendHeader(table.Row{"From year", "Revision", "Description"})
	for _, e := range normalize.DefaultSchedule() {
		from := fmt.Sprint(e.FromYear)
		if e.FromYear == 0 {
			from = "earliest"
		}
		st.AppendRow(table.Row{from, e.Revision.Name, e.Revision.Description})
	}
	st.Render()
}

func columnsLabel(rev normalize.FormatRevision) string {
	if len(rev.FixedOrder) > 0 {
		return fmt.Sprintf("fixed order (%d)", len(rev.FixedOrder))
	}
	if rev.Labels != nil {
		return "labels " + rev.Labels.Version
	}
	return "-"
}

func rankLabel(rev normalize.FormatRevision) string {
	if rev.RankMode == normalize.RankComputed {
		return fmt.Sprintf("computed (%s)", rev.RankMetric)
	}
	return string(rev.RankMode)
}
