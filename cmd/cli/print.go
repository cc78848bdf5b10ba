package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	apiv1 "github.com/espressif/esp-bist/api/v1"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	passStyle   = cellStyle.Foreground(lipgloss.Color("2"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("1")).Bold(true)
)

// styled reports whether w is a terminal worth colouring.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newTable(w io.Writer, headers ...string) *table.Table {
	t := table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
	if !styled(w) {
		return t.StyleFunc(func(row, col int) lipgloss.Style { return cellStyle })
	}
	return t
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func printResults(w io.Writer, results []scenario.Result) {
	rows := make([][]string, 0, len(results))
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
		rows = append(rows, []string{r.Scenario.Ref(), verdict(r.Passed), r.Duration.Round(time.Millisecond).String(), r.Summary()})
	}

	t := newTable(w, "SCENARIO", "RESULT", "TIME", "DETAIL").Rows(rows...)
	if styled(w) {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1 && results[row].Passed:
				return passStyle
			case col == 1:
				return failStyle
			default:
				return cellStyle
			}
		})
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d/%d passed\n", passed, len(results))

	for _, r := range results {
		if r.TeardownErr != nil {
			fmt.Fprintf(w, "teardown %s: %v\n", r.Scenario.Ref(), r.TeardownErr)
		}
	}
}

func printScenarios(w io.Writer, scenarios []scenario.Scenario) {
	rows := make([][]string, 0, len(scenarios))
	for _, sc := range scenarios {
		mode, bp := "boot", ""
		if sc.Fault != nil {
			mode, bp = "fault", sc.Fault.Breakpoint
		}
		rows = append(rows, []string{sc.Suite, sc.Name, mode, bp, strings.Join(sc.Expect, ", ")})
	}
	t := newTable(w, "SUITE", "SCENARIO", "MODE", "BREAKPOINT", "EXPECT").Rows(rows...)
	if styled(w) {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	}
	fmt.Fprintln(w, t.Render())
}

func printRun(w io.Writer, run *apiv1.Run) {
	rows := [][]string{
		{"ID", run.ID},
		{"SCENARIO", run.Scenario},
		{"RESULT", verdict(run.Passed)},
		{"DETAIL", run.Summary},
	}
	if run.StartTime != nil {
		rows = append(rows, []string{"STARTED", run.StartTime.AsTime().Local().Format(time.RFC3339)})
	}
	if run.Duration != nil {
		rows = append(rows, []string{"TIME", run.Duration.AsDuration().Round(time.Millisecond).String()})
	}
	if run.TeardownError != "" {
		rows = append(rows, []string{"TEARDOWN", run.TeardownError})
	}
	t := table.New().Border(lipgloss.NormalBorder()).Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 && styled(w) {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}
