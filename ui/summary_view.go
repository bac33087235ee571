package ui

import "strings"

type SummaryRow struct {
	NumberLabel string
	Branch      string
	Upstream    string
	Result      string
	Failed      bool
	Skipped     bool
}

// RenderSummary lays the run results out as a fixed-width table.
func RenderSummary(rows []SummaryRow, styles Styles) string {
	const (
		numberWidth   = 6
		branchWidth   = 32
		upstreamWidth = 32
		resultWidth   = 18
	)
	var b strings.Builder
	header := formatSummaryLine("PR", "Branch", "Onto", "Result", numberWidth, branchWidth, upstreamWidth, resultWidth)
	b.WriteString(styles.Header("  " + strings.TrimRight(header, " ")))
	b.WriteString("\n")
	for _, row := range rows {
		upstream := row.Upstream
		if upstream == "" {
			upstream = "-"
		}
		line := strings.TrimRight(formatSummaryLine(row.NumberLabel, row.Branch, upstream, row.Result, numberWidth, branchWidth, upstreamWidth, resultWidth), " ")
		switch {
		case row.Failed:
			line = styles.Failure(line)
		case row.Skipped:
			line = styles.Warn(line)
		}
		b.WriteString("  " + line)
		b.WriteString("\n")
	}
	return b.String()
}

func formatSummaryLine(number string, branch string, upstream string, result string, numberWidth int, branchWidth int, upstreamWidth int, resultWidth int) string {
	return PadOrTrim(number, numberWidth) + " " +
		PadOrTrim(branch, branchWidth) + " " +
		PadOrTrim(upstream, upstreamWidth) + " " +
		PadOrTrim(result, resultWidth)
}
