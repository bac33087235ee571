package main

import (
	"context"
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/mrbonezy/restack/stack"
	"github.com/mrbonezy/restack/ui"
)

// outputStyles colours output only for a terminal that has not asked for
// NO_COLOR.
func outputStyles(w io.Writer) ui.Styles {
	if testModeEnabled() || termenv.EnvNoColor() || !isTerminalWriter(w) {
		return ui.PlainStyles()
	}
	return ui.ColorStyles(true)
}

func stackEntries(refs []stack.PullRequestRef) []ui.StackEntry {
	out := make([]ui.StackEntry, 0, len(refs))
	for _, r := range refs {
		out = append(out, ui.StackEntry{Number: r.ID, Head: r.HeadBranch, Base: r.BaseBranch, URL: r.URL})
	}
	return out
}

// progressObserver prints one line per PR as the orchestrator finishes it,
// with a spinner while a rebase runs.
type progressObserver struct {
	out    io.Writer
	colors ui.BranchColors
	styles ui.Styles
	remote string
	push   bool
	dryRun bool

	stopSpinner func()
}

func newProgressObserver(out io.Writer, colors ui.BranchColors, styles ui.Styles, settings runSettings) *progressObserver {
	return &progressObserver{
		out:         out,
		colors:      colors,
		styles:      styles,
		remote:      settings.Remote,
		push:        settings.Push,
		dryRun:      settings.DryRun,
		stopSpinner: func() {},
	}
}

func (p *progressObserver) line(pr stack.PullRequestRef, upstream string) ui.StepLine {
	return ui.StepLine{
		Entry:    ui.StackEntry{Number: pr.ID, Head: pr.HeadBranch, Base: pr.BaseBranch, URL: pr.URL},
		Upstream: upstream,
		Remote:   p.remote,
		Push:     p.push,
	}
}

func (p *progressObserver) StepStarted(pr stack.PullRequestRef, upstream string) {
	if p.dryRun {
		return
	}
	msg := ui.FormatStep(p.line(pr, upstream), p.colors, p.styles)
	if p.push {
		msg += " + push"
	}
	p.stopSpinner = startDelayedSpinner(msg, 0)
}

func (p *progressObserver) StepFinished(result stack.BranchResult) {
	p.stopSpinner()
	p.stopSpinner = func() {}

	if result.Outcome == stack.OutcomeSkipped {
		msg := fmt.Sprintf("%s %s", p.styles.Bold(fmt.Sprintf("#%d", result.PR.ID)), p.styles.Branch(p.colors.Slot(result.PR.HeadBranch), result.PR.HeadBranch))
		if result.Err != nil {
			msg += p.styles.Secondary(" (" + result.Err.Error() + ")")
		}
		fmt.Fprintln(p.out, ui.StatusLine(ui.MarkSkipped, msg, p.styles))
		return
	}
	if p.dryRun {
		fmt.Fprintln(p.out, "  "+ui.FormatPlannedStep(p.line(result.PR, result.Upstream), p.colors, p.styles))
		return
	}
	msg := ui.FormatStep(p.line(result.PR, result.Upstream), p.colors, p.styles)
	switch result.Outcome {
	case stack.OutcomePushSucceeded:
		fmt.Fprintln(p.out, ui.StatusLine(ui.MarkOK, msg+" + push", p.styles))
	case stack.OutcomeRebased:
		fmt.Fprintln(p.out, ui.StatusLine(ui.MarkOK, msg, p.styles))
	default:
		fmt.Fprintln(p.out, ui.StatusLine(ui.MarkFailed, msg, p.styles))
	}
}

// reportingOperations shows a spinner and a result line around the fetch.
type reportingOperations struct {
	stack.Operations
	out    io.Writer
	styles ui.Styles
}

func (r reportingOperations) Fetch(ctx context.Context, remote string) error {
	msg := "Fetching " + remote
	stop := startDelayedSpinner(msg, 0)
	err := r.Operations.Fetch(ctx, remote)
	stop()
	mark := ui.MarkOK
	if err != nil {
		mark = ui.MarkFailed
	}
	fmt.Fprintln(r.out, ui.StatusLine(mark, msg, r.styles))
	return err
}

func outcomeLabel(o stack.Outcome) string {
	switch o {
	case stack.OutcomePushSucceeded:
		return "rebased + pushed"
	case stack.OutcomeRebased:
		return "rebased"
	case stack.OutcomeRebaseFailed:
		return "rebase failed"
	case stack.OutcomePushFailed:
		return "push failed"
	case stack.OutcomeSkipped:
		return "skipped"
	default:
		return string(o)
	}
}

func summaryRows(summary *stack.Summary) []ui.SummaryRow {
	rows := make([]ui.SummaryRow, 0, len(summary.Results))
	for _, r := range summary.Results {
		rows = append(rows, ui.SummaryRow{
			NumberLabel: fmt.Sprintf("#%d", r.PR.ID),
			Branch:      r.PR.HeadBranch,
			Upstream:    r.Upstream,
			Result:      outcomeLabel(r.Outcome),
			Failed:      r.Outcome == stack.OutcomeRebaseFailed || r.Outcome == stack.OutcomePushFailed,
			Skipped:     r.Outcome == stack.OutcomeSkipped,
		})
	}
	return rows
}
