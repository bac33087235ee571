package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

func restackHuhTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(lipgloss.Color("#7D56F4"))
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}

func newConfirmForm(title string, description string, result *bool) *huh.Form {
	confirm := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(result)

	return huh.NewForm(huh.NewGroup(confirm)).
		WithTheme(restackHuhTheme()).
		WithShowHelp(false)
}

var confirmPushFn = func(count int, remote string) (bool, error) {
	ok := false
	form := newConfirmForm(
		fmt.Sprintf("Force-push %d branch(es) to %s?", count, remote),
		"Each push uses --force-with-lease and is refused if the remote moved since the fetch.",
		&ok,
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
