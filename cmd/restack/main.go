package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	exitSuccess        = 0
	exitPartialFailure = 1
	exitFatal          = 2
)

// errPartialFailure is returned after the summary has been printed; it
// carries no message of its own.
var errPartialFailure = errors.New("some PRs were not restacked")

func main() {
	err := run(os.Args)
	code := exitCode(err)
	if err != nil && !errors.Is(err, errPartialFailure) {
		fmt.Fprintln(os.Stderr, "restack error:", err)
	}
	os.Exit(code)
}

func run(args []string) error {
	cmd := newRootCommand(args)
	return cmd.Execute()
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errPartialFailure):
		return exitPartialFailure
	default:
		return exitFatal
	}
}
