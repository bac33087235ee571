package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/restack/gh"
)

type restackFlags struct {
	dryRun      bool
	noPush      bool
	noAutostash bool
	yes         bool
	debug       bool
	remote      string
	conflict    string
}

func newRootCommand(args []string) *cobra.Command {
	var flags restackFlags
	var showVersion bool
	root := &cobra.Command{
		Use:   "restack [PR...]",
		Short: "Rebase stacked PRs onto their current base branches",
		Long: "Rebases every open pull request whose head branch is checked out in a worktree onto its base, " +
			"bases first, then force-pushes each branch with a lease.\n\n" +
			"Pass PR numbers to restack only those PRs. Requires `git` and `gh`.",
		Example: strings.Join([]string{
			"  restack",
			"  restack 12 13 --dry-run",
			"  restack --no-push --conflict abort",
		}, "\n"),
		// PR numbers are positional, not subcommand names.
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return runVersionCommand(cmd)
			}
			ids, err := parsePRArgs(cmd, args)
			if err != nil {
				return err
			}
			return runRestack(cmd, ids, flags)
		},
	}
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Print restack version and exit")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show what would be done without rebasing or pushing")
	root.Flags().BoolVar(&flags.noPush, "no-push", false, "Skip pushing branches after rebasing")
	root.Flags().BoolVar(&flags.noAutostash, "no-autostash", false, "Do not stash uncommitted changes around each rebase")
	root.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Do not ask before pushing")
	root.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Write a debug log")
	root.Flags().StringVar(&flags.remote, "remote", "", "Remote to fetch from and push to (default from config, else origin)")
	root.Flags().StringVar(&flags.conflict, "conflict", "", "What to do with a conflicted rebase: leave or abort")

	root.AddCommand(newTreeCommand(), newConfigCommand(), newVersionCommand())

	if len(args) > 1 {
		root.SetArgs(args[1:])
	}
	return root
}

func newTreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [PR...]",
		Short: "Print the PR stack without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePRArgs(cmd, args)
			if err != nil {
				return err
			}
			return runTree(cmd, ids)
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd)
		},
	})
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print restack version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersionCommand(cmd)
		},
	}
}

func runVersionCommand(cmd *cobra.Command) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), currentVersion())
	return err
}

// parsePRArgs parses PR numbers, dropping repeats but keeping first-seen
// order.
func parsePRArgs(cmd *cobra.Command, args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	seen := make(map[int]struct{}, len(args))
	for _, raw := range args {
		n, err := gh.ParseNumber(raw)
		if err != nil {
			return nil, usageError(cmd, err.Error())
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	return ids, nil
}

func usageError(cmd *cobra.Command, message string) error {
	return fmt.Errorf("%s\n\n%s", message, strings.TrimSpace(cmd.UsageString()))
}
