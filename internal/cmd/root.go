// Package cmd implements the mermaidcheck command line.
package cmd

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ezerfernandes/mermaidcheck/internal/finder"
	"github.com/ezerfernandes/mermaidcheck/internal/lint"
	"github.com/ezerfernandes/mermaidcheck/internal/mdcode"
	"github.com/ezerfernandes/mermaidcheck/internal/mermaid"
	"github.com/spf13/cobra"
)

//go:embed help/check.md
var checkHelp string

// Exit codes returned by [Execute].
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitFatal   = 2
)

var errValidationFailed = errors.New("mermaid validation failed")

type openFunc func(ctx context.Context, opts mermaid.Options) (mermaid.Parser, error)

// Execute runs mermaidcheck with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, args, stdout, stderr, mermaid.Open)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open openFunc) int {
	opts := &options{open: open}

	root := rootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errValidationFailed):
		return ExitFailure
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return ExitFatal
	}
}

func rootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "mermaidcheck [flags] [root]",
		Short: "Validate the syntax of mermaid diagrams in Markdown files",
		Long:  checkHelp,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd, args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},

		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	flags(cmd)

	return cmd
}

func check(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: opts.level()}))

	find, err := finder.New(finder.Options{Exclude: opts.exclude})
	if err != nil {
		return err
	}

	extract, err := mdcode.ExtractorFor(opts.mode, lint.Lang)
	if err != nil {
		return err
	}

	moduleDir := opts.moduleDir
	if len(moduleDir) == 0 {
		moduleDir = opts.root
	}

	logger.Debug("starting parser", "backend", opts.parser, "dir", moduleDir)

	parser, err := opts.open(ctx, mermaid.Options{
		Backend: opts.parser,
		Config:  mermaid.Config{StartOnLoad: false, Theme: opts.theme},
		Node:    opts.node,
		Command: opts.command,
		Dir:     moduleDir,
		Timeout: opts.timeout,
		Stderr:  stderr,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	defer parser.Close()

	logger.Debug("scanning", "root", opts.root)

	checker := &lint.Checker{
		FS:      os.DirFS(opts.root),
		Root:    opts.root,
		Finder:  find,
		Extract: extract,
		Parser:  parser,
		Out:     stdout,
		Logger:  logger,
	}

	report, err := checker.Run(ctx)
	if err != nil {
		return err
	}

	if opts.stats && !opts.quiet {
		lint.WriteStats(stdout, report)
	}

	if !report.Passed() {
		lint.Summarize(stdout, report)

		return errValidationFailed
	}

	if !opts.quiet {
		lint.Summarize(stdout, report)
	}

	return nil
}
