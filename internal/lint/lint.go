// Package lint checks the Mermaid diagrams of a Markdown tree and reports the
// ones that do not parse.
package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/ezerfernandes/mermaidcheck/internal/finder"
	"github.com/ezerfernandes/mermaidcheck/internal/mdcode"
	"github.com/ezerfernandes/mermaidcheck/internal/mermaid"
)

// Lang is the info-string tag of the checked blocks.
const Lang = "mermaid"

// Failure is a block that did not parse.
type Failure struct {
	Path    string
	Block   *mdcode.Block
	Message string
}

// FileResult holds the outcome for one file with at least one block.
type FileResult struct {
	Path     string
	Blocks   int
	Failures []Failure
}

// Report summarizes a run.
type Report struct {
	Files    int
	Blocks   int
	Failures int
	Results  []FileResult
}

// Passed reports whether every block parsed.
func (r *Report) Passed() bool {
	return r.Failures == 0
}

// Checker walks FS, extracts the diagrams of every Markdown file and hands
// each one to Parser.
type Checker struct {
	FS fs.FS
	// Root is the directory FS was opened on. It prefixes reported paths.
	Root    string
	Finder  *finder.Finder
	Extract mdcode.Extractor
	Parser  mermaid.Parser
	// Out receives one diagnostic per failing block.
	Out    io.Writer
	Logger *slog.Logger
}

// Run checks every block of every file. A block failure is reported and the run
// goes on; a file system error or a cancelled ctx aborts the run.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := &Report{}

	for rel, err := range c.Finder.Walk(c.FS) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", finder.Abs(c.Root, rel), err)
		}

		path := finder.Abs(c.Root, rel)

		result, err := c.checkFile(ctx, rel, path)
		if err != nil {
			return nil, err
		}

		report.Files++

		if result.Blocks == 0 {
			continue
		}

		report.Blocks += result.Blocks
		report.Failures += len(result.Failures)
		report.Results = append(report.Results, result)
	}

	c.Logger.Debug("scan finished", "files", report.Files, "blocks", report.Blocks, "failures", report.Failures)

	return report, nil
}

func (c *Checker) checkFile(ctx context.Context, rel, path string) (FileResult, error) {
	result := FileResult{Path: path}

	source, err := fs.ReadFile(c.FS, rel)
	if err != nil {
		return result, fmt.Errorf("reading %s: %w", path, err)
	}

	blocks, err := c.Extract(source)
	if err != nil {
		return result, fmt.Errorf("extracting blocks from %s: %w", path, err)
	}

	result.Blocks = len(blocks)

	if c.Logger.Enabled(ctx, slog.LevelDebug) {
		c.logFenced(source, path, len(blocks))
	}

	for _, block := range blocks {
		err := c.Parser.Parse(ctx, block.Code)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			return result, ctxErr
		}

		if err == nil {
			c.Logger.Debug("block ok", "path", path, "block", block.Ordinal, "line", block.StartLine)

			continue
		}

		failure := Failure{Path: path, Block: block, Message: message(err)}
		result.Failures = append(result.Failures, failure)

		fmt.Fprintf(c.Out, "Mermaid parse error in %s [block #%d]:\n%s\n", path, block.Ordinal, failure.Message)
	}

	return result, nil
}

func (c *Checker) logFenced(source []byte, path string, checked int) {
	fenced, err := mdcode.Unfence(source)
	if err != nil {
		c.Logger.Debug("cannot count fenced blocks", "path", path, "error", err)

		return
	}

	c.Logger.Debug("fenced blocks", "path", path, "total", len(fenced), "checked", checked)
}

func message(err error) string {
	var syntaxErr *mermaid.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Message
	}

	return err.Error()
}

// Summarize prints the final verdict line.
func Summarize(w io.Writer, report *Report) {
	if report.Passed() {
		fmt.Fprintln(w, "Mermaid validation PASS")

		return
	}

	fmt.Fprintf(w, "Mermaid validation failed: %d block(s) with errors.\n", report.Failures)
}
