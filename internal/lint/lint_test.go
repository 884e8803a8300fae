package lint_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ezerfernandes/mermaidcheck/internal/finder"
	"github.com/ezerfernandes/mermaidcheck/internal/lint"
	"github.com/ezerfernandes/mermaidcheck/internal/mdcode"
	"github.com/ezerfernandes/mermaidcheck/internal/mermaid"
	"github.com/liamg/memoryfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	calls []string
}

func (p *fakeParser) Parse(_ context.Context, code string) error {
	p.calls = append(p.calls, code)

	if strings.HasPrefix(code, "graph") {
		return nil
	}

	return &mermaid.SyntaxError{Message: "Parse error on line 1:\n" + code}
}

func (p *fakeParser) Close() error { return nil }

func fence(code string) string {
	return "```mermaid\n" + code + "\n```\n"
}

func newChecker(t *testing.T, files map[string]string) (*lint.Checker, *fakeParser, *bytes.Buffer) {
	t.Helper()

	mfs := memoryfs.New()

	for name, content := range files {
		if i := strings.LastIndex(name, "/"); i > 0 {
			require.NoError(t, mfs.MkdirAll(name[:i], 0o700))
		}

		require.NoError(t, mfs.WriteFile(name, []byte(content), 0o600))
	}

	f, err := finder.New(finder.Options{})
	require.NoError(t, err)

	extract, err := mdcode.ExtractorFor(mdcode.ModeRegex, lint.Lang)
	require.NoError(t, err)

	parser := &fakeParser{}
	out := &bytes.Buffer{}

	return &lint.Checker{
		FS:      mfs,
		Root:    "/repo",
		Finder:  f,
		Extract: extract,
		Parser:  parser,
		Out:     out,
	}, parser, out
}

func TestRunNoDiagrams(t *testing.T) {
	t.Parallel()

	checker, parser, out := newChecker(t, map[string]string{
		"README.md":     "# Readme\n\n```go\nfunc main() {}\n```\n",
		"docs/guide.md": "plain text\n",
	})

	report, err := checker.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Equal(t, 2, report.Files)
	assert.Zero(t, report.Blocks)
	assert.Empty(t, report.Results)
	assert.Empty(t, parser.calls)
	assert.Empty(t, out.String())
}

func TestRunContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	checker, parser, out := newChecker(t, map[string]string{
		"docs/arch.md": fence("sequence A->B") + "\n" + fence("graph TD; A-->B"),
	})

	report, err := checker.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"sequence A->B", "graph TD; A-->B"}, parser.calls)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.Blocks)
	assert.Equal(t,
		"Mermaid parse error in /repo/docs/arch.md [block #1]:\nParse error on line 1:\nsequence A->B\n",
		out.String())

	require.Len(t, report.Results, 1)
	require.Len(t, report.Results[0].Failures, 1)
	assert.Equal(t, 1, report.Results[0].Failures[0].Block.Ordinal)
}

func TestRunOrdinalsResetPerFile(t *testing.T) {
	t.Parallel()

	checker, _, out := newChecker(t, map[string]string{
		"a.md": fence("graph TD; A-->B") + fence("bad one"),
		"b.md": fence("bad two"),
	})

	report, err := checker.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Failures)
	assert.Equal(t,
		"Mermaid parse error in /repo/a.md [block #2]:\nParse error on line 1:\nbad one\n"+
			"Mermaid parse error in /repo/b.md [block #1]:\nParse error on line 1:\nbad two\n",
		out.String())
}

func TestRunSkipsExcludedTrees(t *testing.T) {
	t.Parallel()

	checker, parser, _ := newChecker(t, map[string]string{
		"node_modules/pkg/README.md": fence("broken"),
		".venv/lib/doc.md":           fence("broken"),
		"docs/ok.md":                 fence("graph LR; X-->Y"),
	})

	report, err := checker.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Equal(t, []string{"graph LR; X-->Y"}, parser.calls)
}

type ctxParser struct {
	calls int
}

func (p *ctxParser) Parse(ctx context.Context, _ string) error {
	p.calls++

	return ctx.Err()
}

func (p *ctxParser) Close() error { return nil }

func TestRunAbortsWhenCancelled(t *testing.T) {
	t.Parallel()

	checker, _, out := newChecker(t, map[string]string{
		"a.md": fence("graph TD; A-->B") + fence("graph TD; B-->C") + fence("graph TD; C-->D"),
		"b.md": fence("graph TD; D-->E"),
	})

	parser := &ctxParser{}
	checker.Parser = parser

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := checker.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Empty(t, out.String())
	assert.Zero(t, parser.calls)
}

func TestRunStopsAtCancelledBlock(t *testing.T) {
	t.Parallel()

	checker, _, out := newChecker(t, map[string]string{
		"a.md": fence("graph TD; A-->B") + fence("graph TD; B-->C") + fence("graph TD; C-->D"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parser := &ctxParser{}
	checker.Parser = cancelAfter{Parser: parser, cancel: cancel}

	_, err := checker.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, parser.calls)
	assert.Empty(t, out.String())
}

type cancelAfter struct {
	mermaid.Parser
	cancel context.CancelFunc
}

func (p cancelAfter) Parse(ctx context.Context, code string) error {
	p.cancel()

	return p.Parser.Parse(ctx, code)
}

func TestRunLogsFencedBlocks(t *testing.T) {
	t.Parallel()

	checker, _, _ := newChecker(t, map[string]string{
		"a.md": "```go\npackage main\n```\n" + fence("graph TD; A-->B"),
	})

	var logs bytes.Buffer
	checker.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := checker.Run(context.Background())

	require.NoError(t, err)
	assert.Contains(t, logs.String(), "msg=\"fenced blocks\" path=/repo/a.md total=2 checked=1")
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	lint.Summarize(&out, &lint.Report{})
	assert.Equal(t, "Mermaid validation PASS\n", out.String())

	out.Reset()
	lint.Summarize(&out, &lint.Report{Failures: 1})
	assert.Equal(t, "Mermaid validation failed: 1 block(s) with errors.\n", out.String())
}

func TestWriteStats(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	lint.WriteStats(&out, &lint.Report{
		Blocks:   3,
		Failures: 1,
		Results: []lint.FileResult{
			{Path: "/repo/a.md", Blocks: 2},
			{Path: "/repo/b.md", Blocks: 1, Failures: []lint.Failure{{Message: "x"}}},
		},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "File")
	assert.Contains(t, lines[1], "/repo/a.md")
	assert.Contains(t, lines[3], "total")
}
