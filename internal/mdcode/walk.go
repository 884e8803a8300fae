package mdcode

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var reInfo = regexp.MustCompile(`^\s*([\w-]+)`)

// Walker is a callback invoked for each fenced code block found in a Markdown
// document, in document order.
type Walker func(block *Block) error

// Walk parses a Markdown document as CommonMark and calls walker for every fenced
// code block. Blocks get their ordinal among all fenced blocks of the document.
func Walk(source []byte, walker Walker) error {
	parser := goldmark.DefaultParser()
	reader := text.NewReader(source)
	root := parser.Parse(reader).OwnerDocument()

	ordinal := 0

	return ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		node = transformCommentedCodeBlock(node, entering, source)

		fcb := asFencedCodeBlock(node, entering)
		if fcb == nil {
			return ast.WalkContinue, nil
		}

		ordinal++

		block := extractBlock(fcb, source)
		block.Ordinal = ordinal

		if err := walker(block); err != nil {
			return ast.WalkStop, err
		}

		return ast.WalkContinue, nil
	})
}

// Fenced returns the fenced blocks tagged exactly with lang, numbered from 1 in document
// order. The trailing newline of each block is dropped.
func Fenced(source []byte, lang string) (Blocks, error) {
	var blocks Blocks

	err := Walk(source, func(block *Block) error {
		if block.Lang != lang {
			return nil
		}

		block.Code = strings.TrimSuffix(block.Code, "\n")
		block.Ordinal = len(blocks) + 1
		blocks = append(blocks, block)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

func asFencedCodeBlock(node ast.Node, entering bool) *ast.FencedCodeBlock {
	if entering || node.Kind() != ast.KindFencedCodeBlock {
		return nil
	}

	if fcb, ok := node.(*ast.FencedCodeBlock); ok {
		return fcb
	}

	return nil
}

func extractBlock(fcb *ast.FencedCodeBlock, source []byte) *Block {
	block := &Block{Lang: extractLang(fcb, source), Code: extractCode(fcb, source)}
	block.StartLine, block.EndLine = extractLines(fcb, source)

	return block
}

func extractLines(fcb *ast.FencedCodeBlock, source []byte) (int, int) {
	var startLine, endLine int

	lines := fcb.Lines()

	if fcb.Info != nil {
		startLine = lineAt(source, fcb.Info.Segment.Start)
	} else if lines.Len() > 0 {
		startLine = lineAt(source, lines.At(0).Start) - 1
	}

	if lines.Len() > 0 {
		endLine = lineAt(source, lines.At(lines.Len()-1).Stop)
	} else if startLine > 0 {
		endLine = startLine + 1
	}

	return startLine, endLine
}

func extractCode(fcb *ast.FencedCodeBlock, source []byte) string {
	var buff bytes.Buffer

	lines := fcb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)

		buff.Write(seg.Value(source))
	}

	return buff.String()
}

func extractLang(fcb *ast.FencedCodeBlock, source []byte) string {
	if fcb.Info == nil {
		return ""
	}

	all := reInfo.FindSubmatch(fcb.Info.Text(source))
	if all == nil {
		return ""
	}

	return string(all[1])
}

var (
	reCommentedCodeBlock = regexp.MustCompile(`^\s*(<!--)?\s*<script\s*type=["']text/markdown["']\s*>\s*$`)
	reFences             = regexp.MustCompile("^\\s*(```|~~~)")
)

// transformCommentedCodeBlock turns a fenced block wrapped in
// <script type="text/markdown"> into a regular fenced code block node.
func transformCommentedCodeBlock(node ast.Node, entering bool, source []byte) ast.Node { //nolint:ireturn
	if entering || node.Kind() != ast.KindHTMLBlock {
		return node
	}

	html, ok := node.(*ast.HTMLBlock)
	if !ok {
		return node
	}

	const minLines = 2

	lines := html.Lines()
	if lines.Len() < minLines {
		return node
	}

	first := lines.At(0)
	if !reCommentedCodeBlock.Match(first.Value(source)) {
		return node
	}

	seg := lines.At(1)

	loc := reFences.FindIndex(seg.Value(source))
	if loc == nil {
		return node
	}

	info := ast.NewTextSegment(text.NewSegment(seg.Start+loc[1], seg.Stop-1))
	fcb := ast.NewFencedCodeBlock(info)

	last := lines.At(lines.Len() - 1)
	if !reFences.Match(last.Value(source)) {
		return node
	}

	segs := text.NewSegments()

	for i := 2; i < lines.Len()-1; i++ {
		segs.Append(lines.At(i))
	}

	fcb.SetLines(segs)

	return fcb
}
