package mdcode

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
)

// Extraction modes accepted by [ExtractorFor].
const (
	ModeRegex    = "regex"
	ModeMarkdown = "markdown"
)

// ErrUnknownMode is returned by [ExtractorFor] for an unsupported mode.
var ErrUnknownMode = errors.New("unknown extraction mode")

// Extractor returns the blocks of a single language found in a document.
type Extractor func(source []byte) (Blocks, error)

// ExtractorFor returns the extractor for mode. An empty mode selects [ModeRegex].
func ExtractorFor(mode, lang string) (Extractor, error) {
	switch mode {
	case "", ModeRegex:
		re := fenceRegexp(lang)

		return func(source []byte) (Blocks, error) {
			return extract(re, source, lang), nil
		}, nil
	case ModeMarkdown:
		return func(source []byte) (Blocks, error) {
			return Fenced(source, lang)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Extract returns every block opened by a line "```<lang>" and closed by the
// nearest following "```" line. The newline before the closing fence is not part
// of the code. An opening fence without a closer yields nothing.
func Extract(source []byte, lang string) Blocks {
	return extract(fenceRegexp(lang), source, lang)
}

func fenceRegexp(lang string) *regexp.Regexp {
	// The lazy optional group lets an empty block close on its own fence instead
	// of running into the next one.
	return regexp.MustCompile("(?s)```" + regexp.QuoteMeta(lang) + "\n(?:(.*?)\n)??```")
}

func extract(re *regexp.Regexp, source []byte, lang string) Blocks {
	source = bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n"))

	matches := re.FindAllSubmatchIndex(source, -1)
	if len(matches) == 0 {
		return nil
	}

	blocks := make(Blocks, 0, len(matches))

	for i, m := range matches {
		var code string
		if m[2] >= 0 {
			code = string(source[m[2]:m[3]])
		}

		blocks = append(blocks, &Block{
			Lang:      lang,
			Code:      code,
			Ordinal:   i + 1,
			StartLine: lineAt(source, m[0]),
			EndLine:   lineAt(source, m[1]-1),
		})
	}

	return blocks
}

func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}

	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}
