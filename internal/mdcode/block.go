package mdcode

// Block is a fenced code block extracted from a Markdown document.
type Block struct {
	Lang string
	Code string
	// Ordinal is the 1-based position of the block among the blocks of the same
	// language in its document.
	Ordinal   int
	StartLine int
	EndLine   int
}

type Blocks []*Block
