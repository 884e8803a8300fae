// Package mermaid validates Mermaid diagram sources with an external parser.
package mermaid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Config is passed to mermaidAPI.initialize.
type Config struct {
	StartOnLoad bool   `json:"startOnLoad"`
	Theme       string `json:"theme"`
}

// DefaultConfig disables rendering on load and uses the default theme.
func DefaultConfig() Config {
	return Config{StartOnLoad: false, Theme: "default"}
}

// Parser checks the syntax of a single diagram. A nil error means the diagram
// parsed. Any other error is a failure of that diagram only.
type Parser interface {
	Parse(ctx context.Context, code string) error
	Close() error
}

// SyntaxError is the failure reported for a diagram that did not parse. A crash
// of the external parser is reported the same way.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// Backends accepted by [Open].
const (
	BackendNode    = "node"
	BackendCommand = "command"
)

// ErrUnknownBackend is returned by [Open] for an unsupported backend.
var ErrUnknownBackend = errors.New("unknown parser backend")

// Options selects and configures a parser backend.
type Options struct {
	Backend string
	Config  Config
	// Node is the command line starting node for BackendNode.
	Node string
	// Command is the shell script run per block for BackendCommand.
	Command string
	// Dir is the working directory of the external parser. For node it is
	// where the mermaid package is resolved from.
	Dir string
	// Timeout bounds a single Parse call. Zero means no limit.
	Timeout time.Duration
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Open starts the parser selected by opts.Backend. An empty backend selects
// BackendNode. Errors returned by Open are initialization failures.
func Open(ctx context.Context, opts Options) (Parser, error) { //nolint:ireturn
	var (
		parser Parser
		err    error
	)

	switch opts.Backend {
	case "", BackendNode:
		parser, err = NewSession(ctx, SessionOptions{
			Command: opts.Node,
			Dir:     opts.Dir,
			Config:  opts.Config,
			Stderr:  opts.Stderr,
			Logger:  opts.Logger,
		})
	case BackendCommand:
		parser, err = NewCommand(opts.Command, opts.Dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}

	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		parser = &timeoutParser{Parser: parser, timeout: opts.Timeout}
	}

	return parser, nil
}

type timeoutParser struct {
	Parser
	timeout time.Duration
}

func (p *timeoutParser) Parse(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.Parser.Parse(ctx, code)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &SyntaxError{Message: fmt.Sprintf("parse timed out after %s", p.timeout)}
	}

	return err
}
