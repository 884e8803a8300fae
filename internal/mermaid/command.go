package mermaid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const fileMode = 0o600

// ErrMissingCommand is returned by [NewCommand] for an empty script.
var ErrMissingCommand = errors.New("a command is required for the command backend")

// Command checks every diagram by running a shell script on it, for example
// mermaid-cli. The diagram is written to a temporary file and {} in the
// script expands to its path. A non-zero exit status is a syntax failure whose
// message is the script output.
type Command struct {
	file *syntax.File
	dir  string
	tmp  string
	seq  int
}

// NewCommand parses script and creates the temporary directory for diagrams.
// Scripts run in dir.
func NewCommand(script, dir string) (*Command, error) {
	if len(strings.TrimSpace(script)) == 0 {
		return nil, ErrMissingCommand
	}

	expanded := strings.ReplaceAll(script, "{}", `"$1"`)

	file, err := syntax.NewParser().Parse(strings.NewReader(expanded), "")
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", script, err)
	}

	tmp, err := os.MkdirTemp("", "mermaidcheck-")
	if err != nil {
		return nil, err
	}

	return &Command{file: file, dir: dir, tmp: tmp}, nil
}

// Parse runs the script on code.
func (c *Command) Parse(ctx context.Context, code string) error {
	c.seq++

	path := filepath.Join(c.tmp, fmt.Sprintf("block_%d.mmd", c.seq))
	if err := os.WriteFile(path, []byte(code), fileMode); err != nil {
		return err
	}

	defer os.Remove(path)

	var out bytes.Buffer

	runner, err := interp.New(
		interp.Dir(c.dir),
		interp.Params("--", path),
		interp.StdIO(nil, &out, &out),
	)
	if err != nil {
		return err
	}

	err = runner.Run(ctx, c.file)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	msg := strings.TrimSpace(out.String())

	if status, ok := interp.IsExitStatus(err); ok {
		if len(msg) == 0 {
			msg = fmt.Sprintf("command exited with %d", status)
		}

		return &SyntaxError{Message: msg}
	}

	return &SyntaxError{Message: fmt.Sprintf("%v\n%s", err, msg)}
}

// Close removes the temporary directory.
func (c *Command) Close() error {
	return os.RemoveAll(c.tmp)
}
