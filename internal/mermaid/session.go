package mermaid

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/google/shlex"
)

//go:embed session.mjs
var sessionScript string

// DefaultNode is the command line used to start node.
const DefaultNode = "node"

// SessionOptions configures a [Session].
type SessionOptions struct {
	// Command starts node. It is split like a shell would; the default is
	// DefaultNode.
	Command string
	// Dir is the working directory of node. The mermaid package is resolved
	// from its node_modules.
	Dir    string
	Config Config
	Stderr io.Writer
	Logger *slog.Logger
}

// Session is a node process with mermaid loaded, reused for every Parse call.
// A process killed by a Parse deadline is replaced right away; one that died
// otherwise is restarted by the next Parse.
type Session struct {
	opts SessionOptions
	argv []string
	// base bounds restarts. Per-call deadlines never apply to them.
	base context.Context //nolint:containedctx

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	nextID int
}

type request struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

type response struct {
	ID    int    `json:"id"`
	Ready *bool  `json:"ready,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

var errSessionExited = errors.New("mermaid session exited")

// NewSession starts node and waits until mermaid is initialized with
// opts.Config.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if len(opts.Command) == 0 {
		opts.Command = DefaultNode
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	argv, err := shlex.Split(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid node command %q: %w", opts.Command, err)
	}

	if len(argv) == 0 {
		return nil, fmt.Errorf("invalid node command %q", opts.Command)
	}

	s := &Session{opts: opts, argv: argv, base: ctx}

	if err := s.start(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	config, err := json.Marshal(s.opts.Config)
	if err != nil {
		return err
	}

	args := append(s.argv[1:len(s.argv):len(s.argv)], "--input-type=module", "--eval", sessionScript)

	cmd := exec.Command(s.argv[0], args...) //nolint:gosec
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(), "MERMAIDCHECK_INIT="+string(config))
	cmd.Stderr = s.opts.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting mermaid session: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.enc = json.NewEncoder(stdin)
	s.dec = json.NewDecoder(stdout)

	s.opts.Logger.Debug("mermaid session started", "pid", cmd.Process.Pid, "dir", s.opts.Dir)

	var ready response

	if err := s.receive(ctx, &ready); err != nil {
		s.kill()

		return fmt.Errorf("initializing mermaid: %w", err)
	}

	if ready.Ready == nil || !*ready.Ready {
		s.kill()

		return fmt.Errorf("initializing mermaid: %s", ready.Error)
	}

	return nil
}

// Parse sends code to the session and waits for the verdict. A failed or
// timed out call leaves the session usable: the process is restarted on the
// next call if needed.
func (s *Session) Parse(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.restart(); err != nil {
			return &SyntaxError{Message: err.Error()}
		}
	}

	s.nextID++
	id := s.nextID

	if err := s.enc.Encode(request{ID: id, Code: code}); err != nil {
		s.kill()

		return &SyntaxError{Message: fmt.Sprintf("%v: %v", errSessionExited, err)}
	}

	var resp response

	if err := s.receive(ctx, &resp); err != nil {
		s.kill()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if rerr := s.restart(); rerr != nil {
				s.opts.Logger.Warn("mermaid session restart failed", "error", rerr)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		return &SyntaxError{Message: err.Error()}
	}

	if resp.ID != id {
		s.kill()

		return &SyntaxError{Message: fmt.Sprintf("mermaid session answered request %d, want %d", resp.ID, id)}
	}

	if !resp.OK {
		if len(resp.Error) == 0 {
			resp.Error = "mermaid parse failed"
		}

		return &SyntaxError{Message: resp.Error}
	}

	return nil
}

func (s *Session) restart() error {
	s.opts.Logger.Debug("restarting mermaid session")

	return s.start(s.base)
}

func (s *Session) receive(ctx context.Context, resp *response) error {
	done := make(chan error, 1)

	go func() {
		done <- s.dec.Decode(resp)
	}()

	select {
	case err := <-done:
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errSessionExited
		}

		return err
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		<-done

		return ctx.Err()
	}
}

func (s *Session) kill() {
	if s.cmd == nil {
		return
	}

	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()

	s.cmd = nil
}

// Close stops the node process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	_ = s.stdin.Close()

	err := s.cmd.Wait()
	s.cmd = nil

	return err
}
