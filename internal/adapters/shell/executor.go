// Package shell provides an os/exec based executor for build tools.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creack/pty"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec.
// In PTY mode tools see a terminal, so they keep their colored output.
type Executor struct {
	logger ports.Logger
	usePTY bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithPTY selects whether Run attaches commands to a pseudo terminal.
func WithPTY(enabled bool) Option {
	return func(e *Executor) {
		e.usePTY = enabled
	}
}

// NewExecutor creates a new Executor. Output of commands without an explicit
// writer goes to logger line by line.
func NewExecutor(logger ports.Logger, opts ...Option) *Executor {
	e := &Executor{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes cmd and waits for it to complete.
func (e *Executor) Run(ctx context.Context, cmd domain.Command) error {
	if cmd.Name == "" {
		return nil
	}

	out := cmd.Stdout
	if out == nil {
		lw := &logWriter{logger: e.logger}
		defer func() { _ = lw.Close() }()
		out = lw
	}

	c := e.command(ctx, cmd)

	var err error
	if e.usePTY {
		err = runPTY(c, out)
	} else {
		c.Stdout = out
		c.Stderr = out
		err = c.Run()
	}

	return commandError(ctx, cmd, err, nil)
}

// Output executes cmd without a terminal and returns its standard output.
func (e *Executor) Output(ctx context.Context, cmd domain.Command) ([]byte, error) {
	if cmd.Name == "" {
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	c := e.command(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return nil, commandError(ctx, cmd, err, stderr.Bytes())
	}
	return stdout.Bytes(), nil
}

func (e *Executor) command(ctx context.Context, cmd domain.Command) *exec.Cmd {
	env := resolveEnvironment(os.Environ(), cmd.Env)

	// Relative paths with a separator are resolved against Dir by os/exec.
	executable := cmd.Name
	if !strings.Contains(executable, string(filepath.Separator)) {
		if lp, err := lookPath(executable, env); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args...) //nolint:gosec // commands come from the target catalog
	c.Args[0] = cmd.Name
	c.Dir = cmd.Dir
	c.Env = env
	return c
}

// runPTY runs c on a pseudo terminal and copies everything it prints to out.
func runPTY(c *exec.Cmd, out io.Writer) error {
	ptmx, err := pty.Start(c)
	if err != nil {
		return err
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		// Reading the master fails with EIO once the child side is closed.
		_, _ = io.Copy(out, ptmx)
	}()

	err = c.Wait()
	<-ioDone
	_ = ptmx.Close()

	return err
}

// commandError converts an exec failure into the domain error vocabulary.
func commandError(ctx context.Context, cmd domain.Command, err error, stderr []byte) error {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zerr.Wrap(ctxErr, cmd.String())
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return zerr.With(zerr.Wrap(err, "failed to start "+cmd.Name), "dir", cmd.Dir)
	}

	wrapped := zerr.With(zerr.Wrap(domain.ErrCommandFailed, cmd.String()), "exit_code", exitErr.ExitCode())
	if cmd.Dir != "" {
		wrapped = zerr.With(wrapped, "dir", cmd.Dir)
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		wrapped = zerr.With(wrapped, "stderr", msg)
	}
	return wrapped
}

// logWriter forwards complete lines to the logger.
type logWriter struct {
	logger ports.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	// PTYs terminate lines with \r\n.
	w.logger.Info(strings.TrimSuffix(string(line), "\r"))
}

// allowListedEnvVars are the system variables a build tool inherits.
// Everything else has to be set explicitly by the target.
var allowListedEnvVars = map[string]struct{}{
	"HOME":          {},
	"TERM":          {},
	"USER":          {},
	"LOGNAME":       {},
	"SHELL":         {},
	"PATH":          {},
	"TMPDIR":        {},
	"LANG":          {},
	"LC_ALL":        {},
	"DEVELOPER_DIR": {},
	"SDKROOT":       {},
}

// resolveEnvironment filters sysEnv through the allow-list and applies overlay on top.
func resolveEnvironment(sysEnv, overlay []string) []string {
	envMap := filterSystemEnv(sysEnv)

	for _, entry := range overlay {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

func filterSystemEnv(sysEnv []string) map[string]string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	return envMap
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "PATH="); ok {
			path = after
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
