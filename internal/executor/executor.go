package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var errNoArgs = errors.New("args not specified")

// maxOutputTail ограничивает хвост вывода, попадающий в текст ошибки.
const maxOutputTail = 512

// Runner выполняет внешние команды узла.
type Runner interface {
	// Run выполняет команду; вывод сохраняется в ошибке при сбое.
	Run(ctx context.Context, args ...string) error
	// Output выполняет команду и возвращает stdout без пробелов по краям.
	Output(ctx context.Context, args ...string) (string, error)
}

// CommandError описывает неуспешное выполнение команды.
type CommandError struct {
	Args   []string
	Err    error
	Output string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", strings.Join(e.Args, " "), e.Err)
	if out := tail(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode возвращает код завершения процесса или -1.
func (e *CommandError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

var _ Runner = (*ExecRunner)(nil)

// ExecRunner запускает команды через os/exec.
type ExecRunner struct {
	// Timeout ограничивает каждую команду; 0 означает без ограничения.
	Timeout time.Duration
	Env     []string
	Logger  *slog.Logger
}

// NewExecRunner создает runner без таймаута.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Logger: logger}
}

func (r *ExecRunner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *ExecRunner) command(ctx context.Context, args []string) (*exec.Cmd, context.CancelFunc, error) {
	if len(args) == 0 {
		return nil, nil, errNoArgs
	}
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), r.Env...)
	return cmd, cancel, nil
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) error {
	cmd, cancel, err := r.command(ctx, args)
	if err != nil {
		return err
	}
	defer cancel()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger().Debug("run command", "args", args)
	if err := cmd.Run(); err != nil {
		return &CommandError{Args: args, Err: err, Output: out.String()}
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, args ...string) (string, error) {
	cmd, cancel, err := r.command(ctx, args)
	if err != nil {
		return "", err
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Err: err, Output: stderr.String()}
	}
	return strings.TrimSpace(stdout.String()), nil
}

var _ Runner = (*DryRunner)(nil)

// DryRunner печатает изменяющие команды вместо выполнения.
// Output делегируется вложенному runner: запросы только читают состояние.
type DryRunner struct {
	Next   Runner
	Logger *slog.Logger
}

// NewDryRunner оборачивает next в режим dry-run.
func NewDryRunner(next Runner, logger *slog.Logger) DryRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return DryRunner{Next: next, Logger: logger}
}

func (d DryRunner) Run(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return errNoArgs
	}
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, strconv.Quote(arg))
	}
	d.Logger.Info("dry run", "command", strings.Join(quoted, " "))
	return nil
}

func (d DryRunner) Output(ctx context.Context, args ...string) (string, error) {
	return d.Next.Output(ctx, args...)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOutputTail {
		return s
	}
	return "..." + s[len(s)-maxOutputTail:]
}
