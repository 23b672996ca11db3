package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// TargetPlaceholder is replaced with the target name in launcher templates
const TargetPlaceholder = "{target}"

// DefaultCloseTimeout is how long Close waits for the shell to exit before killing it
const DefaultCloseTimeout = 5 * time.Second

// ExecTransport spawns a local launcher process per target, such as
// "sudo ./go_to.sh {target}", and talks to it over stdin/stdout.
//
// The launcher's stdin and stdout are pipes, not a terminal. A shell that is
// not interactive prints no prompt over pipes, so prompt matching only works
// with a launcher that forces one, such as "sh -i" or a pty-backed helper.
type ExecTransport struct {
	// Launcher is the command template; the target is substituted shell-quoted
	Launcher string

	// Dir is the working directory of the launcher
	Dir string

	// Env extends the launcher environment
	Env []string

	// CloseTimeout bounds the wait for the process to exit on Close. After
	// it the launcher's whole process group is killed, including children
	// that still hold its output open.
	CloseTimeout time.Duration

	Log *logger.Logger
}

// LauncherArgs expands the launcher template for target
func (t *ExecTransport) LauncherArgs(target string) ([]string, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("empty target")
	}
	tmpl := t.Launcher
	if !strings.Contains(tmpl, TargetPlaceholder) {
		tmpl += " " + TargetPlaceholder
	}
	args, err := shellquote.Split(strings.ReplaceAll(tmpl, TargetPlaceholder, shellquote.Join(target)))
	if err != nil {
		return nil, fmt.Errorf("invalid launcher %q: %w", t.Launcher, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("launcher is empty")
	}
	return args, nil
}

// Open starts the launcher for target
func (t *ExecTransport) Open(ctx context.Context, target string) (Channel, error) {
	args, err := t.LauncherArgs(target)
	if err != nil {
		return nil, errors.TransportOpenError(target, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The process outlives the open context; Close terminates it
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = t.Dir
	if len(t.Env) > 0 {
		cmd.Env = append(cmd.Environ(), t.Env...)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	closeTimeout := t.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = DefaultCloseTimeout
	}
	// Wait gives up on the output copy once the launcher has exited
	cmd.WaitDelay = closeTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.TransportOpenError(target, err)
	}
	out := newOutputBuffer()
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, errors.TransportOpenError(target, err)
	}

	log := t.Log
	if log == nil {
		log = logger.Discard()
	}
	log.Debug("Launcher started", "target", target, "command", shellquote.Join(args...), "pid", cmd.Process.Pid)

	c := &execChannel{
		target:       target,
		cmd:          cmd,
		stdin:        stdin,
		out:          out,
		exited:       make(chan struct{}),
		closeTimeout: closeTimeout,
	}
	go func() {
		c.waitErr = cmd.Wait()
		out.closeWithError(fmt.Errorf("launcher for %s exited: %v", target, c.waitErr))
		close(c.exited)
	}()
	return c, nil
}

type execChannel struct {
	target       string
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	out          *outputBuffer
	exited       chan struct{}
	waitErr      error
	closeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *execChannel) Send(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.exited:
		return fmt.Errorf("launcher for %s exited", c.target)
	default:
	}
	return writeContext(ctx, c.stdin, []byte(line+"\n"))
}

func (c *execChannel) Expect(ctx context.Context, re *regexp.Regexp) (string, error) {
	return c.out.waitFor(ctx, re)
}

// Close closes stdin so the shell sees EOF, then kills the launcher's process
// group if it has not exited within the close timeout. Close never waits
// longer than twice the close timeout.
func (c *execChannel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()

		timer := time.NewTimer(c.closeTimeout)
		defer timer.Stop()

		select {
		case <-c.exited:
			return
		case <-timer.C:
		}

		if err := c.kill(); err != nil {
			c.closeErr = fmt.Errorf("failed to kill launcher for %s: %w", c.target, err)
		}

		timer.Reset(c.closeTimeout)
		select {
		case <-c.exited:
		case <-timer.C:
			if c.closeErr == nil {
				c.closeErr = fmt.Errorf("launcher for %s did not exit within %s of being killed", c.target, c.closeTimeout)
			}
		}
	})
	return c.closeErr
}

// kill sends SIGKILL to the launcher's process group, falling back to the
// launcher alone when the group cannot be signalled
func (c *execChannel) kill() error {
	pid := c.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil || err == syscall.ESRCH {
		return nil
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
