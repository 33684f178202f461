// Package toolrun executes rule commands as shell subprocesses. The external
// tools behind those commands (robot, dosdp-tools) are black boxes; this
// package only decides where their output lands and how they die.
package toolrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
)

// TmpSuffix is appended to a target's path while an atomic rule command is
// writing it. The finished file is renamed over the real target.
const TmpSuffix = ".ontomake.tmp"

// ErrToolFailure is returned when a rule command exits non-zero.
var ErrToolFailure = errors.New("tool command failed")

// Runner executes rule commands for one loaded buildfile.
type Runner struct {
	// Dir is the working directory of every command.
	Dir   string
	Shell string
	// Env is the base environment; the env of every tool a rule references
	// is appended to it.
	Env  []string
	Eval config.Evaluator
	// Tools supplies per-tool environment overrides.
	Tools map[string]*config.Tool
	// DryRun evaluates and logs commands without executing them.
	DryRun bool
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a Runner for the loaded model. Command stdout and stderr pass
// straight through to the parent's streams unless the rule captures stdout
// into its target.
func New(m *config.Model, eval config.Evaluator) *Runner {
	return &Runner{
		Dir:    m.Dir,
		Shell:  m.Project.Shell,
		Env:    os.Environ(),
		Eval:   eval,
		Tools:  m.Tools,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Build runs rule's command for one concrete target. With rule.Atomic the
// command is pointed at a temporary sibling of the target, which is renamed
// over the target only after the command exits zero; a failed or aborted
// command leaves no partial target behind.
func (r *Runner) Build(ctx context.Context, rule *config.Rule, b config.Binding) error {
	logger := ctxlog.FromContext(ctx).With("rule", rule.Name, "target", b.Target)

	outRel := b.Target
	if rule.Atomic {
		outRel = b.Target + TmpSuffix
	}
	evalBinding := b
	evalBinding.Target = outRel
	command, err := r.Eval.Command(ctx, rule, evalBinding)
	if err != nil {
		return err
	}

	if r.DryRun {
		fmt.Fprintln(r.Stdout, command)
		return nil
	}

	absTarget := filepath.Join(r.Dir, filepath.FromSlash(b.Target))
	absOut := filepath.Join(r.Dir, filepath.FromSlash(outRel))
	if err := os.MkdirAll(filepath.Dir(absTarget), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", b.Target, err)
	}
	if rule.Atomic {
		// A killed run can leave a stale temp file behind. Clear it so the
		// rename below only ever moves output written by this command.
		os.Remove(absOut)
	}

	var outFile *os.File
	if rule.Stdout {
		outFile, err = os.Create(absOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outRel, err)
		}
	}

	logger.Debug("Running command.", "command", command)
	err = r.exec(ctx, rule, command, outFile)
	if outFile != nil {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", outRel, cerr)
		}
	}
	if err != nil {
		if rule.Atomic {
			os.Remove(absOut)
		}
		return fmt.Errorf("rule %q target %s: %w", rule.Name, b.Target, err)
	}

	if rule.Atomic {
		if err := os.Rename(absOut, absTarget); err != nil {
			os.Remove(absOut)
			if os.IsNotExist(err) {
				return fmt.Errorf("rule %q did not produce %s", rule.Name, b.Target)
			}
			return fmt.Errorf("renaming %s into place: %w", outRel, err)
		}
	}
	return nil
}

// exec runs the shell command in its own process group, so an abort kills
// the whole pipeline the command may have spawned, not just the shell.
func (r *Runner) exec(ctx context.Context, rule *config.Rule, command string, stdout *os.File) error {
	logger := ctxlog.FromContext(ctx)

	cmd := exec.Command(r.Shell, "-c", command)
	cmd.Dir = r.Dir
	cmd.Env = r.commandEnv(rule)
	cmd.Stderr = r.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = r.Stdout
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.Shell, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return ctx.Err()
	case err := <-done:
		logger.Debug("Command finished.", "duration", time.Since(started))
		if err == nil {
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: exit status %d", ErrToolFailure, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %v", ErrToolFailure, err)
	}
}

// commandEnv returns a fresh environment slice with the env of every tool
// the rule references appended. Workers call this concurrently.
func (r *Runner) commandEnv(rule *config.Rule) []string {
	env := make([]string, len(r.Env), len(r.Env)+4)
	copy(env, r.Env)
	for _, name := range rule.Tools {
		tool, ok := r.Tools[name]
		if !ok {
			continue
		}
		for k, v := range tool.Env {
			env = append(env, k+"="+v)
		}
	}
	return env
}
