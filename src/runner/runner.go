// Package runner executes external build tools.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is a single external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env replaces the child environment when non-nil; nil inherits the
	// parent's.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// Exec runs commands with os/exec, streaming their output.
type Exec struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewExec creates an Exec runner with default output writers.
func NewExec(verbose bool) *Exec {
	return &Exec{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Run executes cmd and waits for it. A non-zero exit is returned as an
// error naming the command and its working directory.
func (e *Exec) Run(ctx context.Context, c Command) error {
	if e.Verbose {
		if c.Dir != "" {
			fmt.Fprintf(e.Stderr, "exec: %s (in %s)\n", c, c.Dir)
		} else {
			fmt.Fprintf(e.Stderr, "exec: %s\n", c)
		}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed after %s: %w", c, time.Since(start).Round(time.Second), err)
	}
	return nil
}
