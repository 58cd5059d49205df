// Package ffmpeg provides subprocess-based invocation of the ffmpeg binary
// with structured result parsing: metadata probing, encoder capability
// detection, and thumbnail extraction.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	// ffmpeg writes its analysis banner to stderr; keep enough of the tail
	// that the stream lines survive for parsing and diagnostics.
	maxStderrBytes = 64 * 1024
)

// RunResult is the structured outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int
	Stdout     string
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Runner executes ffmpeg with an argument list. It is the single subprocess
// abstraction the clip pipeline goes through, which keeps every encode path
// mockable in tests.
type Runner interface {
	Run(ctx context.Context, args ...string) RunResult
}

// SubprocessRunner is the production implementation of Runner.
type SubprocessRunner struct {
	bin    string
	logger *slog.Logger
}

// NewRunner creates a SubprocessRunner, resolving the ffmpeg binary path.
func NewRunner(bin string, logger *slog.Logger) (*SubprocessRunner, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg binary %q: %w", bin, err)
	}

	logger.Info("ffmpeg runner initialised", "bin", resolved)
	return &SubprocessRunner{bin: resolved, logger: logger}, nil
}

func (r *SubprocessRunner) Run(ctx context.Context, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.bin, args...)

	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	r.logger.Debug("executing ffmpeg", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if exitCode != 0 {
		r.logger.Debug("ffmpeg exited nonzero",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
