// Package converter runs the external pdf2htmlEX binary.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"pdf2html/internal/config"
	"pdf2html/internal/domain"
)

const (
	// InputName is the staged PDF inside a job directory.
	InputName = "input.pdf"
	// OutputName is the HTML file pdf2htmlEX is asked to write.
	OutputName = "out.html"

	maxMessageLen = 4000
	waitDelay     = 2 * time.Second
)

var baseArgs = []string{
	"--split-pages", "0",
	"--process-outline", "1",
	"--optimize-text", "1",
}

var pagePattern = regexp.MustCompile(`(?i)pages?\s*:?\s*(\d+)`)

// Job is one conversion request staged on disk.
type Job struct {
	Dir     string
	Options domain.Options
	Timeout time.Duration
}

// InputPath is where the PDF must be written before Convert.
func (j Job) InputPath() string { return filepath.Join(j.Dir, InputName) }

// OutputPath is where pdf2htmlEX writes the HTML.
func (j Job) OutputPath() string { return filepath.Join(j.Dir, OutputName) }

// Result describes a finished conversion.
type Result struct {
	HTMLPath string
	// Pages is the count reported by the converter, 0 when it printed none.
	Pages  int
	Stdout string
	Stderr string
}

// Runner invokes pdf2htmlEX.
type Runner struct {
	Binary    string
	ExtraArgs []string
	Timeout   time.Duration
}

// New returns a Runner configured from cfg.
func New(cfg config.Config) *Runner {
	return &Runner{
		Binary:    cfg.Converter.Binary,
		ExtraArgs: append([]string(nil), cfg.Converter.ExtraArgs...),
		Timeout:   cfg.ConverterTimeout(),
	}
}

// Args builds the command line for job, excluding the binary.
func (r *Runner) Args(job Job) []string {
	embed := "1"
	if job.Options.Embed == domain.EmbedNone {
		embed = "0"
	}
	args := append([]string(nil), baseArgs...)
	args = append(args,
		"--embed-css", embed,
		"--embed-font", embed,
		"--embed-image", embed,
		"--embed-javascript", embed,
	)
	if job.Options.Zoom > 0 {
		args = append(args, "--zoom", strconv.FormatFloat(job.Options.Zoom, 'f', -1, 64))
	}
	if job.Options.FirstPage > 0 {
		args = append(args, "--first-page", strconv.Itoa(job.Options.FirstPage))
	}
	if job.Options.LastPage > 0 {
		args = append(args, "--last-page", strconv.Itoa(job.Options.LastPage))
	}
	args = append(args, r.ExtraArgs...)
	return append(args, "--dest-dir", job.Dir, job.InputPath(), OutputName)
}

// Convert runs the converter for job and waits for it within the job timeout
// (or the runner default). The process is killed when the deadline passes.
func (r *Runner) Convert(ctx context.Context, job Job) (*Result, error) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = r.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.Binary, r.Args(job)...)
	cmd.Dir = job.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	err := cmd.Run()
	res := &Result{
		HTMLPath: job.OutputPath(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %s", domain.ErrTimeout, timeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		msg := Truncate(res.Stderr, maxMessageLen)
		if msg == "" {
			msg = err.Error()
		}
		return res, fmt.Errorf("%w: %s", domain.ErrConversionFailed, msg)
	}

	st, statErr := os.Stat(res.HTMLPath)
	if statErr != nil || st.Size() == 0 {
		return res, domain.ErrNoOutput
	}

	res.Pages = ParsePageCount(res.Stdout, res.Stderr)
	return res, nil
}

// ParsePageCount returns the first page count mentioned in outputs, or 0.
func ParsePageCount(outputs ...string) int {
	for _, out := range outputs {
		m := pagePattern.FindStringSubmatch(out)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// Truncate shortens s to at most limit bytes, marking the cut with "...".
// The cut never splits a UTF-8 sequence.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:runeBoundary(s, limit)]
	}
	return s[:runeBoundary(s, limit-3)] + "..."
}

func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
