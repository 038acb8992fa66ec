// Package workflow implements the SummaryWriter and OutputWriter ports
// against the files the CI runner exposes (GITHUB_STEP_SUMMARY,
// GITHUB_OUTPUT).
package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SummaryWriter = (*Writer)(nil)
	_ driven.OutputWriter  = (*Writer)(nil)
)

// Writer appends summaries and outputs to the runner's command files.
type Writer struct {
	summaryPath string
	outputPath  string
}

// NewWriter creates a Writer from the runner environment. Either path may be
// empty (e.g. when run locally); writes to an empty path are no-ops.
func NewWriter(summaryPath, outputPath string) *Writer {
	return &Writer{summaryPath: summaryPath, outputPath: outputPath}
}

// WriteSummary appends a raw markdown block to the step summary.
func (w *Writer) WriteSummary(markdown string) error {
	if w.summaryPath == "" {
		return nil
	}
	block := markdown
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	return appendFile(w.summaryPath, block)
}

// WriteOutput sets a single named step output. Multiline values use the
// runner's heredoc form with a random delimiter so values cannot break out
// of the assignment.
func (w *Writer) WriteOutput(name, value string) error {
	if w.outputPath == "" {
		return nil
	}

	var line string
	if strings.ContainsAny(value, "\n\r") {
		delim := "sg_" + randomHex(8)
		line = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delim, value, delim)
	} else {
		line = fmt.Sprintf("%s=%s\n", name, value)
	}
	return appendFile(w.outputPath, line)
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(b)
}
