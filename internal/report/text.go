package report

import (
	"fmt"
	"io"
	"strings"
)

// TextWriter outputs human-readable text summaries for terminal display.
//
// Design decision: plain text with ASCII section rules rather than ANSI
// colors. It works in every terminal and pipes cleanly to files.
type TextWriter struct {
	baseWriter

	// verbose adds the per-failure listing to the output.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose includes the failed-download listing in the output.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter outputting to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary as human-readable text.
func (w *TextWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	rule := strings.Repeat("=", 60)
	sb.WriteString(rule + "\n")
	sb.WriteString("Clone Report\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Source:     %s\n", summary.URL)
	fmt.Fprintf(&sb, "Session:    %s\n", summary.SessionID)
	fmt.Fprintf(&sb, "Status:     %s\n", summary.Status.String())
	fmt.Fprintf(&sb, "Duration:   %s\n", summary.Duration.Round(durationResolution(summary.Duration)))
	if summary.Error != "" {
		fmt.Fprintf(&sb, "Error:      %s\n", summary.Error)
	}
	sb.WriteString("\n")

	fp := summary.Fingerprint
	if fp.Known() {
		fmt.Fprintf(&sb, "Build tool: %s (confidence %.2f)\n", fp.Tool.String(), fp.Confidence)
		if len(fp.Evidence) > 0 {
			fmt.Fprintf(&sb, "Evidence:   %s\n", strings.Join(fp.Evidence, ", "))
		}
	} else {
		sb.WriteString("Build tool: unknown (generic asset layout used)\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Pages visited:     %d\n", summary.PagesVisited)
	fmt.Fprintf(&sb, "Assets discovered: %d\n", summary.AssetsFound)
	fmt.Fprintf(&sb, "Assets downloaded: %d\n", summary.AssetsDownloaded)
	fmt.Fprintf(&sb, "Assets failed:     %d\n", summary.AssetsFailed)

	if order := summary.typeOrder(); len(order) > 0 {
		sb.WriteString("\nDownloads by type:\n")
		for _, t := range order {
			fmt.Fprintf(&sb, "  %-16s %d\n", t.String(), summary.TypeCounts[t])
		}
	}

	if w.verbose && len(summary.Failures) > 0 {
		sb.WriteString("\nFailed downloads:\n")
		for _, f := range summary.Failures {
			fmt.Fprintf(&sb, "  %s\n    %s\n", f.SourceURL, f.Reason)
		}
	}

	sb.WriteString(rule + "\n")
	return w.output.Write([]byte(sb.String()))
}
