package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs clone summaries in Markdown format, the version
// written into the clone output directory as CLONE.md.
//
// Design decision: the nao1215/markdown library for fluent generation;
// it covers tables, alerts, and mermaid pie charts without hand-rolled
// string assembly.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter outputting to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeFingerprint(md, summary)
	w.writeAssets(md, summary)
	w.writeFailures(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and session facts.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Clone Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + summary.URL + "`"},
			{"Session", "`" + summary.SessionID + "`"},
			{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(durationResolution(summary.Duration)).String()},
			{"Pages", strconv.Itoa(summary.PagesVisited)},
			{"Status", statusText(summary)},
		},
	})
	md.PlainText("")
}

// writeFingerprint writes the detected build tool section.
func (w *MarkdownWriter) writeFingerprint(md *markdown.Markdown, summary *Summary) {
	md.H2("Build Tool")
	md.PlainText("")

	fp := summary.Fingerprint
	if !fp.Known() {
		md.PlainText("No build tool could be identified; assets were stored under the generic layout.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Tool", fp.Tool.String()},
			{"Confidence", strconv.FormatFloat(fp.Confidence, 'f', 2, 64)},
			{"Evidence", strings.Join(fp.Evidence, ", ")},
		},
	})
	md.PlainText("")
}

// writeAssets writes the per-type download breakdown with a pie chart.
func (w *MarkdownWriter) writeAssets(md *markdown.Markdown, summary *Summary) {
	md.H2("Assets")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Discovered", strconv.Itoa(summary.AssetsFound)},
			{"Downloaded", strconv.Itoa(summary.AssetsDownloaded)},
			{"Failed", strconv.Itoa(summary.AssetsFailed)},
			{"Links beyond depth", strconv.Itoa(summary.SkippedLinks)},
		},
	})
	md.PlainText("")

	order := summary.typeOrder()
	if len(order) == 0 {
		return
	}

	rows := make([][]string, 0, len(order))
	for _, t := range order {
		rows = append(rows, []string{t.String(), strconv.Itoa(summary.TypeCounts[t])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Downloaded"},
		Rows:   rows,
	})

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Downloaded Assets by Type"),
		piechart.WithShowData(true),
	)
	for _, t := range order {
		chart.LabelAndIntValue(t.String(), uint64(summary.TypeCounts[t]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes the failed-download table, if any.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *Summary) {
	if len(summary.Failures) == 0 {
		if summary.Complete() {
			md.Tip("Every discovered asset was downloaded.")
			md.PlainText("")
		}
		return
	}

	md.H2("Failed Downloads")
	md.PlainText("")
	md.Warningf("%d asset(s) could not be downloaded; the clone may render incompletely.", len(summary.Failures))
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		rows = append(rows, []string{"`" + f.SourceURL + "`", f.Reason})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText renders the session outcome for the header table.
func statusText(summary *Summary) string {
	switch {
	case summary.Complete():
		return "✅ Complete"
	case summary.Error != "":
		return "❌ " + summary.Error
	default:
		return "⚠️ " + summary.Status.String()
	}
}

// durationResolution picks a display rounding that keeps short runs
// readable without printing nanoseconds.
func durationResolution(d time.Duration) time.Duration {
	if d < time.Minute {
		return time.Millisecond
	}
	return time.Second
}
