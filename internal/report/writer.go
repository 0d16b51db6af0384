package report

import "io"

// Writer outputs a clone summary to some destination.
//
// Design decision: our own interface rather than io.Writer because
// implementations write summaries, not raw bytes, and each format owns
// its own serialization.
type Writer interface {
	// Write outputs the summary. Returns the number of bytes written.
	Write(summary *Summary) (int, error)
}

// MultiWriter writes a summary to several Writers, stopping on the
// first error. Useful for terminal plus file output from one call.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer fanning out to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to every configured Writer.
func (m *MultiWriter) Write(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides the shared output destination.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
