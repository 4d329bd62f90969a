package pipeline

import "attackgraph/pkg/models"

// ResultWriter persists module result summaries.
type ResultWriter interface {
	WriteResults(results []models.ResultSummary) error
	Close() error
}

// MultiWriter fans results out to several writers. The first error stops the
// batch so the caller retries it as a whole.
type MultiWriter []ResultWriter

// WriteResults writes to every writer in order.
func (m MultiWriter) WriteResults(results []models.ResultSummary) error {
	for _, w := range m {
		if err := w.WriteResults(results); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and returns the first error.
func (m MultiWriter) Close() error {
	var first error
	for _, w := range m {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
