package driven

// SummaryWriter defines the driven port for publishing run summaries.
// Writes are best-effort: policy checks publish a summary before failing so
// operators get actionable detail either way.
type SummaryWriter interface {
	// WriteSummary appends a raw markdown block to the run summary.
	WriteSummary(markdown string) error
}

// OutputWriter defines the driven port for exporting step outputs to the
// surrounding workflow.
type OutputWriter interface {
	// WriteOutput sets a single named output value.
	WriteOutput(name, value string) error
}
