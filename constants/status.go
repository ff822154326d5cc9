package constants

// ProcessingStatus is the canonical server-side processing state for a receipt.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ProcessingStatus = "PENDING"    // uploaded, awaiting server-side parse
	StatusProcessing ProcessingStatus = "PROCESSING" // server parse in progress
	StatusCompleted  ProcessingStatus = "COMPLETED"  // parsed receipt available
	StatusFailed     ProcessingStatus = "FAILED"     // terminal parse failure
)

// IsTerminal reports whether the status will no longer change on its own.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
