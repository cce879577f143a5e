package constants

// CertificateStatus is the processing status stored on a certificate row.
type CertificateStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    CertificateStatus = "pending"    // stored, not yet processed
	StatusProcessing CertificateStatus = "processing" // pipeline running
	StatusCompleted  CertificateStatus = "completed"  // fields committed
	StatusFailed     CertificateStatus = "failed"     // terminal failure
)
