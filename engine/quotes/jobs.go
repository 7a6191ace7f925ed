package quotes

// NATS subjects connecting the API, the extract worker and the trainer.
const (
	// SubjectExtract carries ExtractJob payloads for async extraction.
	SubjectExtract = "engine.extract"
	// SubjectExtractDLQ receives jobs that exhausted their retries.
	SubjectExtractDLQ = "engine.extract.dlq"
	// SubjectCoeffsUpdated announces a freshly fitted coefficient
	// snapshot; payload is a CoeffsUpdated.
	SubjectCoeffsUpdated = "engine.coeffs.updated"
)

// ExtractJob is one queued extraction: a quote shell plus the raw uploaded
// file. The worker parses, extracts and fills in the parts.
type ExtractJob struct {
	QuoteID   string `json:"quote_id"`
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	// Data is the raw STEP file. Quote uploads are small enough to ride
	// the message; anything larger belongs in object storage first.
	Data []byte `json:"data"`
}

// CoeffsUpdated announces a new coefficient table snapshot on disk.
type CoeffsUpdated struct {
	Version      string `json:"version"`
	SnapshotPath string `json:"snapshot_path"`
}
