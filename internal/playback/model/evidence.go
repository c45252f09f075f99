package model

// ElementRef is an opaque handle to a live element, as returned by a
// DocumentView. The playback core never inspects its contents directly;
// all reads go through the DocumentView adapter.
type ElementRef interface {
	// Ref returns an implementation-defined identity used only for
	// equality checks in tests (e.g. "is this the same node we started
	// with").
	Ref() string
}

// EvidenceBreakdown records the per-axis scores that produced a
// Candidate's TotalScore, for the Evidence Aggregator's reasoning.
type EvidenceBreakdown struct {
	Spatial  float64
	Sequence float64
	Visual   float64
	DOM      float64
	History  float64
}

// Candidate is a scored element produced by the Evidence Aggregator.
type Candidate struct {
	Element     ElementRef
	Selector    string
	Evidence    EvidenceBreakdown
	TotalScore  float64
}

// HealingRecord is a persisted healing outcome, keyed by descriptor
// fingerprint.
type HealingRecord struct {
	OriginalFingerprint string    `json:"originalFingerprint"`
	HealedSelector      string    `json:"healedSelector"`
	Strategy            string    `json:"strategy"`
	Confidence          float64   `json:"confidence"`
	TimestampUnix       int64     `json:"timestamp"`
	Success             bool      `json:"success"`
}
