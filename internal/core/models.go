package core

import (
	"fmt"
	"time"
)

// --- Verdict Models ---

type Verdict string

const (
	Allowed Verdict = "Allowed"
	Blocked Verdict = "Blocked"
)

// ParseVerdict accepts the canonical spelling only.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case Allowed, Blocked:
		return Verdict(s), nil
	}
	return "", fmt.Errorf("invalid verdict %q", s)
}

// Int maps Blocked to 1 and Allowed to 0, the encoding used by the metrics vectors.
func (v Verdict) Int() int {
	if v == Blocked {
		return 1
	}
	return 0
}

// VerdictFromLabel maps a classifier label to a verdict: 1 blocks, 0 allows.
func VerdictFromLabel(label int) (Verdict, error) {
	switch label {
	case 1:
		return Blocked, nil
	case 0:
		return Allowed, nil
	}
	return "", fmt.Errorf("classifier label %d is not binary", label)
}

// --- Selector Models ---

// Selector names one classifier inside one dataset family.
type Selector struct {
	DatasetID string `json:"dataset_id" bson:"dataset_id"`
	ModelID   string `json:"model_id" bson:"model_id"`
}

func (s Selector) String() string {
	return s.DatasetID + "/" + s.ModelID
}

// --- Decision Models ---

type DecisionRecord struct {
	ID              string    `json:"id" bson:"_id"`
	Payload         string    `json:"payload" bson:"payload"`
	WAFVerdict      Verdict   `json:"waf_verdict" bson:"waf_verdict"`
	MLVerdict       Verdict   `json:"ml_verdict" bson:"ml_verdict"`
	CombinedVerdict Verdict   `json:"combined_verdict" bson:"combined_verdict"`
	ModelID         string    `json:"model_id" bson:"model_id"`
	DatasetID       string    `json:"dataset_id" bson:"dataset_id"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// Selector returns the classifier selection the record was produced with.
func (d DecisionRecord) Selector() Selector {
	return Selector{DatasetID: d.DatasetID, ModelID: d.ModelID}
}

// AuditLine renders the record in the single-line audit format.
func (d DecisionRecord) AuditLine() string {
	return fmt.Sprintf("Payload: %s | ModSec: %s | ML: %s | Combined: %s",
		d.Payload, d.WAFVerdict, d.MLVerdict, d.CombinedVerdict)
}

// --- Corpus Models ---

type Label int

const (
	Legitimate Label = 0
	Malicious  Label = 1
)

func (l Label) String() string {
	if l == Malicious {
		return "Malicious"
	}
	return "Legitimate"
}

type PayloadType string

const (
	PayloadLegitimate PayloadType = "legitimate"
	PayloadMalicious  PayloadType = "malicious"
	PayloadAdvWAF     PayloadType = "adv_ms"
	PayloadAdvML      PayloadType = "adv_ml"
)

// payloadAliases keeps the names accepted by the older demo clients working.
var payloadAliases = map[string]PayloadType{
	"legitimate":         PayloadLegitimate,
	"legit":              PayloadLegitimate,
	"malicious":          PayloadMalicious,
	"adv_ms":             PayloadAdvWAF,
	"adversarial_modsec": PayloadAdvWAF,
	"adv_ml":             PayloadAdvML,
	"adversarial_ml":     PayloadAdvML,
}

func ParsePayloadType(s string) (PayloadType, error) {
	if pt, ok := payloadAliases[s]; ok {
		return pt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPayloadType, s)
}

// Label is the ground truth carried by every entry of this payload class.
func (p PayloadType) Label() Label {
	if p == PayloadLegitimate {
		return Legitimate
	}
	return Malicious
}

// Adversarial reports whether the class is one of the optional evasion subsets.
func (p PayloadType) Adversarial() bool {
	return p == PayloadAdvWAF || p == PayloadAdvML
}

type CorpusEntry struct {
	Payload string `json:"payload"`
	Label   Label  `json:"label"`
}

// FeatureVector is owned by the ML adapter invocation that produced it.
type FeatureVector []float64

// --- Audit Query Models ---

type AuditFilter struct {
	DatasetID string
	ModelID   string
	Verdict   Verdict
	Page      int64
	Limit     int64
}

type PaginatedDecisions struct {
	Data       []DecisionRecord `json:"data"`
	Pagination struct {
		CurrentPage int64 `json:"current_page"`
		TotalPages  int64 `json:"total_pages"`
		TotalItems  int64 `json:"total_items"`
		PerPage     int64 `json:"per_page"`
	} `json:"pagination"`
}
