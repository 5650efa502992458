package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDataset is returned when a dataset id is not in the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnknownModel is returned when a model id is not in the catalog for its dataset.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownPayloadType is returned for a payload class outside the closed set.
	ErrUnknownPayloadType = errors.New("unknown payload type")
	// ErrEmptyPayload is returned when neither a payload nor a replay index was given.
	ErrEmptyPayload = errors.New("payload is required")
	// ErrMalformedCorpus is returned when a corpus file cannot be read or parsed.
	ErrMalformedCorpus = errors.New("malformed corpus")
	// ErrReportExists marks a (dataset, model) pair that was already evaluated.
	ErrReportExists = errors.New("report already present")
)

// DetectorError reports an infrastructure failure of one named detector.
type DetectorError struct {
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector unavailable: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// NewDetectorError wraps err unless it already names a detector.
func NewDetectorError(detector string, err error) error {
	var de *DetectorError
	if errors.As(err, &de) {
		return err
	}
	return &DetectorError{Detector: detector, Err: err}
}

// IsSelectorError reports whether err is a client-side selection problem.
func IsSelectorError(err error) bool {
	return errors.Is(err, ErrUnknownDataset) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrUnknownPayloadType) ||
		errors.Is(err, ErrEmptyPayload)
}
