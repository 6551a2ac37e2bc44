package model

import "time"

// SkippedFile records a per-file failure that did not abort the run.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexReport summarizes one indexing run over a directory.
type IndexReport struct {
	Modality  string        `json:"modality"`
	Directory string        `json:"directory"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (r *IndexReport) SkipCount() int {
	return len(r.Skipped)
}
