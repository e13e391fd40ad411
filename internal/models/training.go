package models

import "time"

// TrainingRecord is one performed set, as parsed from a chat message or
// read back from the training log.
type TrainingRecord struct {
	SenderID string
	Date     time.Time
	Location string
	Exercise string
	Weight   float64
	Reps     int
	IsTopSet bool
}

// TopSetFlag returns the numeric flag used in stored rows and exports.
func (r TrainingRecord) TopSetFlag() int {
	if r.IsTopSet {
		return 1
	}
	return 0
}

// ExportEntry groups the sets of one session (date + location).
type ExportEntry struct {
	Date      string           `json:"date"`
	Location  string           `json:"location"`
	Exercises []ExportExercise `json:"exercises"`
}

// ExportExercise holds the sets of one exercise within a session, in row order.
type ExportExercise struct {
	Name string      `json:"name"`
	Sets []ExportSet `json:"sets"`
}

// ExportSet is a single set in the export artifact.
type ExportSet struct {
	Weight     float64 `json:"weight"`
	Reps       int     `json:"reps"`
	TopSetFlag int     `json:"topSetFlag"`
}

// RecordFilter narrows a training log read. Zero values match everything.
type RecordFilter struct {
	SenderID string
	Exercise string // case-insensitive substring
	Start    time.Time
	End      time.Time // exclusive
}
