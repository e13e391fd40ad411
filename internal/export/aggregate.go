// Package export turns the flat training log into per-session JSON history.
package export

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Aggregate groups records by session (calendar date in loc plus location),
// then by exercise. Sessions and exercises keep first-seen order and sets
// keep record order.
func Aggregate(records []models.TrainingRecord, loc *time.Location) []models.ExportEntry {
	if loc == nil {
		loc = time.UTC
	}

	type sessionKey struct{ date, location string }
	entries := []models.ExportEntry{}
	sessions := map[sessionKey]int{}
	exercises := map[sessionKey]map[string]int{}

	for _, r := range records {
		key := sessionKey{r.Date.In(loc).Format(time.DateOnly), r.Location}
		si, ok := sessions[key]
		if !ok {
			si = len(entries)
			sessions[key] = si
			exercises[key] = map[string]int{}
			entries = append(entries, models.ExportEntry{Date: key.date, Location: key.location})
		}

		entry := &entries[si]
		ei, ok := exercises[key][r.Exercise]
		if !ok {
			ei = len(entry.Exercises)
			exercises[key][r.Exercise] = ei
			entry.Exercises = append(entry.Exercises, models.ExportExercise{Name: r.Exercise})
		}
		entry.Exercises[ei].Sets = append(entry.Exercises[ei].Sets, models.ExportSet{
			Weight:     r.Weight,
			Reps:       r.Reps,
			TopSetFlag: r.TopSetFlag(),
		})
	}
	return entries
}

// Flatten expands entries back into records for senderID, dated at midnight in loc.
func Flatten(senderID string, entries []models.ExportEntry, loc *time.Location) []models.TrainingRecord {
	if loc == nil {
		loc = time.UTC
	}
	var records []models.TrainingRecord
	for _, e := range entries {
		date, err := time.ParseInLocation(time.DateOnly, e.Date, loc)
		if err != nil {
			continue
		}
		for _, ex := range e.Exercises {
			for _, s := range ex.Sets {
				records = append(records, models.TrainingRecord{
					SenderID: senderID,
					Date:     date,
					Location: e.Location,
					Exercise: ex.Name,
					Weight:   s.Weight,
					Reps:     s.Reps,
					IsTopSet: s.TopSetFlag == 1,
				})
			}
		}
	}
	return records
}

// Encode renders entries as 2-space indented JSON. Non-ASCII text and
// characters such as '&' are written as-is.
func Encode(entries []models.ExportEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.ExportEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
