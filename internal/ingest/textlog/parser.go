package textlog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/claude/liftlog/internal/models"
)

// headerRe matches the first line of a training message:
// "8/1 PowerGym" or "2023/8/1 Shop A". The separator may be a full-width
// space (U+3000), as typed by Japanese input methods.
var headerRe = regexp.MustCompile(`^(?:(\d{4})/)?(\d{1,2})/(\d{1,2})[\s\p{Zs}]+(.+)$`)

// Error messages returned to the sender after the rejection prefix.
const (
	msgInvalidHeader     = "invalid first line format"
	msgInvalidDate       = "invalid date"
	msgInvalidWorkout    = "invalid workout line format"
	msgInvalidWeightReps = "invalid weight or reps format"
)

// FormatError reports a message that does not follow the training log grammar.
// Line is the 1-based message line the error refers to.
type FormatError struct {
	Msg  string
	Line int
}

func (e *FormatError) Error() string {
	return e.Msg
}

// Set is one weight:reps pair of a workout line.
type Set struct {
	Weight float64
	Reps   int
}

// IsTrainingRecord reports whether the first line of message looks like a
// training log header. Later lines are not inspected.
func IsTrainingRecord(message string) bool {
	first, _, _ := strings.Cut(message, "\n")
	return headerRe.MatchString(strings.TrimSpace(first))
}

// Parse converts a training log message into one record per set, in
// workout-line order then set order. now supplies the year when the header
// omits it, and the location of the resulting dates.
//
// Message format:
//
//	[YYYY/]M/D <location>
//	<exercise> <weight>:<reps>[,<weight>:<reps>...]
//	...
func Parse(senderID, message string, now time.Time) ([]models.TrainingRecord, error) {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	m := headerRe.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, &FormatError{Msg: msgInvalidHeader, Line: 1}
	}
	date, ok := headerDate(m[1], m[2], m[3], now)
	if !ok {
		return nil, &FormatError{Msg: msgInvalidDate, Line: 1}
	}
	location := m[4]

	var records []models.TrainingRecord
	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		lineNo := i + 2

		exercise, setsText, ok := splitWorkoutLine(line)
		if !ok {
			return nil, &FormatError{Msg: msgInvalidWorkout, Line: lineNo}
		}
		sets, err := parseSets(setsText)
		if err != nil {
			err.Line = lineNo
			return nil, err
		}

		top := TopSetIndex(sets)
		for idx, s := range sets {
			records = append(records, models.TrainingRecord{
				SenderID: senderID,
				Date:     date,
				Location: location,
				Exercise: exercise,
				Weight:   s.Weight,
				Reps:     s.Reps,
				IsTopSet: idx == top,
			})
		}
	}

	return records, nil
}

// TopSetIndex returns the index of the heaviest set. Weight dominates; at
// equal weight more reps wins; a full tie keeps the earlier set.
func TopSetIndex(sets []Set) int {
	top := 0
	for i, s := range sets {
		t := sets[top]
		if s.Weight > t.Weight || (s.Weight == t.Weight && s.Reps > t.Reps) {
			top = i
		}
	}
	return top
}

// headerDate builds the session date. Dates that do not exist on the
// calendar (2/30, 13/1) are rejected rather than rolled over.
func headerDate(yearStr, monthStr, dayStr string, now time.Time) (time.Time, bool) {
	year := now.Year()
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			return time.Time{}, false
		}
		year = y
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// splitWorkoutLine splits at the first whitespace run. The exercise name is
// everything before it and the sets text everything after, verbatim.
func splitWorkoutLine(line string) (exercise, setsText string, ok bool) {
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx <= 0 {
		return "", "", false
	}
	rest := strings.TrimLeftFunc(line[idx:], unicode.IsSpace)
	if rest == "" {
		return "", "", false
	}
	return line[:idx], rest, true
}

func parseSets(setsText string) ([]Set, *FormatError) {
	tokens := strings.Split(setsText, ",")
	sets := make([]Set, 0, len(tokens))
	for _, tok := range tokens {
		weightStr, repsStr, found := strings.Cut(tok, ":")
		if !found || strings.Contains(repsStr, ":") {
			return nil, &FormatError{Msg: msgInvalidWeightReps}
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
		if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return nil, &FormatError{Msg: msgInvalidWeightReps}
		}
		reps, err := strconv.Atoi(strings.TrimSpace(repsStr))
		if err != nil || reps <= 0 {
			return nil, &FormatError{Msg: msgInvalidWeightReps}
		}
		sets = append(sets, Set{Weight: weight, Reps: reps})
	}
	return sets, nil
}
