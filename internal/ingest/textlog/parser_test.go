package textlog

import (
	"errors"
	"testing"
	"time"
)

var tokyo = time.FixedZone("JST", 9*60*60)

// refNow is the processing time used by most tests.
var refNow = time.Date(2025, time.August, 3, 21, 15, 0, 0, tokyo)

// TestIsTrainingRecord covers accepted and rejected header lines.
// Only the first line decides; later lines are never inspected.
func TestIsTrainingRecord(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"8/1 PowerGym\nBench 100:5", true},
		{"2023/8/1 Shop A\nSquat 80:10", true},
		{"12/31 Gym", true},
		{"  8/1 PowerGym  \nwhatever", true},
		{"8/1 PowerGym\r\nBench 100:5", true},
		{"8/1 ゴールドジム原宿", true},
		{"8/1\u3000パワージム\nBench 100:5", true},
		{"2023/8/1\u3000\u3000Shop A", true},
		{"8/1\u3000", false},
		{"8/1 PowerGym\nthis line is garbage", true},
		{"8/1", false},
		{"8/1 ", false},
		{"8/1PowerGym", false},
		{"123/1 Gym", false},
		{"23/8/1 Gym", false},
		{"8-1 Gym", false},
		{"Bench 100:5\n8/1 PowerGym", false},
		{"json書き出し", false},
		{"", false},
		{"hello there", false},
	}
	for _, tt := range tests {
		if got := IsTrainingRecord(tt.msg); got != tt.want {
			t.Errorf("IsTrainingRecord(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

// TestParseRoundTrip parses a single exercise with three sets and checks
// every field, including the top set on the heaviest (last) set.
func TestParseRoundTrip(t *testing.T) {
	now := time.Now().In(tokyo)
	records, err := Parse("u1", "8/1 PowerGym\nBench 100:5,100:5,110:3", now)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	wantDate := time.Date(now.Year(), time.August, 1, 0, 0, 0, 0, tokyo)
	wantSets := []Set{{100, 5}, {100, 5}, {110, 3}}
	for i, r := range records {
		if r.SenderID != "u1" {
			t.Errorf("[%d] sender = %q, want u1", i, r.SenderID)
		}
		if r.Location != "PowerGym" {
			t.Errorf("[%d] location = %q, want PowerGym", i, r.Location)
		}
		if r.Exercise != "Bench" {
			t.Errorf("[%d] exercise = %q, want Bench", i, r.Exercise)
		}
		if !r.Date.Equal(wantDate) {
			t.Errorf("[%d] date = %v, want %v", i, r.Date, wantDate)
		}
		if r.Weight != wantSets[i].Weight || r.Reps != wantSets[i].Reps {
			t.Errorf("[%d] set = %v:%d, want %v:%d", i, r.Weight, r.Reps, wantSets[i].Weight, wantSets[i].Reps)
		}
		if r.IsTopSet != (i == 2) {
			t.Errorf("[%d] isTopSet = %v", i, r.IsTopSet)
		}
	}
}

// TestParseFullWidthSpaces verifies full-width spaces separate the header
// and workout lines the same way ASCII spaces do.
func TestParseFullWidthSpaces(t *testing.T) {
	records, err := Parse("u1", "8/1\u3000パワージム\nベンチ\u3000100:5,110:3", refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for i, r := range records {
		if r.Location != "パワージム" || r.Exercise != "ベンチ" {
			t.Errorf("[%d] location = %q, exercise = %q", i, r.Location, r.Exercise)
		}
		if got := r.Date.Format(time.DateOnly); got != "2025-08-01" {
			t.Errorf("[%d] date = %s, want 2025-08-01", i, got)
		}
	}
	if !records[1].IsTopSet {
		t.Error("110:3 should be the top set")
	}
}

// TestParseExplicitYear verifies a YYYY/ prefix overrides the current year.
func TestParseExplicitYear(t *testing.T) {
	records, err := Parse("u1", "2023/8/1 Shop A\nSquat 80:10", refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if got := r.Date.Format(time.DateOnly); got != "2023-08-01" {
		t.Errorf("date = %s, want 2023-08-01", got)
	}
	if r.Location != "Shop A" {
		t.Errorf("location = %q, want %q", r.Location, "Shop A")
	}
	if !r.IsTopSet {
		t.Error("single set should be the top set")
	}
}

// TestParseDefaultYearUsesNowLocation verifies the inferred year comes from
// the processing time in its own zone, not UTC.
func TestParseDefaultYearUsesNowLocation(t *testing.T) {
	// 2025-01-01 00:30 in Tokyo is still 2024 in UTC.
	now := time.Date(2025, time.January, 1, 0, 30, 0, 0, tokyo)
	records, err := Parse("u1", "1/1 Gym\nDeadlift 140:3", now)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got := records[0].Date.Year(); got != 2025 {
		t.Errorf("year = %d, want 2025", got)
	}
	if records[0].Date.Location() != tokyo {
		t.Errorf("location = %v, want %v", records[0].Date.Location(), tokyo)
	}
}

// TestParseMultipleExercises verifies ordering across lines and one top set per line.
func TestParseMultipleExercises(t *testing.T) {
	msg := `
8/2 Home Gym
Squat 100:5, 120:3 ,110:5

Bench 80:8,80:10
Row 60:12
`
	records, err := Parse("u1", msg, refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("records = %d, want 6", len(records))
	}

	wantExercise := []string{"Squat", "Squat", "Squat", "Bench", "Bench", "Row"}
	wantTop := []bool{false, true, false, false, true, true}
	for i, r := range records {
		if r.Exercise != wantExercise[i] {
			t.Errorf("[%d] exercise = %q, want %q", i, r.Exercise, wantExercise[i])
		}
		if r.IsTopSet != wantTop[i] {
			t.Errorf("[%d] isTopSet = %v, want %v", i, r.IsTopSet, wantTop[i])
		}
		if r.Location != "Home Gym" {
			t.Errorf("[%d] location = %q", i, r.Location)
		}
	}

	tops := map[string]int{}
	for _, r := range records {
		if r.IsTopSet {
			tops[r.Exercise]++
		}
	}
	for ex, n := range tops {
		if n != 1 {
			t.Errorf("exercise %s has %d top sets, want 1", ex, n)
		}
	}
}

// TestParseDecimalWeightAndExtraWhitespace verifies the sets text after a
// whitespace run is taken verbatim and decimals are accepted.
func TestParseDecimalWeightAndExtraWhitespace(t *testing.T) {
	records, err := Parse("u1", "8/1 Gym\nCurl\t  12.5:10,15:8", refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Exercise != "Curl" || records[0].Weight != 12.5 {
		t.Errorf("first = %+v", records[0])
	}
	if !records[1].IsTopSet {
		t.Error("15:8 should be the top set")
	}
}

// TestParseHeaderOnly verifies a header without workout lines yields no records.
func TestParseHeaderOnly(t *testing.T) {
	records, err := Parse("u1", "8/1 Gym\n\n", refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

// TestTopSetIndex covers the weight-then-reps tie-break rule.
func TestTopSetIndex(t *testing.T) {
	tests := []struct {
		name string
		sets []Set
		want int
	}{
		{"reps break equal weight", []Set{{100, 5}, {100, 8}, {90, 10}}, 1},
		{"weight dominates reps", []Set{{90, 20}, {100, 1}}, 1},
		{"full tie keeps earliest", []Set{{100, 5}, {100, 5}, {100, 5}}, 0},
		{"heavier first stays", []Set{{120, 1}, {100, 10}, {110, 5}}, 0},
		{"later equal weight more reps", []Set{{100, 5}, {90, 5}, {100, 6}}, 2},
		{"single set", []Set{{50, 10}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopSetIndex(tt.sets); got != tt.want {
				t.Errorf("TopSetIndex = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestParseFormatErrors verifies every malformed message fails with a
// *FormatError carrying the expected message and no records.
func TestParseFormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantMsg string
		line    int
	}{
		{"bad header", "PowerGym 8/1\nBench 100:5", "invalid first line format", 1},
		{"header without location", "8/1\nBench 100:5", "invalid first line format", 1},
		{"full-width space without location", "8/1\u3000\nBench 100:5", "invalid first line format", 1},
		{"full-width header bad sets", "8/1\u3000Gym\nBench\u3000abc:5", "invalid weight or reps format", 2},
		{"no sets section", "8/1 Gym\nBenchOnly", "invalid workout line format", 2},
		{"non numeric weight", "8/1 Gym\nBench abc:5", "invalid weight or reps format", 2},
		{"non numeric reps", "8/1 Gym\nBench 100:five", "invalid weight or reps format", 2},
		{"missing colon", "8/1 Gym\nBench 100x5", "invalid weight or reps format", 2},
		{"double colon", "8/1 Gym\nBench 100:5:3", "invalid weight or reps format", 2},
		{"trailing comma", "8/1 Gym\nBench 100:5,", "invalid weight or reps format", 2},
		{"fractional reps", "8/1 Gym\nBench 100:5.5", "invalid weight or reps format", 2},
		{"zero reps", "8/1 Gym\nBench 100:0", "invalid weight or reps format", 2},
		{"negative weight", "8/1 Gym\nBench -10:5", "invalid weight or reps format", 2},
		{"nan weight", "8/1 Gym\nBench NaN:5", "invalid weight or reps format", 2},
		{"infinite weight", "8/1 Gym\nBench Inf:5", "invalid weight or reps format", 2},
		{"error on later line", "8/1 Gym\nSquat 100:5\n\nBenchOnly", "invalid workout line format", 4},
		{"impossible day", "2/30 Gym\nBench 100:5", "invalid date", 1},
		{"impossible month", "13/1 Gym\nBench 100:5", "invalid date", 1},
		{"day zero", "8/0 Gym\nBench 100:5", "invalid date", 1},
		{"not a leap year", "2025/2/29 Gym\nBench 100:5", "invalid date", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parse("u1", tt.msg, refNow)
			if err == nil {
				t.Fatalf("expected error, got %d records", len(records))
			}
			if records != nil {
				t.Errorf("records = %v, want nil on error", records)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %T (%v), want *FormatError", err, err)
			}
			if fe.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", fe.Error(), tt.wantMsg)
			}
			if fe.Line != tt.line {
				t.Errorf("line = %d, want %d", fe.Line, tt.line)
			}
		})
	}
}

// TestParseLeapDay verifies a real Feb 29 is accepted.
func TestParseLeapDay(t *testing.T) {
	records, err := Parse("u1", "2024/2/29 Gym\nBench 100:5", refNow)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if got := records[0].Date.Format(time.DateOnly); got != "2024-02-29" {
		t.Errorf("date = %s, want 2024-02-29", got)
	}
}
