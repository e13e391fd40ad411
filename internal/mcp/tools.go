package mcp

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/export"
	"github.com/claude/liftlog/internal/models"
)

const defaultRangeDays = 30

// defaultTimeRange returns start/end defaulting to the 30 days up to and
// including today. Dates without a time are calendar days in loc and end is
// inclusive, so the returned end is the following midnight.
func defaultTimeRange(startStr, endStr string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		var dateOnly bool
		end, dateOnly, err = parseFlexTime(endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1)
		}
	} else {
		y, m, d := now.In(loc).Date()
		end = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}

	if startStr != "" {
		start, _, err = parseFlexTime(startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -defaultRangeDays)
	}

	return start, end, nil
}

func parseFlexTime(s string, loc *time.Location) (time.Time, bool, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, false, nil
	}
	t, err = time.ParseInLocation(time.DateOnly, s, loc)
	if err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}

// setRow is one stored set as returned by get_training_sets.
type setRow struct {
	SenderID   string  `json:"sender_id"`
	Date       string  `json:"date"`
	Location   string  `json:"location"`
	Exercise   string  `json:"exercise"`
	Weight     float64 `json:"weight"`
	Reps       int     `json:"reps"`
	TopSetFlag int     `json:"topSetFlag"`
}

// exerciseSummary is one row of list_exercises.
type exerciseSummary struct {
	Name      string  `json:"name"`
	Sets      int     `json:"sets"`
	MaxWeight float64 `json:"max_weight"`
	LastDate  string  `json:"last_date"`
}

// --- Tool definitions ---

var toolGetTrainingSets = mcp.NewTool("get_training_sets",
	mcp.WithDescription("Query individual recorded sets in log order. Each row has date, location, exercise, weight, reps and the top-set flag."),
	mcp.WithString("sender", mcp.Description("Only sets recorded by this sender ID")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (case-insensitive partial match, e.g. 'bench')")),
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD or ISO 8601). Defaults to 30 days before end.")),
	mcp.WithString("end", mcp.Description("End date, inclusive (YYYY-MM-DD or ISO 8601). Defaults to now.")),
)

var toolGetTrainingHistory = mcp.NewTool("get_training_history",
	mcp.WithDescription("Training sessions grouped by date and location, with each exercise's sets in recorded order. Same shape as the JSON export."),
	mcp.WithString("sender", mcp.Description("Only sessions recorded by this sender ID")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (case-insensitive partial match)")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days before end.")),
	mcp.WithString("end", mcp.Description("End date, inclusive. Defaults to now.")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List every exercise ever recorded with its set count, heaviest weight and most recent date."),
	mcp.WithString("sender", mcp.Description("Only exercises recorded by this sender ID")),
)

// --- Tool handlers ---

func (h *handlers) filterFromRequest(req mcp.CallToolRequest) (models.RecordFilter, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), h.now(), h.loc)
	if err != nil {
		return models.RecordFilter{}, err
	}
	return models.RecordFilter{
		SenderID: req.GetString("sender", ""),
		Exercise: req.GetString("exercise", ""),
		Start:    start,
		End:      end,
	}, nil
}

func (h *handlers) getTrainingSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := h.filterFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	records, err := h.ds.QueryTrainingRecords(ctx, filter)
	if err != nil {
		h.log.Error("mcp get_training_sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	rows := make([]setRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, setRow{
			SenderID:   r.SenderID,
			Date:       r.Date.In(h.loc).Format(time.DateOnly),
			Location:   r.Location,
			Exercise:   r.Exercise,
			Weight:     r.Weight,
			Reps:       r.Reps,
			TopSetFlag: r.TopSetFlag(),
		})
	}

	result, err := mcp.NewToolResultJSON(rows)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := h.filterFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	records, err := h.ds.QueryTrainingRecords(ctx, filter)
	if err != nil {
		h.log.Error("mcp get_training_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(export.Aggregate(records, h.loc))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.ds.QueryTrainingRecords(ctx, models.RecordFilter{SenderID: req.GetString("sender", "")})
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summarizeExercises(records, h.loc))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// summarizeExercises folds records into one row per exercise name, matched
// case-insensitively and sorted by name.
func summarizeExercises(records []models.TrainingRecord, loc *time.Location) []exerciseSummary {
	index := make(map[string]int)
	out := []exerciseSummary{}
	for _, r := range records {
		key := strings.ToLower(r.Exercise)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, exerciseSummary{Name: r.Exercise})
		}
		s := &out[i]
		s.Sets++
		if r.Weight > s.MaxWeight {
			s.MaxWeight = r.Weight
		}
		if d := r.Date.In(loc).Format(time.DateOnly); d > s.LastDate {
			s.LastDate = d
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
