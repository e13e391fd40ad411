package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/artifact"
	"github.com/claude/liftlog/internal/models"
)

// DefaultFileName is used when no artifact name is configured.
const DefaultFileName = "training_data.json"

// RecordReader loads stored training records.
type RecordReader interface {
	QueryTrainingRecords(ctx context.Context, filter models.RecordFilter) ([]models.TrainingRecord, error)
}

// Result describes a published export.
type Result struct {
	URL     string `json:"url"`
	Entries int    `json:"entries"`
	Sets    int    `json:"sets"`
}

// Exporter reads the whole training log and publishes it as one JSON artifact.
type Exporter struct {
	store     RecordReader
	artifacts artifact.Store
	loc       *time.Location
	fileName  string
	log       *slog.Logger
}

// NewExporter creates an exporter. loc is the zone session dates are formatted in.
func NewExporter(store RecordReader, artifacts artifact.Store, loc *time.Location, fileName string, log *slog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Exporter{store: store, artifacts: artifacts, loc: loc, fileName: fileName, log: log}
}

// History returns the aggregated entries matching filter without publishing.
func (e *Exporter) History(ctx context.Context, filter models.RecordFilter) ([]models.ExportEntry, error) {
	records, err := e.store.QueryTrainingRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading training records: %w", err)
	}
	return Aggregate(records, e.loc), nil
}

// Export aggregates every stored record and replaces the published artifact.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	records, err := e.store.QueryTrainingRecords(ctx, models.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading training records: %w", err)
	}
	entries := Aggregate(records, e.loc)

	data, err := Encode(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	url, err := e.artifacts.Publish(ctx, e.fileName, data)
	if err != nil {
		return nil, fmt.Errorf("publishing export: %w", err)
	}

	e.log.Info("export published", "entries", len(entries), "sets", len(records), "url", url)
	return &Result{URL: url, Entries: len(entries), Sets: len(records)}, nil
}
