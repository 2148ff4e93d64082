// Package metastore extracts normalized table metadata from lakehouse
// storage formats: standalone Parquet files and datasets, Delta Lake
// transaction logs, Iceberg metadata documents and Hudi metadata directories.
package metastore

import (
	"context"
	"strings"

	"github.com/metalens/metalens/internal/storage"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatDelta   Format = "delta"
	FormatIceberg Format = "iceberg"
	FormatHudi    Format = "hudi"
)

const (
	// ValueUnknown marks a statistic or property this layer does not compute.
	ValueUnknown = "Unknown"

	// previewRowLimit caps the number of sample rows read from a data file.
	previewRowLimit = 10

	// historyWindow caps how many log/commit files a reconstruction scans.
	historyWindow = 10
)

type ColumnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Partition bool   `json:"partition"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Operation string `json:"operation"`
}

type Statistics struct {
	Files      string `json:"files"`
	Size       string `json:"size"`
	Rows       string `json:"rows"`
	Partitions int    `json:"partitions"`
}

// Preview is a small tabular sample of the table's data, at most
// previewRowLimit rows. Rows hold values in Columns order.
type Preview struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// MetadataResult is the common output contract of all analyzers. It is
// recomputed in full on every call; analyzers hold no state across calls.
// Warnings records every soft degradation (missing optional file, skipped
// preview) that left a field empty or "Unknown" without failing the call.
type MetadataResult struct {
	Format     Format            `json:"format"`
	Schema     []ColumnInfo      `json:"schema"`
	Properties map[string]string `json:"properties"`
	Statistics Statistics        `json:"statistics"`
	Versions   []VersionInfo     `json:"versions"`
	Partitions []string          `json:"partitions"`
	Preview    *Preview          `json:"preview_data,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// TableAnalyzer reads one table format's raw metadata through the accessor
// and normalizes it. Implementations are stateless and safe for concurrent
// use; every Analyze call performs an independent read sequence.
type TableAnalyzer interface {
	Format() Format
	Analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error)
}

// DetectFormat guesses the table format from naming conventions in the
// location. It is the calling convention for auto-detection; callers that
// know the format should pass it explicitly.
func DetectFormat(location string) Format {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "_delta_log") || strings.Contains(lower, "delta"):
		return FormatDelta
	case strings.HasSuffix(strings.TrimRight(lower, "/"), "metadata.json") || strings.Contains(lower, "iceberg"):
		return FormatIceberg
	case strings.Contains(lower, ".hoodie") || strings.Contains(lower, "hudi"):
		return FormatHudi
	default:
		return FormatParquet
	}
}

// markPartitions sets the Partition flag on every schema entry whose name is
// in the partition set. The flag is true iff the name is a member of the set.
func markPartitions(schema []ColumnInfo, partitions []string) {
	if len(partitions) == 0 {
		return
	}
	set := make(map[string]struct{}, len(partitions))
	for _, name := range partitions {
		set[name] = struct{}{}
	}
	for i := range schema {
		_, ok := set[schema[i].Name]
		schema[i].Partition = ok
	}
}
