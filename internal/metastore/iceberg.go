package metastore

import (
	"context"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/metalens/metalens/internal/storage"
)

// IcebergAnalyzer parses a single metadata.json-style document. It does not
// walk manifest lists or manifests, so file and byte statistics are always
// reported unknown.
type IcebergAnalyzer struct{}

func (a *IcebergAnalyzer) Format() Format { return FormatIceberg }

type icebergMetadata struct {
	FormatVersion *int              `json:"format-version"`
	Location      string            `json:"location"`
	TableUUID     string            `json:"table-uuid"`
	CurrentSchema *icebergSchema    `json:"current-schema"`
	PartitionSpec *icebergSpec      `json:"partition-spec"`
	Properties    map[string]any    `json:"properties"`
	Snapshots     []icebergSnapshot `json:"snapshots"`
}

type icebergSchema struct {
	Fields []icebergField `json:"fields"`
}

type icebergField struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Required bool            `json:"required"`
}

type icebergSpec struct {
	Fields []icebergSpecField `json:"fields"`
}

type icebergSpecField struct {
	Name string `json:"name"`
}

type icebergSnapshot struct {
	SnapshotID  *int64            `json:"snapshot-id"`
	TimestampMS *int64            `json:"timestamp-ms"`
	Operation   string            `json:"operation"`
	Summary     map[string]string `json:"summary"`
}

func (a *IcebergAnalyzer) Analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	result, err := a.analyze(ctx, accessor, location)
	if err != nil {
		return MetadataResult{}, analyzeError(FormatIceberg, err)
	}
	return result, nil
}

func (a *IcebergAnalyzer) analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	data, err := accessor.Read(ctx, location)
	if err != nil {
		return MetadataResult{}, translateStorageErr(err, "iceberg metadata "+location)
	}

	var metadata icebergMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return MetadataResult{}, fmt.Errorf("%w: iceberg metadata document: %v", ErrMalformedMetadata, err)
	}

	var warnings []string
	var columns []ColumnInfo
	if metadata.CurrentSchema != nil {
		columns = make([]ColumnInfo, 0, len(metadata.CurrentSchema.Fields))
		for _, field := range metadata.CurrentSchema.Fields {
			columns = append(columns, ColumnInfo{Name: field.Name, Type: jsonTypeString(field.Type)})
		}
	} else {
		warnings = append(warnings, "metadata document has no current-schema; schema unavailable")
	}

	partitions := []string{}
	if metadata.PartitionSpec != nil {
		for _, field := range metadata.PartitionSpec.Fields {
			partitions = append(partitions, field.Name)
		}
	}
	markPartitions(columns, partitions)

	// Snapshot list order is preserved verbatim; the document does not
	// guarantee chronological order and none is imposed.
	versions := make([]VersionInfo, 0, len(metadata.Snapshots))
	for _, snapshot := range metadata.Snapshots {
		version := ValueUnknown
		if snapshot.SnapshotID != nil {
			version = strconv.FormatInt(*snapshot.SnapshotID, 10)
		}
		timestamp := ValueUnknown
		if snapshot.TimestampMS != nil {
			timestamp = strconv.FormatInt(*snapshot.TimestampMS, 10)
		}
		operation := snapshot.Operation
		if operation == "" {
			operation = snapshot.Summary["operation"]
		}
		if operation == "" {
			operation = ValueUnknown
		}
		versions = append(versions, VersionInfo{Version: version, Timestamp: timestamp, Operation: operation})
	}

	formatVersion := ValueUnknown
	if metadata.FormatVersion != nil {
		formatVersion = strconv.Itoa(*metadata.FormatVersion)
	}
	tableLocation := metadata.Location
	if tableLocation == "" {
		tableLocation = ValueUnknown
	}
	tableUUID := metadata.TableUUID
	if tableUUID == "" {
		tableUUID = ValueUnknown
	}
	lastUpdated := ValueUnknown
	if raw, ok := metadata.Properties["last-updated-ms"]; ok {
		lastUpdated = propertyString(raw)
	}

	warnings = append(warnings, "manifest-level statistics are not computed")

	return MetadataResult{
		Format: FormatIceberg,
		Schema: columns,
		Properties: map[string]string{
			"format":         "Iceberg",
			"format_version": formatVersion,
			"last_updated":   lastUpdated,
			"location":       tableLocation,
			"table_uuid":     tableUUID,
		},
		Statistics: Statistics{
			Files:      ValueUnknown,
			Size:       ValueUnknown,
			Rows:       ValueUnknown,
			Partitions: len(partitions),
		},
		Versions:   versions,
		Partitions: partitions,
		Warnings:   warnings,
	}, nil
}

// propertyString renders an untyped property value as text. Integral numbers
// keep their decimal spelling instead of the float64 default notation.
func propertyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
