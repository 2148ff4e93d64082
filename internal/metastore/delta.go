package metastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"

	"github.com/metalens/metalens/internal/storage"
)

const (
	deltaLogDir        = "_delta_log"
	deltaCheckpointExt = ".checkpoint.parquet"
	deltaLogExt        = ".json"
)

// DeltaAnalyzer reconstructs table state from a Delta transaction log. The
// latest checkpoint snapshot is preferred; without one, only the most recent
// historyWindow JSON log entries are replayed, so a table whose last schema
// change lies outside that window reports a stale or missing schema.
type DeltaAnalyzer struct{}

func (a *DeltaAnalyzer) Format() Format { return FormatDelta }

// deltaSchema mirrors the JSON table schema embedded in a metaData action.
type deltaSchema struct {
	Fields []deltaSchemaField `json:"fields"`
}

type deltaSchemaField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type deltaActionMetaData struct {
	Schema           *deltaSchema `json:"schema"`
	SchemaString     string       `json:"schemaString"`
	PartitionColumns []string     `json:"partitionColumns"`
}

type deltaActionCommitInfo struct {
	Version   *int64          `json:"version"`
	Timestamp json.RawMessage `json:"timestamp"`
	Operation string          `json:"operation"`
}

type deltaAction struct {
	MetaData   *deltaActionMetaData   `json:"metaData"`
	CommitInfo *deltaActionCommitInfo `json:"commitInfo"`
	Add        json.RawMessage        `json:"add"`
}

// Checkpoint rows are typed projections of the log action columns this
// analyzer consumes; columns outside this subset are skipped by the reader.
type deltaCheckpointMetaData struct {
	ID               string   `parquet:"id,optional"`
	Name             string   `parquet:"name,optional"`
	SchemaString     string   `parquet:"schemaString,optional"`
	PartitionColumns []string `parquet:"partitionColumns,list,optional"`
}

type deltaCheckpointAdd struct {
	Path             string `parquet:"path,optional"`
	Size             int64  `parquet:"size,optional"`
	ModificationTime int64  `parquet:"modificationTime,optional"`
}

type deltaCheckpointCommitInfo struct {
	Version   int64  `parquet:"version,optional"`
	Timestamp int64  `parquet:"timestamp,optional"`
	Operation string `parquet:"operation,optional"`
}

type deltaCheckpointRow struct {
	MetaData   *deltaCheckpointMetaData   `parquet:"metaData,optional"`
	Add        *deltaCheckpointAdd        `parquet:"add,optional"`
	CommitInfo *deltaCheckpointCommitInfo `parquet:"commitInfo,optional"`
}

// deltaState accumulates what a scan over log actions observed.
type deltaState struct {
	schema     *deltaSchema
	partitions []string
	versions   []VersionInfo
	addCount   int
}

func (a *DeltaAnalyzer) Analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	result, err := a.analyze(ctx, accessor, location)
	if err != nil {
		return MetadataResult{}, analyzeError(FormatDelta, err)
	}
	return result, nil
}

func (a *DeltaAnalyzer) analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	logPath := strings.TrimRight(location, "/")
	if path.Base(logPath) != deltaLogDir {
		logPath = logPath + "/" + deltaLogDir
	}

	objects, err := accessor.List(ctx, logPath)
	if err != nil {
		return MetadataResult{}, translateStorageErr(err, "delta log "+logPath)
	}

	var checkpoints, logs []string
	for _, object := range objects {
		switch {
		case strings.HasSuffix(object.Key, deltaCheckpointExt):
			checkpoints = append(checkpoints, object.Key)
		case strings.HasSuffix(object.Key, deltaLogExt):
			logs = append(logs, object.Key)
		}
	}
	if len(checkpoints) == 0 && len(logs) == 0 {
		return MetadataResult{}, fmt.Errorf("%w: no delta log entries under %s", ErrNoFilesFound, logPath)
	}

	if err := sortByVersionPrefix(checkpoints); err != nil {
		return MetadataResult{}, err
	}
	if err := sortByVersionPrefix(logs); err != nil {
		return MetadataResult{}, err
	}

	var state deltaState
	var warnings []string
	if len(checkpoints) > 0 {
		state, err = a.scanCheckpoint(ctx, accessor, checkpoints[len(checkpoints)-1])
	} else {
		if len(logs) > historyWindow {
			logs = logs[len(logs)-historyWindow:]
		}
		state, err = a.scanLogs(ctx, accessor, logs)
	}
	if err != nil {
		return MetadataResult{}, err
	}

	var columns []ColumnInfo
	if state.schema != nil {
		columns = make([]ColumnInfo, 0, len(state.schema.Fields))
		for _, field := range state.schema.Fields {
			columns = append(columns, ColumnInfo{Name: field.Name, Type: jsonTypeString(field.Type)})
		}
	} else {
		warnings = append(warnings, "no metaData action in the examined log range; schema unavailable")
	}
	partitions := state.partitions
	if partitions == nil {
		partitions = []string{}
	}
	markPartitions(columns, partitions)

	lastUpdated := ValueUnknown
	if len(state.versions) > 0 {
		lastUpdated = state.versions[0].Timestamp
	}

	return MetadataResult{
		Format: FormatDelta,
		Schema: columns,
		Properties: map[string]string{
			"format":       "Delta",
			"last_updated": lastUpdated,
			"location":     strings.Replace(location, "/"+deltaLogDir, "", 1),
		},
		Statistics: Statistics{
			Files:      strconv.Itoa(state.addCount),
			Size:       ValueUnknown,
			Rows:       ValueUnknown,
			Partitions: len(partitions),
		},
		Versions:   state.versions,
		Partitions: partitions,
		Warnings:   warnings,
	}, nil
}

// scanCheckpoint reads every row of the latest checkpoint as a log action.
func (a *DeltaAnalyzer) scanCheckpoint(ctx context.Context, accessor storage.Accessor, key string) (deltaState, error) {
	data, err := accessor.Read(ctx, key)
	if err != nil {
		return deltaState{}, translateStorageErr(err, "delta checkpoint "+key)
	}

	reader := parquet.NewGenericReader[deltaCheckpointRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	var state deltaState
	buffer := make([]deltaCheckpointRow, 64)
	for {
		n, err := reader.Read(buffer)
		for _, row := range buffer[:n] {
			if row.MetaData != nil {
				if state.schema == nil && row.MetaData.SchemaString != "" {
					var schema deltaSchema
					if err := json.Unmarshal([]byte(row.MetaData.SchemaString), &schema); err != nil {
						return deltaState{}, fmt.Errorf("%w: checkpoint schemaString: %v", ErrMalformedMetadata, err)
					}
					state.schema = &schema
				}
				if state.partitions == nil && row.MetaData.PartitionColumns != nil {
					state.partitions = row.MetaData.PartitionColumns
				}
			}
			if row.Add != nil && row.Add.Path != "" {
				state.addCount++
			}
			if info := row.CommitInfo; info != nil && (info.Operation != "" || info.Timestamp != 0) {
				state.versions = append(state.versions, VersionInfo{
					Version:   strconv.FormatInt(info.Version, 10),
					Timestamp: strconv.FormatInt(info.Timestamp, 10),
					Operation: info.Operation,
				})
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return deltaState{}, fmt.Errorf("%w: read checkpoint %s: %v", ErrMalformedMetadata, key, err)
		}
	}
	return state, nil
}

// scanLogs replays the given JSON log files, one JSON-encoded action per line.
func (a *DeltaAnalyzer) scanLogs(ctx context.Context, accessor storage.Accessor, keys []string) (deltaState, error) {
	var state deltaState
	for _, key := range keys {
		data, err := accessor.Read(ctx, key)
		if err != nil {
			return deltaState{}, translateStorageErr(err, "delta log entry "+key)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var action deltaAction
			if err := json.Unmarshal([]byte(line), &action); err != nil {
				return deltaState{}, fmt.Errorf("%w: log entry %s: %v", ErrMalformedMetadata, key, err)
			}
			if meta := action.MetaData; meta != nil {
				if state.schema == nil {
					schema, err := meta.tableSchema()
					if err != nil {
						return deltaState{}, fmt.Errorf("%w: log entry %s: %v", ErrMalformedMetadata, key, err)
					}
					state.schema = schema
				}
				if state.partitions == nil && meta.PartitionColumns != nil {
					state.partitions = meta.PartitionColumns
				}
			}
			if info := action.CommitInfo; info != nil {
				version := ValueUnknown
				if info.Version != nil {
					version = strconv.FormatInt(*info.Version, 10)
				}
				state.versions = append(state.versions, VersionInfo{
					Version:   version,
					Timestamp: jsonScalarString(info.Timestamp),
					Operation: info.Operation,
				})
			}
			if len(action.Add) > 0 && string(action.Add) != "null" {
				state.addCount++
			}
		}
	}
	return state, nil
}

// tableSchema returns the inline schema object when present, otherwise the
// schema parsed from the JSON-encoded schemaString spelling.
func (m *deltaActionMetaData) tableSchema() (*deltaSchema, error) {
	if m.Schema != nil {
		return m.Schema, nil
	}
	if m.SchemaString == "" {
		return nil, nil
	}
	var schema deltaSchema
	if err := json.Unmarshal([]byte(m.SchemaString), &schema); err != nil {
		return nil, fmt.Errorf("schemaString: %v", err)
	}
	return &schema, nil
}

// sortByVersionPrefix orders delta log filenames by the integer version
// encoded before the first dot of the base name.
func sortByVersionPrefix(keys []string) error {
	versions := make(map[string]int64, len(keys))
	for _, key := range keys {
		base := path.Base(key)
		prefix, _, _ := strings.Cut(base, ".")
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: log filename %q has no version prefix", ErrMalformedMetadata, base)
		}
		versions[key] = version
	}
	sort.SliceStable(keys, func(i, j int) bool { return versions[keys[i]] < versions[keys[j]] })
	return nil
}

// jsonScalarString renders a JSON scalar (string or number) as text.
func jsonScalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ValueUnknown
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// jsonTypeString renders a schema field type in its native spelling: plain
// strings are unquoted, nested type objects keep their JSON form.
func jsonTypeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
