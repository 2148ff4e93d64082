package metastore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/hamba/avro/v2"

	"github.com/metalens/metalens/internal/storage"
)

const (
	hoodieDir           = ".hoodie"
	hoodiePropertiesKey = "hoodie.properties"
	hoodieSchemaKey     = "schema"
	hoodieCommitsDir    = "commits"
	hoodieCommitExt     = ".commit"
)

// HudiAnalyzer reads the hidden .hoodie metadata directory of a Hudi table.
// hoodie.properties is mandatory; the schema file and commit history are
// optional enrichments that degrade to empty fields when absent.
type HudiAnalyzer struct{}

func (a *HudiAnalyzer) Format() Format { return FormatHudi }

type hudiCommit struct {
	CommitTime     string            `json:"commitTime"`
	OperationType  string            `json:"operationType"`
	FileAdded      []json.RawMessage `json:"fileAdded"`
	RecordsWritten int64             `json:"recordsWritten"`
}

func (a *HudiAnalyzer) Analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	result, err := a.analyze(ctx, accessor, location)
	if err != nil {
		return MetadataResult{}, analyzeError(FormatHudi, err)
	}
	return result, nil
}

func (a *HudiAnalyzer) analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	base := strings.TrimRight(location, "/")
	metaDir := base + "/" + hoodieDir

	properties, err := a.readProperties(ctx, accessor, metaDir+"/"+hoodiePropertiesKey)
	if err != nil {
		return MetadataResult{}, err
	}

	var warnings []string
	columns, warning, err := a.readSchema(ctx, accessor, metaDir+"/"+hoodieSchemaKey)
	if err != nil {
		return MetadataResult{}, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	commits, warning, err := a.readCommits(ctx, accessor, metaDir+"/"+hoodieCommitsDir)
	if err != nil {
		return MetadataResult{}, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	var partitions []string
	if fields := properties["hoodie.table.partition.fields"]; fields != "" {
		partitions = strings.Split(fields, ",")
	} else {
		partitions = []string{}
	}
	markPartitions(columns, partitions)

	versions := make([]VersionInfo, 0, len(commits))
	var totalFiles int
	var totalRows int64
	for _, commit := range commits {
		operation := commit.OperationType
		if operation == "" {
			operation = ValueUnknown
		}
		// commitTime doubles as the version identifier in this format.
		versions = append(versions, VersionInfo{
			Version:   commit.CommitTime,
			Timestamp: commit.CommitTime,
			Operation: operation,
		})
		totalFiles += len(commit.FileAdded)
		totalRows += commit.RecordsWritten
	}

	files := ValueUnknown
	if totalFiles > 0 {
		files = strconv.Itoa(totalFiles)
	}
	rows := ValueUnknown
	if totalRows > 0 {
		rows = humanize.Comma(totalRows)
	}

	preview, warning := a.findPreview(ctx, accessor, base)
	if warning != "" {
		warnings = append(warnings, warning)
	}

	return MetadataResult{
		Format: FormatHudi,
		Schema: columns,
		Properties: map[string]string{
			"format":              "Hudi",
			"table_type":          propertyOr(properties, "hoodie.table.type"),
			"table_name":          propertyOr(properties, "hoodie.table.name"),
			"base_path":           location,
			"compaction_strategy": propertyOr(properties, "hoodie.compaction.strategy"),
			"archiving_enabled":   propertyOr(properties, "hoodie.archive.enabled"),
		},
		Statistics: Statistics{
			Files:      files,
			Size:       ValueUnknown,
			Rows:       rows,
			Partitions: len(partitions),
		},
		Versions:   versions,
		Partitions: partitions,
		Preview:    preview,
		Warnings:   warnings,
	}, nil
}

// readProperties parses the mandatory java-properties file: key=value lines,
// #-prefixed lines ignored.
func (a *HudiAnalyzer) readProperties(ctx context.Context, accessor storage.Accessor, key string) (map[string]string, error) {
	data, err := accessor.Read(ctx, key)
	if err != nil {
		return nil, translateStorageErr(err, "hoodie.properties at "+key)
	}
	properties := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: property line %q has no separator", ErrMalformedMetadata, line)
		}
		properties[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return properties, nil
}

// readSchema parses the optional avro record schema. Absence is soft; a
// present but unparsable schema is a hard failure.
func (a *HudiAnalyzer) readSchema(ctx context.Context, accessor storage.Accessor, key string) ([]ColumnInfo, string, error) {
	data, err := accessor.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "schema file absent; schema unavailable", nil
		}
		return nil, "", translateStorageErr(err, "hudi schema at "+key)
	}

	schema, err := avro.Parse(string(data))
	if err != nil {
		// Some writers store a bare {"fields": [...]} document instead of a
		// full avro record; walk it directly before giving up.
		columns, jsonErr := bareSchemaColumns(data)
		if jsonErr != nil {
			return nil, "", fmt.Errorf("%w: hudi schema: %v", ErrMalformedMetadata, err)
		}
		return columns, "", nil
	}
	record, ok := schema.(*avro.RecordSchema)
	if !ok {
		return nil, "schema file is not an avro record; schema unavailable", nil
	}

	columns := make([]ColumnInfo, 0, len(record.Fields()))
	for _, field := range record.Fields() {
		columns = append(columns, ColumnInfo{Name: field.Name(), Type: avroTypeName(field.Type())})
	}
	return columns, "", nil
}

func bareSchemaColumns(data []byte) ([]ColumnInfo, error) {
	var doc struct {
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("schema document has no fields")
	}
	columns := make([]ColumnInfo, 0, len(doc.Fields))
	for _, field := range doc.Fields {
		columns = append(columns, ColumnInfo{Name: field.Name, Type: jsonTypeString(field.Type)})
	}
	return columns, nil
}

// readCommits scans the last historyWindow commit documents in
// lexicographic filename order. A missing commits directory is soft.
func (a *HudiAnalyzer) readCommits(ctx context.Context, accessor storage.Accessor, prefix string) ([]hudiCommit, string, error) {
	objects, err := accessor.List(ctx, prefix)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "no commits directory; version history unavailable", nil
		}
		return nil, "", translateStorageErr(err, "hudi commits under "+prefix)
	}

	var keys []string
	for _, object := range objects {
		if strings.HasSuffix(object.Key, hoodieCommitExt) {
			keys = append(keys, object.Key)
		}
	}
	sort.Strings(keys)
	if len(keys) > historyWindow {
		keys = keys[len(keys)-historyWindow:]
	}

	commits := make([]hudiCommit, 0, len(keys))
	for _, key := range keys {
		data, err := accessor.Read(ctx, key)
		if err != nil {
			return nil, "", translateStorageErr(err, "hudi commit "+key)
		}
		var commit hudiCommit
		if err := json.Unmarshal(data, &commit); err != nil {
			return nil, "", fmt.Errorf("%w: commit %s: %v", ErrMalformedMetadata, key, err)
		}
		commits = append(commits, commit)
	}
	return commits, "", nil
}

// findPreview locates the first parquet data file under the table location
// and samples it. Preview is a convenience; every failure here is swallowed
// into a warning.
func (a *HudiAnalyzer) findPreview(ctx context.Context, accessor storage.Accessor, location string) (*Preview, string) {
	objects, err := accessor.List(ctx, location)
	if err != nil {
		return nil, fmt.Sprintf("preview unavailable: %v", err)
	}
	for _, object := range objects {
		if !strings.HasSuffix(object.Key, parquetExtension) {
			continue
		}
		data, err := accessor.Read(ctx, object.Key)
		if err != nil {
			return nil, fmt.Sprintf("preview unavailable: %v", err)
		}
		file, err := openParquet(data)
		if err != nil {
			return nil, fmt.Sprintf("preview unavailable: %v", err)
		}
		preview, err := readParquetPreview(file, previewRowLimit)
		if err != nil {
			return nil, fmt.Sprintf("preview unavailable: %v", err)
		}
		return preview, ""
	}
	return nil, "no parquet data file found for preview"
}

func propertyOr(properties map[string]string, key string) string {
	if value := properties[key]; value != "" {
		return value
	}
	return ValueUnknown
}

// avroTypeName reports an avro schema's type name; unions of null and one
// concrete type report the concrete type.
func avroTypeName(schema avro.Schema) string {
	if union, ok := schema.(*avro.UnionSchema); ok {
		var names []string
		for _, branch := range union.Types() {
			if branch.Type() == avro.Null {
				continue
			}
			names = append(names, string(branch.Type()))
		}
		if len(names) == 1 {
			return names[0]
		}
		return "union[" + strings.Join(names, ",") + "]"
	}
	return string(schema.Type())
}
