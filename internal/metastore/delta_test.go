package metastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func deltaLogKey(version int) string {
	return fmt.Sprintf("tables/events/_delta_log/%020d.json", version)
}

func metaDataLine(schemaJSON string, partitions []string) string {
	quoted := make([]string, 0, len(partitions))
	for _, p := range partitions {
		quoted = append(quoted, fmt.Sprintf("%q", p))
	}
	return fmt.Sprintf(`{"metaData":{"schema":%s,"partitionColumns":[%s]}}`, schemaJSON, strings.Join(quoted, ","))
}

func commitInfoLine(version int64, timestamp, operation string) string {
	return fmt.Sprintf(`{"commitInfo":{"version":%d,"timestamp":%q,"operation":%q}}`, version, timestamp, operation)
}

func TestDeltaAnalyzeFromJSONLogs(t *testing.T) {
	schema := `{"fields":[{"name":"event_id","type":"string"},{"name":"ds","type":"string"},{"name":"payload","type":{"type":"struct"}}]}`
	accessor := newFakeAccessor()
	accessor.putString(deltaLogKey(0), strings.Join([]string{
		metaDataLine(schema, []string{"ds"}),
		commitInfoLine(0, "2023-05-01T10:00:00Z", "CREATE TABLE"),
		`{"add":{"path":"ds=2023-05-01/part-0.parquet","size":1024}}`,
	}, "\n"))
	accessor.putString(deltaLogKey(1), strings.Join([]string{
		commitInfoLine(1, "2023-05-02T10:00:00Z", "WRITE"),
		`{"add":{"path":"ds=2023-05-02/part-1.parquet","size":2048}}`,
		`{"add":{"path":"ds=2023-05-02/part-2.parquet","size":512}}`,
	}, "\n"))

	analyzer := &DeltaAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if got := columnNames(result.Schema); !reflect.DeepEqual(got, []string{"event_id", "ds", "payload"}) {
		t.Fatalf("schema columns = %v", got)
	}
	if result.Schema[2].Type != `{"type":"struct"}` {
		t.Errorf("nested type = %q, want raw JSON form", result.Schema[2].Type)
	}
	if !reflect.DeepEqual(result.Partitions, []string{"ds"}) {
		t.Fatalf("partitions = %v, want [ds]", result.Partitions)
	}
	assertPartitionConsistency(t, result)
	if result.Statistics.Files != "3" {
		t.Errorf("files = %q, want 3", result.Statistics.Files)
	}
	if result.Statistics.Rows != ValueUnknown || result.Statistics.Size != ValueUnknown {
		t.Errorf("rows/size = %q/%q, want %q", result.Statistics.Rows, result.Statistics.Size, ValueUnknown)
	}
	want := []VersionInfo{
		{Version: "0", Timestamp: "2023-05-01T10:00:00Z", Operation: "CREATE TABLE"},
		{Version: "1", Timestamp: "2023-05-02T10:00:00Z", Operation: "WRITE"},
	}
	if !reflect.DeepEqual(result.Versions, want) {
		t.Fatalf("versions = %+v, want %+v", result.Versions, want)
	}
	if result.Properties["last_updated"] != "2023-05-01T10:00:00Z" {
		t.Errorf("last_updated = %q", result.Properties["last_updated"])
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestDeltaAnalyzePrefersCheckpoint(t *testing.T) {
	checkpointSchema := `{"fields":[{"name":"event_id","type":"string"},{"name":"ds","type":"string"}]}`
	rows := []deltaCheckpointRow{
		{MetaData: &deltaCheckpointMetaData{
			ID:               "11111111-2222-3333-4444-555555555555",
			SchemaString:     checkpointSchema,
			PartitionColumns: []string{"ds"},
		}},
		{Add: &deltaCheckpointAdd{Path: "ds=2023-05-01/part-0.parquet", Size: 1024}},
		{Add: &deltaCheckpointAdd{Path: "ds=2023-05-02/part-1.parquet", Size: 2048}},
		{CommitInfo: &deltaCheckpointCommitInfo{Version: 5, Timestamp: 1683021600000, Operation: "WRITE"}},
	}
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[deltaCheckpointRow](&buf)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write checkpoint rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close checkpoint writer: %v", err)
	}

	accessor := newFakeAccessor()
	// A later JSON log with a divergent schema must not win over the
	// checkpoint snapshot.
	accessor.putString(deltaLogKey(0), metaDataLine(`{"fields":[{"name":"legacy","type":"string"}]}`, nil))
	accessor.put("tables/events/_delta_log/00000000000000000005.checkpoint.parquet", buf.Bytes())
	accessor.putString(deltaLogKey(7), metaDataLine(`{"fields":[{"name":"rewritten","type":"string"}]}`, nil))

	analyzer := &DeltaAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if got := columnNames(result.Schema); !reflect.DeepEqual(got, []string{"event_id", "ds"}) {
		t.Fatalf("schema columns = %v, want checkpoint schema", got)
	}
	if !reflect.DeepEqual(result.Partitions, []string{"ds"}) {
		t.Fatalf("partitions = %v, want [ds]", result.Partitions)
	}
	assertPartitionConsistency(t, result)
	if result.Statistics.Files != "2" {
		t.Errorf("files = %q, want 2", result.Statistics.Files)
	}
	want := []VersionInfo{{Version: "5", Timestamp: "1683021600000", Operation: "WRITE"}}
	if !reflect.DeepEqual(result.Versions, want) {
		t.Fatalf("versions = %+v, want %+v", result.Versions, want)
	}
}

func TestDeltaAnalyzeCheckpointWithExtraColumns(t *testing.T) {
	// Real checkpoints carry action columns beyond the subset this analyzer
	// consumes; decoding must skip them rather than fail.
	type wideMetaData struct {
		ID               string   `parquet:"id,optional"`
		SchemaString     string   `parquet:"schemaString,optional"`
		PartitionColumns []string `parquet:"partitionColumns,list"`
	}
	type wideProtocol struct {
		MinReaderVersion int32 `parquet:"minReaderVersion,optional"`
		MinWriterVersion int32 `parquet:"minWriterVersion,optional"`
	}
	type wideRemove struct {
		Path              string `parquet:"path,optional"`
		DeletionTimestamp int64  `parquet:"deletionTimestamp,optional"`
	}
	type wideRow struct {
		MetaData   *wideMetaData              `parquet:"metaData,optional"`
		Add        *deltaCheckpointAdd        `parquet:"add,optional"`
		CommitInfo *deltaCheckpointCommitInfo `parquet:"commitInfo,optional"`
		Protocol   *wideProtocol              `parquet:"protocol,optional"`
		Remove     *wideRemove                `parquet:"remove,optional"`
	}

	rows := []wideRow{
		{Protocol: &wideProtocol{MinReaderVersion: 1, MinWriterVersion: 2}},
		{MetaData: &wideMetaData{
			ID:               "m1",
			SchemaString:     `{"fields":[{"name":"event_id","type":"string"},{"name":"ds","type":"string"}]}`,
			PartitionColumns: []string{"ds"},
		}},
		{Add: &deltaCheckpointAdd{Path: "ds=2023-05-01/part-0.parquet", Size: 1024}},
		{Remove: &wideRemove{Path: "ds=2023-04-30/part-9.parquet", DeletionTimestamp: 1683000000000}},
		{CommitInfo: &deltaCheckpointCommitInfo{Version: 9, Timestamp: 1683021600000, Operation: "WRITE"}},
	}
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[wideRow](&buf)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write checkpoint rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close checkpoint writer: %v", err)
	}

	accessor := newFakeAccessor()
	accessor.put("tables/events/_delta_log/00000000000000000009.checkpoint.parquet", buf.Bytes())

	analyzer := &DeltaAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := columnNames(result.Schema); !reflect.DeepEqual(got, []string{"event_id", "ds"}) {
		t.Fatalf("schema columns = %v", got)
	}
	if !reflect.DeepEqual(result.Partitions, []string{"ds"}) {
		t.Fatalf("partitions = %v, want [ds]", result.Partitions)
	}
	if result.Statistics.Files != "1" {
		t.Errorf("files = %q, want 1", result.Statistics.Files)
	}
	want := []VersionInfo{{Version: "9", Timestamp: "1683021600000", Operation: "WRITE"}}
	if !reflect.DeepEqual(result.Versions, want) {
		t.Fatalf("versions = %+v, want %+v", result.Versions, want)
	}
}

func TestDeltaAnalyzeHistoryWindow(t *testing.T) {
	accessor := newFakeAccessor()
	for version := 1; version <= 15; version++ {
		lines := []string{commitInfoLine(int64(version), fmt.Sprintf("ts-%d", version), "WRITE")}
		if version == 3 {
			lines = append(lines, metaDataLine(`{"fields":[{"name":"only_here","type":"string"}]}`, nil))
		}
		accessor.putString(deltaLogKey(version), strings.Join(lines, "\n"))
	}

	analyzer := &DeltaAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/events/_delta_log")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// Only versions 6..15 fall inside the replay window, so the metaData
	// action in version 3 is never seen.
	if len(result.Schema) != 0 {
		t.Fatalf("schema = %v, want empty outside replay window", result.Schema)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about the missing schema")
	}
	if len(result.Versions) != historyWindow {
		t.Fatalf("versions = %d, want %d", len(result.Versions), historyWindow)
	}
	if result.Versions[0].Version != "6" || result.Versions[9].Version != "15" {
		t.Fatalf("version range = %q..%q, want 6..15", result.Versions[0].Version, result.Versions[9].Version)
	}
}

func TestDeltaAnalyzeFirstMetaDataWins(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.putString(deltaLogKey(0), metaDataLine(`{"fields":[{"name":"original","type":"string"}]}`, nil))
	accessor.putString(deltaLogKey(1), metaDataLine(`{"fields":[{"name":"replaced","type":"string"}]}`, nil))

	analyzer := &DeltaAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := columnNames(result.Schema); !reflect.DeepEqual(got, []string{"original"}) {
		t.Fatalf("schema columns = %v, want the first metaData in scan order", got)
	}
}

func TestDeltaAnalyzeNoLogEntries(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.put("tables/events/_delta_log/.crc", []byte{})

	analyzer := &DeltaAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if !errors.Is(err, ErrNoFilesFound) {
		t.Fatalf("err = %v, want ErrNoFilesFound", err)
	}
}

func TestDeltaAnalyzeMalformedFilename(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.putString("tables/events/_delta_log/latest.json", `{"commitInfo":{}}`)

	analyzer := &DeltaAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if !errors.Is(err, ErrMalformedMetadata) {
		t.Fatalf("err = %v, want ErrMalformedMetadata", err)
	}
	var scoped *Error
	if !errors.As(err, &scoped) || scoped.Format != FormatDelta {
		t.Fatalf("err not scoped to delta: %v", err)
	}
}

func TestDeltaAnalyzeMalformedLogLine(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.putString(deltaLogKey(0), "{not json")

	analyzer := &DeltaAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), accessor, "tables/events")
	if !errors.Is(err, ErrMalformedMetadata) {
		t.Fatalf("err = %v, want ErrMalformedMetadata", err)
	}
}
