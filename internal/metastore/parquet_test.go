package metastore

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type tripRow struct {
	ID   int64   `parquet:"id"`
	City string  `parquet:"city"`
	Fare float64 `parquet:"fare"`
}

func writeParquetFixture(t *testing.T, rows []tripRow) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[tripRow](&buf)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	return buf.Bytes()
}

func sampleTrips() []tripRow {
	return []tripRow{
		{ID: 1, City: "vienna", Fare: 12.5},
		{ID: 2, City: "graz", Fare: 30.0},
		{ID: 3, City: "linz", Fare: 7.25},
	}
}

func TestParquetAnalyzeSingleFile(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.put("raw/trips.parquet", writeParquetFixture(t, sampleTrips()))

	analyzer := &ParquetAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "raw/trips.parquet")
	if err != nil {
		t.Fatalf("analyze single file: %v", err)
	}

	if result.Format != FormatParquet {
		t.Fatalf("format = %q, want %q", result.Format, FormatParquet)
	}
	names := columnNames(result.Schema)
	if !reflect.DeepEqual(names, []string{"id", "city", "fare"}) {
		t.Fatalf("schema columns = %v", names)
	}
	for _, column := range result.Schema {
		if column.Partition {
			t.Errorf("column %q flagged as partition in a single file", column.Name)
		}
	}
	if result.Statistics.Files != "1" {
		t.Errorf("files = %q, want 1", result.Statistics.Files)
	}
	if result.Statistics.Rows != "3" {
		t.Errorf("rows = %q, want 3", result.Statistics.Rows)
	}
	if result.Statistics.Partitions != 0 || len(result.Partitions) != 0 {
		t.Errorf("single file reported partitions: %v", result.Partitions)
	}
	if result.Properties["num_columns"] != "3" {
		t.Errorf("num_columns = %q", result.Properties["num_columns"])
	}
	if result.Preview == nil {
		t.Fatal("preview missing")
	}
	if len(result.Preview.Rows) != 3 {
		t.Fatalf("preview rows = %d, want 3", len(result.Preview.Rows))
	}
	if !reflect.DeepEqual(result.Preview.Columns, []string{"id", "city", "fare"}) {
		t.Fatalf("preview columns = %v", result.Preview.Columns)
	}
	if got := result.Preview.Rows[0][1]; got != "vienna" {
		t.Errorf("preview[0][city] = %v, want vienna", got)
	}
}

func TestParquetAnalyzeDataset(t *testing.T) {
	data := writeParquetFixture(t, sampleTrips())
	accessor := newFakeAccessor()
	accessor.put("tables/trips/city=vienna/month=01/part-0.parquet", data)
	accessor.put("tables/trips/city=graz/month=02/part-1.parquet", data)
	accessor.put("tables/trips/_SUCCESS", []byte{})

	analyzer := &ParquetAnalyzer{}
	result, err := analyzer.Analyze(context.Background(), accessor, "tables/trips")
	if err != nil {
		t.Fatalf("analyze dataset: %v", err)
	}

	if !reflect.DeepEqual(result.Partitions, []string{"city", "month"}) {
		t.Fatalf("partitions = %v, want [city month]", result.Partitions)
	}
	if result.Statistics.Files != "2" {
		t.Errorf("files = %q, want 2", result.Statistics.Files)
	}
	if result.Statistics.Rows != ValueUnknown {
		t.Errorf("dataset rows = %q, want %q", result.Statistics.Rows, ValueUnknown)
	}
	if result.Statistics.Partitions != 2 {
		t.Errorf("partition count = %d, want 2", result.Statistics.Partitions)
	}
	assertPartitionConsistency(t, result)

	var flagged bool
	for _, column := range result.Schema {
		if column.Name == "city" && column.Partition {
			flagged = true
		}
	}
	if !flagged {
		t.Error("column city not flagged despite city= path segments")
	}
}

func TestParquetAnalyzeDatasetNoFiles(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.put("tables/empty/_SUCCESS", []byte{})

	analyzer := &ParquetAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), accessor, "tables/empty")
	if !errors.Is(err, ErrNoFilesFound) {
		t.Fatalf("err = %v, want ErrNoFilesFound", err)
	}
	var scoped *Error
	if !errors.As(err, &scoped) || scoped.Format != FormatParquet {
		t.Fatalf("err not scoped to parquet: %v", err)
	}
}

func TestParquetAnalyzeNotFound(t *testing.T) {
	analyzer := &ParquetAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), newFakeAccessor(), "raw/missing.parquet")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestParquetAnalyzeMalformed(t *testing.T) {
	accessor := newFakeAccessor()
	accessor.put("raw/broken.parquet", []byte("not a parquet file"))

	analyzer := &ParquetAnalyzer{}
	_, err := analyzer.Analyze(context.Background(), accessor, "raw/broken.parquet")
	if !errors.Is(err, ErrMalformedMetadata) {
		t.Fatalf("err = %v, want ErrMalformedMetadata", err)
	}
}

func TestInferPartitions(t *testing.T) {
	keys := []string{
		"tables/trips/year=2023/month=01/part-0.parquet",
		"tables/trips/year=2023/month=02/part-1.parquet",
		"tables/trips/part-2.parquet",
	}
	got := InferPartitions(keys)
	if !reflect.DeepEqual(got, []string{"month", "year"}) {
		t.Fatalf("InferPartitions = %v, want [month year]", got)
	}
	if !reflect.DeepEqual(InferPartitions(nil), []string{}) {
		t.Fatalf("InferPartitions(nil) = %v, want empty", InferPartitions(nil))
	}
}

func columnNames(schema []ColumnInfo) []string {
	names := make([]string, 0, len(schema))
	for _, column := range schema {
		names = append(names, column.Name)
	}
	return names
}
