package metastore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parquet-go/parquet-go"
)

const parquetExtension = ".parquet"

func openParquet(data []byte) (*parquet.File, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet file: %v", ErrMalformedMetadata, err)
	}
	return file, nil
}

// parquetColumns reports the file's top-level fields with their native
// parquet type spelling. Group fields are reported as "group".
func parquetColumns(file *parquet.File) []ColumnInfo {
	fields := file.Schema().Fields()
	columns := make([]ColumnInfo, 0, len(fields))
	for _, field := range fields {
		typeName := "group"
		if field.Leaf() {
			typeName = field.Type().String()
		}
		columns = append(columns, ColumnInfo{Name: field.Name(), Type: typeName})
	}
	return columns
}

// readParquetPreview reads up to limit rows from the file's first row group.
// Returns nil when the file holds no rows.
func readParquetPreview(file *parquet.File, limit int) (*Preview, error) {
	rowGroups := file.RowGroups()
	if len(rowGroups) == 0 {
		return nil, nil
	}

	schema := file.Schema()
	paths := schema.Columns()
	names := make([]string, len(paths))
	types := make([]parquet.Type, len(paths))
	for i, path := range paths {
		names[i] = strings.Join(path, ".")
		if leaf, ok := schema.Lookup(path...); ok {
			types[i] = leaf.Node.Type()
		}
	}

	rows := rowGroups[0].Rows()
	defer func() { _ = rows.Close() }()

	buffer := make([]parquet.Row, limit)
	n, err := rows.ReadRows(buffer)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read parquet rows: %v", ErrMalformedMetadata, err)
	}
	if n == 0 {
		return nil, nil
	}

	preview := &Preview{Columns: names, Rows: make([][]any, 0, n)}
	for _, row := range buffer[:n] {
		values := make([]any, len(names))
		for _, value := range row {
			column := value.Column()
			if column < 0 || column >= len(values) {
				continue
			}
			values[column] = parquetValueToGo(value, types[column])
		}
		preview.Rows = append(preview.Rows, values)
	}
	return preview, nil
}

// parquetValueToGo converts a raw parquet value into a plain Go value,
// honoring date/timestamp logical annotations.
func parquetValueToGo(value parquet.Value, typ parquet.Type) any {
	if value.IsNull() {
		return nil
	}

	if typ != nil {
		if logical := typ.LogicalType(); logical != nil {
			if logical.Date != nil {
				return time.Unix(int64(value.Int32())*86400, 0).UTC().Format(time.RFC3339)
			}
			if ts := logical.Timestamp; ts != nil {
				raw := value.Int64()
				var t time.Time
				switch {
				case ts.Unit.Nanos != nil:
					t = time.Unix(0, raw).UTC()
				case ts.Unit.Micros != nil:
					t = time.Unix(0, raw*1_000).UTC()
				default:
					t = time.Unix(0, raw*1_000_000).UTC()
				}
				return t.Format(time.RFC3339)
			}
		}
	}

	switch value.Kind() {
	case parquet.Boolean:
		return value.Boolean()
	case parquet.Int32:
		return int64(value.Int32())
	case parquet.Int64:
		return value.Int64()
	case parquet.Float:
		return float64(value.Float())
	case parquet.Double:
		return value.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		raw := value.ByteArray()
		if utf8.Valid(raw) {
			return string(raw)
		}
		return base64.StdEncoding.EncodeToString(raw)
	default:
		return value.String()
	}
}
