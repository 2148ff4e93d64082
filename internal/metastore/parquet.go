package metastore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/metalens/metalens/internal/storage"
)

// ParquetAnalyzer inspects standalone parquet files and hive-partitioned
// parquet datasets. A location ending in the parquet extension is analyzed
// as a single file; any other location is scanned as a dataset prefix.
type ParquetAnalyzer struct{}

func (a *ParquetAnalyzer) Format() Format { return FormatParquet }

func (a *ParquetAnalyzer) Analyze(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	var (
		result MetadataResult
		err    error
	)
	if strings.HasSuffix(location, parquetExtension) {
		result, err = a.analyzeSingleFile(ctx, accessor, location)
	} else {
		result, err = a.analyzeDataset(ctx, accessor, location)
	}
	if err != nil {
		return MetadataResult{}, analyzeError(FormatParquet, err)
	}
	return result, nil
}

func (a *ParquetAnalyzer) analyzeSingleFile(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	data, err := accessor.Read(ctx, location)
	if err != nil {
		return MetadataResult{}, translateStorageErr(err, "parquet file "+location)
	}
	file, err := openParquet(data)
	if err != nil {
		return MetadataResult{}, err
	}

	columns := parquetColumns(file)
	preview, err := readParquetPreview(file, previewRowLimit)
	if err != nil {
		return MetadataResult{}, err
	}

	meta := file.Metadata()
	createdBy := meta.CreatedBy
	if createdBy == "" {
		createdBy = ValueUnknown
	}

	// A single file's own metadata cannot express partitioning.
	return MetadataResult{
		Format: FormatParquet,
		Schema: columns,
		Properties: map[string]string{
			"format":         "Parquet",
			"created_by":     createdBy,
			"num_columns":    strconv.Itoa(len(columns)),
			"num_row_groups": strconv.Itoa(len(file.RowGroups())),
		},
		Statistics: Statistics{
			Files:      "1",
			Size:       humanize.Bytes(uint64(len(data))),
			Rows:       humanize.Comma(meta.NumRows),
			Partitions: 0,
		},
		Partitions: []string{},
		Preview:    preview,
	}, nil
}

func (a *ParquetAnalyzer) analyzeDataset(ctx context.Context, accessor storage.Accessor, location string) (MetadataResult, error) {
	objects, err := accessor.List(ctx, location)
	if err != nil {
		return MetadataResult{}, translateStorageErr(err, "parquet dataset "+location)
	}

	var files []storage.ObjectInfo
	for _, object := range objects {
		if strings.HasSuffix(object.Key, parquetExtension) {
			files = append(files, object)
		}
	}
	if len(files) == 0 {
		return MetadataResult{}, fmt.Errorf("%w: no parquet files under %s", ErrNoFilesFound, location)
	}

	// Schema and preview come from the first file in listing order; the
	// exact total row count would require every file's footer and is not
	// computed here.
	data, err := accessor.Read(ctx, files[0].Key)
	if err != nil {
		return MetadataResult{}, translateStorageErr(err, "parquet file "+files[0].Key)
	}
	file, err := openParquet(data)
	if err != nil {
		return MetadataResult{}, err
	}
	columns := parquetColumns(file)
	preview, err := readParquetPreview(file, previewRowLimit)
	if err != nil {
		return MetadataResult{}, err
	}

	var totalSize int64
	keys := make([]string, 0, len(files))
	for _, object := range files {
		totalSize += object.Size
		keys = append(keys, object.Key)
	}

	partitions := InferPartitions(keys)
	markPartitions(columns, partitions)

	meta := file.Metadata()
	createdBy := meta.CreatedBy
	if createdBy == "" {
		createdBy = ValueUnknown
	}

	return MetadataResult{
		Format: FormatParquet,
		Schema: columns,
		Properties: map[string]string{
			"format":      "Parquet",
			"created_by":  createdBy,
			"location":    location,
			"num_columns": strconv.Itoa(len(columns)),
		},
		Statistics: Statistics{
			Files:      strconv.Itoa(len(files)),
			Size:       humanize.Bytes(uint64(totalSize)),
			Rows:       ValueUnknown,
			Partitions: len(partitions),
		},
		Partitions: partitions,
		Preview:    preview,
	}, nil
}

// InferPartitions extracts partition column names from hive-style key=value
// path segments. Layouts without key=value encoding yield an empty set. The
// result is sorted so repeated scans of the same listing are identical.
func InferPartitions(keys []string) []string {
	seen := make(map[string]struct{})
	for _, key := range keys {
		for _, segment := range strings.Split(key, "/") {
			idx := strings.Index(segment, "=")
			if idx <= 0 {
				continue
			}
			seen[segment[:idx]] = struct{}{}
		}
	}
	partitions := make([]string, 0, len(seen))
	for name := range seen {
		partitions = append(partitions, name)
	}
	sort.Strings(partitions)
	return partitions
}
