package metastore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/metalens/metalens/internal/observability"
	"github.com/metalens/metalens/internal/storage"
	"github.com/metalens/metalens/internal/storage/local"
	s3store "github.com/metalens/metalens/internal/storage/s3"
)

// Credentials are object-store credentials scoped to a single request; they
// are never retained across calls.
type Credentials struct {
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	SessionToken string `json:"session_token,omitempty"`
}

// Request names a table location. Format is optional; when empty, it is
// detected from the location's naming conventions.
type Request struct {
	Location    string       `json:"location"`
	Local       bool         `json:"local"`
	Format      Format       `json:"format,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

type PartitionData struct {
	PartitionColumns []string `json:"partition_columns"`
	PartitionCount   int      `json:"partition_count"`
	TableType        string   `json:"table_type,omitempty"`
}

// ObjectStoreDefaults configures the remote accessor when a request carries
// no credentials of its own.
type ObjectStoreDefaults struct {
	Endpoint        string
	Region          string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Service is the entry point of the extraction layer. It is stateless: every
// call builds a fresh accessor, runs one analyzer and returns the result.
type Service struct {
	Logger      *slog.Logger
	ObjectStore ObjectStoreDefaults
}

func (s *Service) Analyze(ctx context.Context, req Request) (MetadataResult, error) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return MetadataResult{}, fmt.Errorf("location is required")
	}

	format := req.Format
	if format == "" {
		format = DetectFormat(location)
	}
	analyzer, err := analyzerFor(format)
	if err != nil {
		return MetadataResult{}, err
	}
	accessor, target, err := s.accessorFor(req, location)
	if err != nil {
		return MetadataResult{}, err
	}

	start := time.Now()
	result, err := analyzer.Analyze(ctx, accessor, target)
	observability.ObserveAnalyze(string(format), err, time.Since(start))
	if err != nil {
		if s.Logger != nil {
			observability.WithTrace(ctx, s.Logger).ErrorContext(ctx, "table analysis failed",
				slog.String("format", string(format)),
				slog.String("location", location),
				slog.Any("error", err),
			)
		}
		return MetadataResult{}, err
	}

	if s.Logger != nil {
		observability.WithTrace(ctx, s.Logger).InfoContext(ctx, "table analyzed",
			slog.String("format", string(format)),
			slog.String("location", location),
			slog.Int("columns", len(result.Schema)),
			slog.Int("partitions", len(result.Partitions)),
			slog.Int("versions", len(result.Versions)),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return result, nil
}

// Versions is a thin projection over Analyze.
func (s *Service) Versions(ctx context.Context, req Request) ([]VersionInfo, error) {
	result, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.Versions, nil
}

// PartitionData is a thin projection over Analyze.
func (s *Service) PartitionData(ctx context.Context, req Request) (PartitionData, error) {
	result, err := s.Analyze(ctx, req)
	if err != nil {
		return PartitionData{}, err
	}
	data := PartitionData{
		PartitionColumns: result.Partitions,
		PartitionCount:   len(result.Partitions),
	}
	if result.Format == FormatHudi {
		data.TableType = result.Properties["table_type"]
	}
	return data, nil
}

func analyzerFor(format Format) (TableAnalyzer, error) {
	switch format {
	case FormatParquet:
		return &ParquetAnalyzer{}, nil
	case FormatDelta:
		return &DeltaAnalyzer{}, nil
	case FormatIceberg:
		return &IcebergAnalyzer{}, nil
	case FormatHudi:
		return &HudiAnalyzer{}, nil
	default:
		return nil, fmt.Errorf("unsupported table format %q", format)
	}
}

// accessorFor builds the storage view for one request. Remote locations must
// be s3:// URIs; the accessor is scoped to the URI's bucket and the returned
// target is the key prefix within it.
func (s *Service) accessorFor(req Request, location string) (storage.Accessor, string, error) {
	if req.Local {
		return local.New(), location, nil
	}

	parsed, err := url.Parse(location)
	if err != nil || parsed.Scheme != "s3" || parsed.Host == "" {
		return nil, "", fmt.Errorf("remote location must be an s3://bucket/key URI, got %q", location)
	}

	cfg := s3store.Config{
		Endpoint:        s.ObjectStore.Endpoint,
		Region:          s.ObjectStore.Region,
		Bucket:          parsed.Host,
		AccessKeyID:     s.ObjectStore.AccessKeyID,
		SecretAccessKey: s.ObjectStore.SecretAccessKey,
		SessionToken:    s.ObjectStore.SessionToken,
		UseSSL:          s.ObjectStore.UseSSL,
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "s3.amazonaws.com"
		cfg.UseSSL = true
	}
	if creds := req.Credentials; creds != nil {
		cfg.AccessKeyID = creds.AccessKey
		cfg.SecretAccessKey = creds.SecretKey
		cfg.SessionToken = creds.SessionToken
	}

	store, err := s3store.New(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return store, strings.TrimPrefix(parsed.Path, "/"), nil
}
