// Package service provides the import orchestration logic.
//
// An import is two phases: ReadUpload acquires the bytes (the only blocking step),
// then ParseCodes runs the pure transforms: classify, build grid, extract, validate.
// ImportCodes chains both and classifies first so unsupported files are rejected
// without reading their content.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/batchdesk/internal/domain/import/normalizer"
	"github.com/FACorreiaa/batchdesk/internal/domain/import/parser"
	"github.com/FACorreiaa/batchdesk/internal/domain/import/sniffer"
	"github.com/FACorreiaa/batchdesk/pkg/metrics"
)

// DefaultMaxFileSize bounds a single upload (10 MiB)
const DefaultMaxFileSize int64 = 10 << 20

// Upload is a user-selected file: its name drives format detection, Body is read once
type Upload struct {
	Filename string
	Body     io.Reader
}

// CodeResult is the success payload of an import
type CodeResult struct {
	ImportID uuid.UUID      `json:"import_id"`
	Filename string         `json:"filename"`
	Format   sniffer.Format `json:"format"`
	Rows     int            `json:"rows"`
	Codes    []string       `json:"codes"`
	Invalid  []string       `json:"invalid"`
}

// Config tunes the import pipeline
type Config struct {
	MaxFileSize int64
	Rule        normalizer.CodeRule
}

// ImportService orchestrates reading, parsing and validating uploaded code files.
// It holds no per-import state, so one instance serves concurrent imports.
type ImportService struct {
	cfg     Config
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(cfg Config, logger *slog.Logger) *ImportService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Rule.MaxLength <= 0 {
		cfg.Rule = normalizer.DefaultCodeRule()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/FACorreiaa/batchdesk/internal/domain/import/service"),
		logger: logger,
	}
}

// WithMetrics adds Prometheus instrumentation to the import service
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// CodeRule returns the validation rule codes are checked against
func (s *ImportService) CodeRule() normalizer.CodeRule {
	return s.cfg.Rule
}

// MaxFileSize returns the upload size limit in bytes
func (s *ImportService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// ImportCodes runs the whole pipeline for one upload.
func (s *ImportService) ImportCodes(ctx context.Context, upload Upload) (*CodeResult, error) {
	start := time.Now()
	format := sniffer.Classify(upload.Filename)

	ctx, span := s.tracer.Start(ctx, "import.codes", trace.WithAttributes(
		attribute.String("import.filename", upload.Filename),
		attribute.String("import.format", string(format)),
	))
	defer span.End()

	result, err := s.importCodes(ctx, format, upload)
	s.finish(ctx, span, upload.Filename, format, start, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseCodes runs the synchronous phase over bytes that were already read.
func (s *ImportService) ParseCodes(ctx context.Context, filename string, data []byte) (*CodeResult, error) {
	start := time.Now()
	format := sniffer.Classify(filename)

	ctx, span := s.tracer.Start(ctx, "import.parse", trace.WithAttributes(
		attribute.String("import.filename", filename),
		attribute.String("import.format", string(format)),
	))
	defer span.End()

	result, err := s.parseCodes(filename, format, data)
	s.finish(ctx, span, filename, format, start, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReadUpload reads the whole upload into memory.
// Any read fault, a cancelled context, or exceeding MaxFileSize yields ErrRead.
func (s *ImportService) ReadUpload(ctx context.Context, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no file content", ErrRead)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	data, err := io.ReadAll(io.LimitReader(&contextReader{ctx: ctx, r: r}, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: file exceeds the %d byte limit", ErrRead, s.cfg.MaxFileSize)
	}
	return data, nil
}

func (s *ImportService) importCodes(ctx context.Context, format sniffer.Format, upload Upload) (*CodeResult, error) {
	if format == sniffer.FormatUnsupported {
		return nil, unsupported(upload.Filename)
	}

	data, err := s.ReadUpload(ctx, upload.Body)
	if err != nil {
		return nil, err
	}
	return s.parseCodes(upload.Filename, format, data)
}

func (s *ImportService) parseCodes(filename string, format sniffer.Format, data []byte) (*CodeResult, error) {
	if format == sniffer.FormatUnsupported {
		return nil, unsupported(filename)
	}

	source, err := parser.NewSource(format, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	grid, err := source.Grid()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}

	validation := s.cfg.Rule.Validate(normalizer.ExtractCodes(grid))
	if len(validation.Valid) == 0 {
		return nil, fmt.Errorf("%w: %d data rows, %d codes longer than %d characters",
			ErrEmptyResult, grid.DataRows(), len(validation.Invalid), s.cfg.Rule.MaxLength)
	}

	return &CodeResult{
		ImportID: uuid.New(),
		Filename: filename,
		Format:   format,
		Rows:     grid.DataRows(),
		Codes:    validation.Valid,
		Invalid:  validation.Invalid,
	}, nil
}

func (s *ImportService) finish(ctx context.Context, span trace.Span, filename string, format sniffer.Format, start time.Time, result *CodeResult, err error) {
	elapsed := time.Since(start)
	label := outcome(err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, label)
		s.metrics.ObserveImport(string(format), label, elapsed, 0, 0)
		s.logger.WarnContext(ctx, "code import failed",
			slog.String("filename", filename),
			slog.String("format", string(format)),
			slog.String("outcome", label),
			slog.Any("error", err),
		)
		return
	}

	span.SetAttributes(
		attribute.Int("import.codes.valid", len(result.Codes)),
		attribute.Int("import.codes.invalid", len(result.Invalid)),
	)
	s.metrics.ObserveImport(string(format), label, elapsed, len(result.Codes), len(result.Invalid))
	s.logger.InfoContext(ctx, "codes imported",
		slog.String("import_id", result.ImportID.String()),
		slog.String("filename", filename),
		slog.String("format", string(format)),
		slog.Int("rows", result.Rows),
		slog.Int("valid", len(result.Codes)),
		slog.Int("invalid", len(result.Invalid)),
		slog.Duration("elapsed", elapsed),
	)
}

func unsupported(filename string) error {
	return fmt.Errorf("%w: %q is not a .csv, .txt, .xlsx or .xls file", ErrUnsupportedFormat, filename)
}

// contextReader stops reading once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
