// Package service provides business logic for batch administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/batchdesk/internal/domain/batch/repository"
	"github.com/FACorreiaa/batchdesk/internal/domain/import/normalizer"
)

var (
	// ErrInvalidInput wraps every validation failure of caller-supplied data
	ErrInvalidInput = errors.New("invalid input")
	// ErrBatchLocked is returned when entries of an approved, rejected or completed batch are changed
	ErrBatchLocked = errors.New("batch can no longer be edited")
)

const recentBatches = 5

// Dashboard is the landing view: counters plus the most recently created batches
type Dashboard struct {
	Stats  *repository.DashboardStats `json:"stats"`
	Recent []*repository.Batch        `json:"recent"`
	Cached bool                       `json:"cached"`
}

// Service provides batch administration business logic
type Service struct {
	repo     repository.BatchRepository
	rule     normalizer.CodeRule
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.RWMutex
	snapshot *Dashboard
	takenAt  time.Time
}

// NewService creates a new batch service. Dashboard snapshots older than maxAge are
// ignored; maxAge <= 0 disables the snapshot.
func NewService(repo repository.BatchRepository, rule normalizer.CodeRule, maxAge time.Duration, logger *slog.Logger) *Service {
	if rule.MaxLength <= 0 {
		rule = normalizer.DefaultCodeRule()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		rule:   rule,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Dashboard returns the dashboard, from the refreshed snapshot when it is fresh.
// Otherwise it loads live data with the caller's credentials and stores nothing.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	s.mu.RLock()
	snapshot, takenAt := s.snapshot, s.takenAt
	s.mu.RUnlock()

	if snapshot != nil && s.maxAge > 0 && s.now().Sub(takenAt) < s.maxAge {
		cached := *snapshot
		cached.Cached = true
		return &cached, nil
	}

	return s.loadDashboard(ctx)
}

// RefreshDashboard loads the dashboard and stores it as the shared snapshot.
// Only the scheduled refresher, running with the service token, calls it.
func (s *Service) RefreshDashboard(ctx context.Context) (*Dashboard, error) {
	dashboard, err := s.loadDashboard(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = dashboard
	s.takenAt = s.now()
	s.mu.Unlock()

	return dashboard, nil
}

// loadDashboard fetches counters and recent batches concurrently
func (s *Service) loadDashboard(ctx context.Context) (*Dashboard, error) {
	var (
		stats  *repository.DashboardStats
		recent []*repository.Batch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.repo.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.repo.ListBatches(gctx, repository.BatchFilter{Limit: recentBatches})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	return &Dashboard{Stats: stats, Recent: recent}, nil
}

// ListBatches retrieves batches, optionally filtered by status and type
func (s *Service) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]*repository.Batch, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrInvalidInput, filter.Type)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	return s.repo.ListBatches(ctx, filter)
}

// GetBatch retrieves a batch by ID
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*repository.Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListEntries retrieves the entries of a batch. A non-blank query keeps only entries whose
// item number or description fuzzy-matches it, best matches first.
func (s *Service) ListEntries(ctx context.Context, batchID uuid.UUID, query string) ([]*repository.Entry, error) {
	entries, err := s.repo.ListEntries(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return filterEntries(entries, query), nil
}

// UpdateEntry validates and stores a changed entry of an editable batch
func (s *Service) UpdateEntry(ctx context.Context, entry *repository.Entry) (*repository.Entry, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: entry is required", ErrInvalidInput)
	}
	if err := s.editable(ctx, entry.BatchID); err != nil {
		return nil, err
	}
	if err := s.validateEntry(entry); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "batch entry updated",
		slog.String("batch_id", entry.BatchID.String()),
		slog.String("entry_id", entry.ID.String()),
	)
	return updated, nil
}

// DeleteEntry removes an entry from an editable batch
func (s *Service) DeleteEntry(ctx context.Context, batchID, entryID uuid.UUID) error {
	if err := s.editable(ctx, batchID); err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, batchID, entryID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "batch entry deleted",
		slog.String("batch_id", batchID.String()),
		slog.String("entry_id", entryID.String()),
	)
	return nil
}

// StoreListingRequest lists items in the given stores
type StoreListingRequest struct {
	Name        string   `json:"name"`
	ItemNumbers []string `json:"item_numbers"`
	StoreCodes  []string `json:"store_codes"`
}

// CreateStoreListingBatch creates a store_listing batch with one entry per item number.
// Store codes are trimmed, de-duplicated in first-seen order and checked against the code rule.
func (s *Service) CreateStoreListingBatch(ctx context.Context, req StoreListingRequest) (*repository.Batch, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: batch name is required", ErrInvalidInput)
	}

	items := dedupe(req.ItemNumbers)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item number is required", ErrInvalidInput)
	}

	codes, err := s.storeCodes(req.StoreCodes)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: at least one store code is required", ErrInvalidInput)
	}

	entries := make([]*repository.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, &repository.Entry{
			ItemNumber: item,
			StoreCodes: codes,
		})
	}

	batch, err := s.repo.CreateBatch(ctx, &repository.NewBatch{
		Name:    name,
		Type:    repository.RequestTypeStoreListing,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "store listing batch created",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("items", len(items)),
		slog.Int("stores", len(codes)),
	)
	return batch, nil
}

func (s *Service) editable(ctx context.Context, batchID uuid.UUID) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if !batch.Status.Editable() {
		return fmt.Errorf("%w: status is %s", ErrBatchLocked, batch.Status)
	}
	return nil
}

func (s *Service) validateEntry(entry *repository.Entry) error {
	entry.ItemNumber = strings.TrimSpace(entry.ItemNumber)
	if entry.ItemNumber == "" {
		return fmt.Errorf("%w: item number is required", ErrInvalidInput)
	}
	if entry.Price.IsNegative() || entry.Cost.IsNegative() {
		return fmt.Errorf("%w: price and cost must not be negative", ErrInvalidInput)
	}
	if entry.Price != nil && entry.Cost != nil && !entry.Price.SameCurrency(entry.Cost) {
		return fmt.Errorf("%w: price is in %s but cost is in %s", ErrInvalidInput, entry.Price.Currency(), entry.Cost.Currency())
	}

	if len(entry.StoreCodes) > 0 {
		codes, err := s.storeCodes(entry.StoreCodes)
		if err != nil {
			return err
		}
		entry.StoreCodes = codes
	}
	return nil
}

// storeCodes applies the import code rule to codes typed or uploaded by the user
func (s *Service) storeCodes(raw []string) ([]string, error) {
	validation := s.rule.Validate(dedupe(raw))
	if len(validation.Invalid) > 0 {
		return nil, fmt.Errorf("%w: store codes must be 1 to %d characters: %s",
			ErrInvalidInput, s.rule.MaxLength, strings.Join(validation.Invalid, ", "))
	}
	return validation.Valid, nil
}

// dedupe trims values and drops blanks and repeats, keeping first-seen order
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
