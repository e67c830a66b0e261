package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/FACorreiaa/batchdesk/pkg/backend"
)

// APIClient is the subset of backend.Client the repository needs
type APIClient interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var _ BatchRepository = (*HTTPBatchRepository)(nil)

// HTTPBatchRepository implements BatchRepository over the backend REST API
type HTTPBatchRepository struct {
	client APIClient
}

// NewHTTPBatchRepository creates a new backend-backed batch repository
func NewHTTPBatchRepository(client APIClient) *HTTPBatchRepository {
	return &HTTPBatchRepository{client: client}
}

// ListBatches retrieves batches matching filter, newest first
func (r *HTTPBatchRepository) ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Type != "" {
		query.Set("type", string(filter.Type))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}

	var resp struct {
		Batches []*Batch `json:"batches"`
	}
	if err := r.client.Get(ctx, "/batches", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	if resp.Batches == nil {
		resp.Batches = []*Batch{}
	}
	return resp.Batches, nil
}

// GetBatch retrieves a batch by ID
func (r *HTTPBatchRepository) GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	var batch Batch
	if err := r.client.Get(ctx, batchPath(id), nil, &batch); err != nil {
		return nil, notFound(err, ErrBatchNotFound, "failed to get batch")
	}
	return &batch, nil
}

// CreateBatch submits a new batch with its entries
func (r *HTTPBatchRepository) CreateBatch(ctx context.Context, batch *NewBatch) (*Batch, error) {
	var created Batch
	if err := r.client.Post(ctx, "/batches", batch, &created); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return &created, nil
}

// ListEntries retrieves all entries of a batch
func (r *HTTPBatchRepository) ListEntries(ctx context.Context, batchID uuid.UUID) ([]*Entry, error) {
	var resp struct {
		Entries []*Entry `json:"entries"`
	}
	if err := r.client.Get(ctx, batchPath(batchID)+"/entries", nil, &resp); err != nil {
		return nil, notFound(err, ErrBatchNotFound, "failed to list entries")
	}
	if resp.Entries == nil {
		resp.Entries = []*Entry{}
	}
	return resp.Entries, nil
}

// UpdateEntry replaces an entry and returns the stored version
func (r *HTTPBatchRepository) UpdateEntry(ctx context.Context, entry *Entry) (*Entry, error) {
	var updated Entry
	if err := r.client.Put(ctx, entryPath(entry.BatchID, entry.ID), entry, &updated); err != nil {
		return nil, notFound(err, ErrEntryNotFound, "failed to update entry")
	}
	return &updated, nil
}

// DeleteEntry removes an entry from its batch
func (r *HTTPBatchRepository) DeleteEntry(ctx context.Context, batchID, entryID uuid.UUID) error {
	if err := r.client.Delete(ctx, entryPath(batchID, entryID)); err != nil {
		return notFound(err, ErrEntryNotFound, "failed to delete entry")
	}
	return nil
}

// Stats retrieves dashboard counters
func (r *HTTPBatchRepository) Stats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := r.client.Get(ctx, "/stats", nil, &stats); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[BatchStatus]int{}
	}
	if stats.ByType == nil {
		stats.ByType = map[RequestType]int{}
	}
	return &stats, nil
}

func batchPath(id uuid.UUID) string {
	return "/batches/" + url.PathEscape(id.String())
}

func entryPath(batchID, entryID uuid.UUID) string {
	return batchPath(batchID) + "/entries/" + url.PathEscape(entryID.String())
}

// notFound maps a backend 404 to the repository sentinel, keeping the cause in the chain
func notFound(err, sentinel error, msg string) error {
	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
