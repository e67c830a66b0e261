// Package repository provides access to batch requests held by the backend.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/batchdesk/pkg/money"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrEntryNotFound = errors.New("entry not found")
)

// RequestType is the kind of item change a batch carries
type RequestType string

const (
	RequestTypeItemStatus   RequestType = "item_status"
	RequestTypePriceCost    RequestType = "price_cost"
	RequestTypePackaging    RequestType = "packaging"
	RequestTypeDescription  RequestType = "description"
	RequestTypeStoreListing RequestType = "store_listing"
	RequestTypeBarcode      RequestType = "barcode"
	RequestTypeImage        RequestType = "image"
	RequestTypeNewItem      RequestType = "new_item"
)

// RequestTypes lists every request type in display order
func RequestTypes() []RequestType {
	return []RequestType{
		RequestTypeItemStatus,
		RequestTypePriceCost,
		RequestTypePackaging,
		RequestTypeDescription,
		RequestTypeStoreListing,
		RequestTypeBarcode,
		RequestTypeImage,
		RequestTypeNewItem,
	}
}

// Valid reports whether t is a known request type
func (t RequestType) Valid() bool {
	for _, known := range RequestTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// BatchStatus represents where a batch is in its review workflow
type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "draft"
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusApproved  BatchStatus = "approved"
	BatchStatusRejected  BatchStatus = "rejected"
	BatchStatusCompleted BatchStatus = "completed"
)

// Valid reports whether s is a known status
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusDraft, BatchStatusPending, BatchStatusApproved, BatchStatusRejected, BatchStatusCompleted:
		return true
	}
	return false
}

// Editable reports whether entries of a batch in this status may still change
func (s BatchStatus) Editable() bool {
	return s == BatchStatusDraft || s == BatchStatusPending
}

// Batch is a named group of item change requests of one type
type Batch struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Type       RequestType `json:"type"`
	Status     BatchStatus `json:"status"`
	CreatedBy  string      `json:"created_by"`
	EntryCount int         `json:"entry_count"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Entry is one item change inside a batch.
// Which fields are meaningful depends on the batch's RequestType.
type Entry struct {
	ID          uuid.UUID         `json:"id"`
	BatchID     uuid.UUID         `json:"batch_id"`
	ItemNumber  string            `json:"item_number"`
	Description string            `json:"description,omitempty"`
	StoreCodes  []string          `json:"store_codes,omitempty"`
	Price       *money.Money      `json:"price,omitempty"`
	Cost        *money.Money      `json:"cost,omitempty"`
	Barcode     string            `json:"barcode,omitempty"`
	Status      string            `json:"status,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BatchFilter narrows ListBatches; zero values mean no filter
type BatchFilter struct {
	Status BatchStatus
	Type   RequestType
	Limit  int
	Offset int
}

// NewBatch is the payload for creating a batch with its entries
type NewBatch struct {
	Name    string      `json:"name"`
	Type    RequestType `json:"type"`
	Entries []*Entry    `json:"entries"`
}

// DashboardStats summarises all batches visible to the caller
type DashboardStats struct {
	TotalBatches   int                 `json:"total_batches"`
	ByStatus       map[BatchStatus]int `json:"by_status"`
	ByType         map[RequestType]int `json:"by_type"`
	PendingEntries int                 `json:"pending_entries"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// BatchRepository defines the operations on batches and their entries
type BatchRepository interface {
	ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	CreateBatch(ctx context.Context, batch *NewBatch) (*Batch, error)

	ListEntries(ctx context.Context, batchID uuid.UUID) ([]*Entry, error)
	UpdateEntry(ctx context.Context, entry *Entry) (*Entry, error)
	DeleteEntry(ctx context.Context, batchID, entryID uuid.UUID) error

	Stats(ctx context.Context) (*DashboardStats, error)
}
