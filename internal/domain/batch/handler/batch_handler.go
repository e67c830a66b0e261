package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/batchdesk/internal/domain/batch/repository"
	batchservice "github.com/FACorreiaa/batchdesk/internal/domain/batch/service"
	importhandler "github.com/FACorreiaa/batchdesk/internal/domain/import/handler"
	importservice "github.com/FACorreiaa/batchdesk/internal/domain/import/service"
	"github.com/FACorreiaa/batchdesk/pkg/backend"
	"github.com/FACorreiaa/batchdesk/pkg/httpx"
)

// CodeImporter turns an uploaded file into store codes
type CodeImporter interface {
	ImportCodes(ctx context.Context, upload importservice.Upload) (*importservice.CodeResult, error)
	MaxFileSize() int64
}

// multipartOverhead is the allowance for boundaries and form fields on top of the file limit
const multipartOverhead = 64 << 10

// BatchHandler serves the batch administration API
type BatchHandler struct {
	batchSvc *batchservice.Service
	importer CodeImporter
	logger   *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batchSvc *batchservice.Service, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batchSvc: batchSvc,
		logger:   logger,
	}
}

// WithImporter enables creating store listings straight from an uploaded code file
func (h *BatchHandler) WithImporter(importer CodeImporter) *BatchHandler {
	h.importer = importer
	return h
}

// Routes mounts the batch endpoints. The caller's bearer token is forwarded to the backend.
func (h *BatchHandler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpx.TokenMiddleware)

		r.Get("/dashboard", h.GetDashboard)
		r.Get("/batches", h.ListBatches)
		r.Post("/batches/store-listing", h.CreateStoreListing)
		if h.importer != nil {
			r.Post("/batches/store-listing/upload", h.CreateStoreListingFromFile)
		}
		r.Get("/batches/{batchID}", h.GetBatch)
		r.Get("/batches/{batchID}/entries", h.ListEntries)
		r.Get("/batches/{batchID}/entries/export.csv", h.ExportEntries)
		r.Put("/batches/{batchID}/entries/{entryID}", h.UpdateEntry)
		r.Delete("/batches/{batchID}/entries/{entryID}", h.DeleteEntry)
	})
}

// GetDashboard returns batch counters and the most recent batches
func (h *BatchHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.batchSvc.Dashboard(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dashboard)
}

// ListBatches supports ?status=, ?type=, ?limit= and ?offset=
func (h *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.BatchFilter{
		Status: repository.BatchStatus(q.Get("status")),
		Type:   repository.RequestType(q.Get("type")),
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: limit: %w", batchservice.ErrInvalidInput, err))
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: offset: %w", batchservice.ErrInvalidInput, err))
		return
	}

	batches, err := h.batchSvc.ListBatches(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// GetBatch returns a single batch
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	batch, err := h.batchSvc.GetBatch(r.Context(), batchID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batch)
}

// CreateStoreListing creates a store_listing batch from item numbers and store codes
func (h *BatchHandler) CreateStoreListing(w http.ResponseWriter, r *http.Request) {
	var req batchservice.StoreListingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: malformed JSON body: %w", batchservice.ErrInvalidInput, err))
		return
	}

	batch, err := h.batchSvc.CreateStoreListingBatch(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, batch)
}

// StoreListingUpload is the response of CreateStoreListingFromFile
type StoreListingUpload struct {
	Batch  *repository.Batch         `json:"batch"`
	Import *importservice.CodeResult `json:"import"`
}

// CreateStoreListingFromFile takes a multipart form with "name", "item_numbers"
// (comma or newline separated) and a "file" of store codes.
func (h *BatchHandler) CreateStoreListingFromFile(w http.ResponseWriter, r *http.Request) {
	maxSize := h.importer.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		h.respondImportError(w, r, fmt.Errorf("%w: invalid upload form: %w", importservice.ErrRead, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondImportError(w, r, fmt.Errorf("%w: no file provided: %w", importservice.ErrRead, err))
		return
	}
	defer file.Close()

	result, err := h.importer.ImportCodes(r.Context(), importservice.Upload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		h.respondImportError(w, r, err)
		return
	}

	batch, err := h.batchSvc.CreateStoreListingBatch(r.Context(), batchservice.StoreListingRequest{
		Name:        r.FormValue("name"),
		ItemNumbers: splitList(r.FormValue("item_numbers")),
		StoreCodes:  result.Codes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, StoreListingUpload{Batch: batch, Import: result})
}

// ListEntries returns the entries of a batch, fuzzy filtered by ?q=
func (h *BatchHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	entries, err := h.batchSvc.ListEntries(r.Context(), batchID, r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ExportEntries downloads the entries of a batch as CSV
func (h *BatchHandler) ExportEntries(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// buffered so a backend failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.batchSvc.ExportEntriesCSV(r.Context(), batchID, &buf); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "batch-"+batchID.String()+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// UpdateEntry replaces an entry; IDs in the path win over the body
func (h *BatchHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var entry repository.Entry
	if err := httpx.DecodeJSON(r, &entry); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: malformed JSON body: %w", batchservice.ErrInvalidInput, err))
		return
	}
	entry.BatchID = batchID
	entry.ID = entryID

	updated, err := h.batchSvc.UpdateEntry(r.Context(), &entry)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

// DeleteEntry removes an entry
func (h *BatchHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.batchSvc.DeleteEntry(r.Context(), batchID, entryID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BatchHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := mapError(err)
	httpx.RespondError(w, r, h.logger, status, resp, err)
}

func (h *BatchHandler) respondImportError(w http.ResponseWriter, r *http.Request, err error) {
	importhandler.RespondError(w, r, h.logger, err)
}

// mapError translates service and backend errors into a status and user message
func mapError(err error) (int, httpx.ErrorResponse) {
	var apiErr *backend.APIError

	switch {
	case errors.Is(err, batchservice.ErrInvalidInput):
		return http.StatusBadRequest, httpx.ErrorResponse{
			Message: err.Error(),
			Action:  "Correct the highlighted values and submit again.",
			Code:    "REQ001",
		}
	case errors.Is(err, batchservice.ErrBatchLocked):
		return http.StatusConflict, httpx.ErrorResponse{
			Message: "This batch can no longer be edited.",
			Action:  "Create a new batch for further changes.",
			Code:    "API005",
		}
	case errors.Is(err, repository.ErrBatchNotFound), errors.Is(err, repository.ErrEntryNotFound), errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, httpx.ErrorResponse{
			Message: "The batch or entry does not exist.",
			Action:  "Refresh the list and try again.",
			Code:    "API004",
		}
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, httpx.ErrorResponse{
			Message: "You are not allowed to access this batch.",
			Action:  "Sign in again.",
			Code:    "API001",
		}
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
		return http.StatusBadRequest, httpx.ErrorResponse{
			Message: "The batch service rejected the request: " + apiErr.Message,
			Code:    "API003",
		}
	default:
		return http.StatusBadGateway, httpx.ErrorResponse{
			Message: "The batch service is unavailable.",
			Action:  "Please try again in a moment.",
			Code:    "API002",
		}
	}
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a valid id", batchservice.ErrInvalidInput, param, raw)
	}
	return id, nil
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ';'
	})
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
