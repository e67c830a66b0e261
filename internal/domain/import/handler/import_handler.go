package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	importservice "github.com/FACorreiaa/batchdesk/internal/domain/import/service"
	"github.com/FACorreiaa/batchdesk/pkg/httpx"
)

// multipartOverhead is the allowance for boundaries and part headers on top of the file limit
const multipartOverhead = 64 << 10

// TemplateHeader is the column A header written to downloadable templates
const TemplateHeader = "STORE"

// ImportHandler serves code file uploads
type ImportHandler struct {
	importSvc *importservice.ImportService
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		logger:    logger,
	}
}

// Routes mounts the import endpoints
func (h *ImportHandler) Routes(r chi.Router) {
	r.Post("/imports/codes", h.ImportCodes)
	r.Get("/imports/codes/template", h.DownloadTemplate)
}

// ImportCodes reads the multipart "file" field and returns the extracted codes
func (h *ImportHandler) ImportCodes(w http.ResponseWriter, r *http.Request) {
	maxSize := h.importSvc.MaxFileSize()
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

	result, err := h.importSvc.ImportCodes(r.Context(), importservice.Upload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		h.respondImportError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

// DownloadTemplate returns an empty workbook (or CSV with ?format=csv) holding only the header row
func (h *ImportHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")

	switch format {
	case "", "xlsx":
		data, err := workbookTemplate()
		if err != nil {
			httpx.RespondError(w, r, h.logger, http.StatusInternalServerError, httpx.ErrorResponse{
				Message: "The template could not be generated.",
				Code:    "FILE005",
			}, err)
			return
		}
		writeAttachment(w, "store-codes.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	case "csv":
		writeAttachment(w, "store-codes.csv", "text/csv; charset=utf-8", []byte(TemplateHeader+"\r\n"))
	default:
		httpx.RespondError(w, r, h.logger, http.StatusBadRequest, httpx.ErrorResponse{
			Message: fmt.Sprintf("Unknown template format %q.", format),
			Action:  "Use format=xlsx or format=csv.",
			Code:    "REQ001",
		}, nil)
	}
}

func (h *ImportHandler) respondImportError(w http.ResponseWriter, r *http.Request, err error) {
	RespondError(w, r, h.logger, err)
}

// RespondError writes the user-facing response for a failed upload.
// Every endpoint that accepts a code file answers through it.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	msg := importservice.MapError(err)
	httpx.RespondError(w, r, logger, Status(err), httpx.ErrorResponse{
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}, err)
}

// Status maps an import failure to its HTTP status. A body cut off by
// http.MaxBytesReader is 413, any other read failure 400.
func Status(err error) int {
	switch {
	case errors.Is(err, importservice.ErrRead):
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, importservice.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importservice.ErrMalformedFile), errors.Is(err, importservice.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func workbookTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", TemplateHeader); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
