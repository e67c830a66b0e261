package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	importservice "github.com/FACorreiaa/batchdesk/internal/domain/import/service"
	"github.com/FACorreiaa/batchdesk/pkg/httpx"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := importservice.NewImportService(importservice.Config{MaxFileSize: 1 << 20}, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", NewImportHandler(svc, logger).Routes)
	return r
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/codes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func workbook(t *testing.T, rows ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, v := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportCodes_Success(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name      string
		filename  string
		content   []byte
		wantCodes []string
		wantBad   []string
	}{
		{
			name:      "csv",
			filename:  "stores.csv",
			content:   []byte("STORE,NAME\n0001,North\n  0002 ,South\n\nSTORE-CODE-TOO-LONG,West\n"),
			wantCodes: []string{"0001", "0002"},
			wantBad:   []string{"STORE-CODE-TOO-LONG"},
		},
		{
			name:      "tab separated txt",
			filename:  "STORES.TXT",
			content:   []byte("STORE\tNAME\r\nA1\tOne\r\nB2\tTwo\r\n"),
			wantCodes: []string{"A1", "B2"},
			wantBad:   []string{},
		},
		{
			name:      "xlsx",
			filename:  "stores.xlsx",
			content:   workbook(t, "STORE", "1001", "", "1002"),
			wantCodes: []string{"1001", "1002"},
			wantBad:   []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartUpload(t, "file", tc.filename, tc.content))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var result importservice.CodeResult
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
			assert.Equal(t, tc.wantCodes, result.Codes)
			assert.ElementsMatch(t, tc.wantBad, result.Invalid)
			assert.Equal(t, tc.filename, result.Filename)
			assert.NotEmpty(t, result.ImportID)
		})
	}
}

func TestImportCodes_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "unsupported extension",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "stores.pdf", []byte("%PDF-1.7"))
			},
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "FILE002",
		},
		{
			name: "workbook with header only",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "stores.xlsx", workbook(t, "STORE"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "FILE003",
		},
		{
			name: "csv without usable codes",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "stores.csv", []byte("STORE\nTHIS-IS-TOO-LONG\n   \n"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "FILE004",
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "document", "stores.csv", []byte("STORE\n0001\n"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE001",
		},
		{
			name: "body over the size limit",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "file", "stores.csv", bytes.Repeat([]byte("0001\n"), 2<<20/5))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/codes", bytes.NewReader([]byte("STORE\n0001")))
				req.Header.Set("Content-Type", "text/csv")
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE001",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tc.req(t))

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			var body httpx.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestDownloadTemplate(t *testing.T) {
	router := newTestRouter(t)

	t.Run("xlsx by default", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/imports/codes/template", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "store-codes.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows(f.GetSheetName(0))
		require.NoError(t, err)
		assert.Equal(t, [][]string{{TemplateHeader}}, rows)
	})

	t.Run("csv", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/imports/codes/template?format=csv", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "STORE\r\n", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/imports/codes/template?format=pdf", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body httpx.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "REQ001", body.Code)
	})
}
