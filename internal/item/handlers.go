package item

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/declutter/internal/scanning"
	"github.com/zombor/declutter/internal/upload"
)

const maxScanBodySize = 1 << 20

type scanResponse struct {
	Item               *Item `json:"item"`
	RateLimitRemaining int   `json:"rateLimitRemaining"`
}

type errorResponse struct {
	Error   string                         `json:"error"`
	Code    Code                           `json:"code,omitempty"`
	Fields  map[string]string              `json:"fields,omitempty"`
	Result  *scanning.IdentificationResult `json:"result,omitempty"`
	Details string                         `json:"details,omitempty"`
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleScan identifies an item from its photo
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.serveScan(w, r, s.service.Scan)
}

// handleScanManual scans an item the caller has named
func (s *Server) handleScanManual(w http.ResponseWriter, r *http.Request) {
	s.serveScan(w, r, s.service.ScanManual)
}

type scanFunc func(ctx context.Context, userID string, in ScanInput) (*Item, error)

func (s *Server) serveScan(w http.ResponseWriter, r *http.Request, scan scanFunc) {
	var in ScanInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBodySize)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid request body",
			Code:  CodeInvalidInput,
		})
		return
	}

	item, err := scan(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		s.writeScanError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Item:               item,
		RateLimitRemaining: s.opts.DailyScanLimit,
	})
}

// writeScanError maps a scan failure onto the caller-visible response
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		switch scanErr.Code {
		case CodeInvalidInput:
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:  "Invalid scan request",
				Code:   CodeInvalidInput,
				Fields: scanErr.Fields,
			})
			return
		case CodeLowConfidence:
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:  "We couldn't confidently identify this item. Please tell us what it is.",
				Code:   CodeLowConfidence,
				Result: scanErr.Result,
			})
			return
		}
	}

	slog.Error("Scan error", "error", err)
	resp := errorResponse{Error: "Scan failed"}
	if !s.opts.Production {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// handleListItems returns the caller's items
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListItems(UserFromContext(r.Context()))
	if err != nil {
		slog.Error("Error listing items", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleGetItem returns a single item
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.GetItem(UserFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		if IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "Item not found"})
			return
		}
		slog.Error("Error getting item", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem deletes an item and its photo
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(UserFromContext(r.Context()), r.PathValue("id")); err != nil {
		if IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "Item not found"})
			return
		}
		slog.Error("Error deleting item", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error deleting item"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUploadGrant issues a signed upload URL for a new photo
func (s *Server) handleUploadGrant(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	grant, err := s.uploads.Grant(UserFromContext(r.Context()), query.Get("filename"), query.Get("contentType"))
	if err != nil {
		if errors.Is(err, upload.ErrMissingParameters) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing filename or contentType"})
			return
		}
		slog.Error("Error issuing upload grant", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create upload URL"})
		return
	}

	writeJSON(w, http.StatusOK, grant)
}

// handlePutUpload stores a photo sent to a signed upload URL
func (s *Server) handlePutUpload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	creds := upload.Credentials{
		ContentType: query.Get("contentType"),
		Expires:     query.Get("expires"),
		Signature:   query.Get("signature"),
	}
	if r.Header.Get("Content-Type") != creds.ContentType {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Content-Type does not match upload URL"})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Photo is too large"})
			return
		}
		slog.Error("Error reading upload", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Error reading upload"})
		return
	}

	key := r.PathValue("key")
	if err := s.uploads.Store(key, creds, data); err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidKey):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid upload key"})
		case errors.Is(err, upload.ErrExpired), errors.Is(err, upload.ErrBadSignature):
			slog.Warn("Rejected upload", "key", key, "error", err)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "Upload URL is invalid or expired"})
		default:
			slog.Error("Error storing upload", "key", key, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to upload image"})
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleGetImage serves an uploaded photo
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.uploads.Open(r.PathValue("key"))
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}
