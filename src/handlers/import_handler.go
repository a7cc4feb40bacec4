// backend/src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/foliotracker/backend/src/config"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/processors"
	"github.com/username/foliotracker/backend/src/security/validation"
	"github.com/username/foliotracker/backend/src/services"
	"github.com/username/foliotracker/backend/src/utils"
)

// ImportHandler exposes the import pipeline over HTTP: upload a broker
// export, review the extracted draft records, then confirm or cancel.
type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

func (h *ImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	source := strings.ToLower(r.FormValue("source"))
	if err := validation.ValidateSource(source); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		ctxLogger.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	if err := validation.ValidateFileContent(file, source); err != nil {
		ctxLogger.Warn("File content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctxLogger.Info("Processing import upload", "source", source, "filename", fileHeader.Filename)

	result, err := h.importService.StartImport(r.Context(), source, file)
	if err != nil {
		var schemaErr *processors.SchemaMappingError
		switch {
		case errors.As(err, &schemaErr):
			utils.SendJSONError(w, schemaErr.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, services.ErrExtractionFailed):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			ctxLogger.Error("Import failed", "source", source, "error", err)
			utils.SendJSONError(w, "Import failed", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, result, http.StatusCreated)
}

type sessionResponse struct {
	SessionID    string               `json:"session_id"`
	Records      []models.DraftRecord `json:"records"`
	BlockingRows []int                `json:"blocking_rows"`
}

func (h *ImportHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	utils.SendJSON(w, sessionResponse{
		SessionID:    session.ID,
		Records:      session.RecordsView(),
		BlockingRows: session.BlockingRows(),
	}, http.StatusOK)
}

type editFieldRequest struct {
	Field string `json:"field"`
	Raw   string `json:"raw"`
}

func (h *ImportHandler) HandleEditField(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	recordIdx, ok := h.recordIndex(w, r)
	if !ok {
		return
	}

	var req editFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	field, ok := models.ParseCanonicalField(req.Field)
	if !ok {
		utils.SendJSONError(w, fmt.Sprintf("Unknown field %q", req.Field), http.StatusBadRequest)
		return
	}

	record, err := h.importService.EditField(sessionID, recordIdx, field, req.Raw)
	if err != nil {
		h.sendSessionError(w, r, err)
		return
	}
	utils.SendJSON(w, record, http.StatusOK)
}

func (h *ImportHandler) HandleRemoveRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	recordIdx, ok := h.recordIndex(w, r)
	if !ok {
		return
	}

	if err := h.importService.RemoveRecord(sessionID, recordIdx); err != nil {
		h.sendSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.importService.Confirm(sessionID)
	if err != nil {
		var blockingErr *services.BlockingFieldsError
		var currencyErr *services.UnknownCurrencyError
		switch {
		case errors.As(err, &blockingErr):
			utils.SendJSONError(w, blockingErr.Error(), http.StatusConflict)
		case errors.As(err, &currencyErr):
			utils.SendJSONError(w, currencyErr.Error(), http.StatusConflict)
		default:
			h.sendSessionError(w, r, err)
		}
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *ImportHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.importService.Cancel(sessionID); err != nil {
		h.sendSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) lookupSession(w http.ResponseWriter, r *http.Request) (*services.ReviewSession, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.importService.Session(sessionID)
	if err != nil {
		h.sendSessionError(w, r, err)
		return nil, false
	}
	return session, true
}

func (h *ImportHandler) recordIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "recordIdx"))
	if err != nil || idx < 0 {
		utils.SendJSONError(w, "Invalid record index", http.StatusBadRequest)
		return 0, false
	}
	return idx, true
}

func (h *ImportHandler) sendSessionError(w http.ResponseWriter, r *http.Request, err error) {
	ctxLogger := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrSessionClosed):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrRecordNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	default:
		ctxLogger.Error("Session operation failed", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
