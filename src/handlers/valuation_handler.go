// backend/src/handlers/valuation_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/services"
	"github.com/username/foliotracker/backend/src/utils"
)

// ValuationHandler serves the valuation and allocation report.
type ValuationHandler struct {
	valuationService services.ValuationService
}

func NewValuationHandler(service services.ValuationService) *ValuationHandler {
	return &ValuationHandler{valuationService: service}
}

func (h *ValuationHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	report, err := h.valuationService.Report()
	if err != nil {
		ctxLogger.Error("Failed to build valuation report", "error", err)
		utils.SendJSONError(w, "Failed to build valuation report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, clientETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(clientETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		ctxLogger.Warn("Proceeding without ETag check", "error", etagErr)
	}

	utils.SendJSON(w, report, http.StatusOK)
}

func (h *ValuationHandler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	report, err := h.valuationService.Report()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build valuation report", "error", err)
		utils.SendJSONError(w, "Failed to build valuation report", http.StatusInternalServerError)
		return
	}

	var rows []models.BreakdownRow
	by := strings.ToLower(r.URL.Query().Get("by"))
	switch by {
	case "", "type":
		rows = report.ByType
	case "region":
		rows = report.ByRegion
	case "type_region":
		rows = report.ByTypeRegion
	default:
		utils.SendJSONError(w, fmt.Sprintf("Unknown breakdown dimension %q (type, region, type_region)", by), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, rows, http.StatusOK)
}

func (h *ValuationHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	report, err := h.valuationService.Report()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build valuation report", "error", err)
		utils.SendJSONError(w, "Failed to build valuation report", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, report.Summary, http.StatusOK)
}
