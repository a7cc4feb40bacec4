// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/processors"
	"github.com/username/foliotracker/backend/src/security/validation"
	"github.com/username/foliotracker/backend/src/services"
	"github.com/username/foliotracker/backend/src/utils"
)

// PortfolioHandler exposes the committed portfolio state: holdings, free
// cash, and instrument mappings.
type PortfolioHandler struct {
	store *services.PortfolioStore
}

func NewPortfolioHandler(store *services.PortfolioStore) *PortfolioHandler {
	return &PortfolioHandler{store: store}
}

type portfolioResponse struct {
	Holdings    []*models.Holding `json:"holdings"`
	FreeCashEUR float64           `json:"free_cash_eur"`
}

func (h *PortfolioHandler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p := h.store.PortfolioView()

	resp := portfolioResponse{
		Holdings:    make([]*models.Holding, 0, len(p.Holdings)),
		FreeCashEUR: p.FreeCashEUR,
	}
	for _, id := range p.SortedIDs() {
		resp.Holdings = append(resp.Holdings, p.Holdings[id])
	}
	utils.SendJSON(w, resp, http.StatusOK)
}

type freeCashRequest struct {
	AmountEUR float64 `json:"amount_eur"`
}

func (h *PortfolioHandler) HandleSetFreeCash(w http.ResponseWriter, r *http.Request) {
	var req freeCashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.AmountEUR < 0 {
		utils.SendJSONError(w, "Free cash cannot be negative", http.StatusBadRequest)
		return
	}

	if err := h.store.SetFreeCash(req.AmountEUR); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update free cash", "error", err)
		utils.SendJSONError(w, "Failed to update free cash", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, freeCashRequest{AmountEUR: req.AmountEUR}, http.StatusOK)
}

type holdingEditRequest struct {
	AssetType     *string  `json:"asset_type,omitempty"`
	Region        *string  `json:"region,omitempty"`
	Currency      *string  `json:"currency,omitempty"`
	TargetPercent *float64 `json:"target_percent,omitempty"`
	ClearTarget   bool     `json:"clear_target,omitempty"`
}

func (h *PortfolioHandler) HandleEditHolding(w http.ResponseWriter, r *http.Request) {
	instrumentID := processors.NormalizeInstrumentID(chi.URLParam(r, "instrumentID"))

	var req holdingEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	edit := services.HoldingEdit{
		Currency:      req.Currency,
		TargetPercent: req.TargetPercent,
		ClearTarget:   req.ClearTarget,
	}
	if req.AssetType != nil {
		assetType, ok := models.ParseAssetType(*req.AssetType)
		if !ok {
			utils.SendJSONError(w, "Unknown asset type", http.StatusBadRequest)
			return
		}
		edit.AssetType = &assetType
	}
	if req.Region != nil {
		region, ok := models.ParseRegion(*req.Region)
		if !ok {
			utils.SendJSONError(w, "Unknown region", http.StatusBadRequest)
			return
		}
		edit.Region = &region
	}
	if req.Currency != nil {
		if err := validation.ValidateCurrencyCode(*req.Currency); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.TargetPercent != nil {
		if err := validation.ValidateTargetPercent(*req.TargetPercent); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.store.EditHolding(instrumentID, edit); err != nil {
		h.sendStoreError(w, r, err)
		return
	}

	p := h.store.PortfolioView()
	utils.SendJSON(w, p.Holdings[instrumentID], http.StatusOK)
}

func (h *PortfolioHandler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	instrumentID := chi.URLParam(r, "instrumentID")
	if err := h.store.DeleteHolding(instrumentID); err != nil {
		h.sendStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortfolioHandler) HandleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings := h.store.MappingsView()
	out := make([]*models.InstrumentMapping, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, m)
	}
	// Deterministic order for clients.
	sortMappings(out)
	utils.SendJSON(w, out, http.StatusOK)
}

type mappingRequest struct {
	Currency      string   `json:"currency"`
	AssetType     string   `json:"asset_type"`
	Region        string   `json:"region"`
	TargetPercent *float64 `json:"target_percent,omitempty"`
}

func (h *PortfolioHandler) HandleSetMapping(w http.ResponseWriter, r *http.Request) {
	instrumentID := processors.NormalizeInstrumentID(chi.URLParam(r, "instrumentID"))
	if err := validation.ValidateInstrumentID(instrumentID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.TargetPercent != nil {
		if err := validation.ValidateTargetPercent(*req.TargetPercent); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	assetType, _ := models.ParseAssetType(req.AssetType)
	region, _ := models.ParseRegion(req.Region)
	mapping := &models.InstrumentMapping{
		InstrumentID:  instrumentID,
		Currency:      req.Currency,
		AssetType:     assetType,
		Region:        region,
		TargetPercent: req.TargetPercent,
	}

	if err := h.store.SetMapping(mapping); err != nil {
		h.sendStoreError(w, r, err)
		return
	}
	utils.SendJSON(w, mapping, http.StatusOK)
}

func (h *PortfolioHandler) HandleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	instrumentID := chi.URLParam(r, "instrumentID")
	if err := h.store.DeleteMapping(instrumentID); err != nil {
		h.sendStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortfolioHandler) sendStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var currencyErr *services.UnknownCurrencyError
	switch {
	case errors.Is(err, services.ErrHoldingNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &currencyErr):
		utils.SendJSONError(w, currencyErr.Error(), http.StatusConflict)
	default:
		logger.FromContext(r.Context()).Error("Portfolio operation failed", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func sortMappings(mappings []*models.InstrumentMapping) {
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].InstrumentID < mappings[j].InstrumentID
	})
}
