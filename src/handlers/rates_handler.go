// backend/src/handlers/rates_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/security/validation"
	"github.com/username/foliotracker/backend/src/services"
	"github.com/username/foliotracker/backend/src/utils"
)

// RatesHandler manages the EUR-based exchange rate table.
type RatesHandler struct {
	ratesService services.RatesService
}

func NewRatesHandler(service services.RatesService) *RatesHandler {
	return &RatesHandler{ratesService: service}
}

func (h *RatesHandler) HandleListRates(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, h.ratesService.List(), http.StatusOK)
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (h *RatesHandler) HandleSetRate(w http.ResponseWriter, r *http.Request) {
	currency := chi.URLParam(r, "currency")

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateRate(req.Rate); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ratesService.SetRate(currency, req.Rate); err != nil {
		h.sendRateError(w, r, err)
		return
	}
	utils.SendJSON(w, h.ratesService.List(), http.StatusOK)
}

type addCurrencyRequest struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
}

func (h *RatesHandler) HandleAddCurrency(w http.ResponseWriter, r *http.Request) {
	var req addCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.Currency, "currency"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateRate(req.Rate); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ratesService.AddCurrency(req.Currency, req.Rate); err != nil {
		h.sendRateError(w, r, err)
		return
	}
	utils.SendJSON(w, h.ratesService.List(), http.StatusCreated)
}

func (h *RatesHandler) HandleRemoveCurrency(w http.ResponseWriter, r *http.Request) {
	currency := chi.URLParam(r, "currency")
	if err := h.ratesService.RemoveCurrency(currency); err != nil {
		h.sendRateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RatesHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	rates, err := h.ratesService.Refresh(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Rates refresh failed", "error", err)
		utils.SendJSONError(w, "Failed to refresh exchange rates", http.StatusBadGateway)
		return
	}
	utils.SendJSON(w, rates, http.StatusOK)
}

func (h *RatesHandler) sendRateError(w http.ResponseWriter, r *http.Request, err error) {
	var inUseErr *services.CurrencyInUseError
	switch {
	case errors.Is(err, models.ErrEURPinned):
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrCurrencyNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidRate):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &inUseErr):
		utils.SendJSONError(w, inUseErr.Error(), http.StatusConflict)
	default:
		logger.FromContext(r.Context()).Error("Rate table operation failed", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
