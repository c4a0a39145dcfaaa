package miners

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/events"
	"cryptoprofit/internal/httputil"
	"cryptoprofit/internal/notify"
)

type Handler struct {
	svc      *Service
	notifier notify.Notifier
	bus      *events.Bus
	log      *zap.Logger
}

func NewHandler(svc *Service, notifier notify.Notifier, bus *events.Bus, log *zap.Logger) *Handler {
	return &Handler{svc: svc, notifier: notifier, bus: bus, log: log}
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.Catalog(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": catalog})
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request, userID string) {
	positions, err := h.svc.ListPositions(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": positions})
}

type purchaseRequest struct {
	MinerTypeID string `json:"miner_type_id"`
	Amount      string `json:"amount"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request, userID string) {
	var req purchaseRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.MinerTypeID) == "" {
		httputil.WriteError(w, apperr.Validation("miner_type_id is required"))
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteError(w, apperr.Validation("invalid amount"))
		return
	}

	result, err := h.svc.Purchase(r.Context(), userID, strings.TrimSpace(req.MinerTypeID), amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	notify.Dispatch(h.notifier, h.log, notify.Event{
		UserID: userID,
		Kind:   notify.KindMinerPurchase,
		Amount: result.Transaction.Amount,
		Detail: result.Transaction.Description,
	})
	h.bus.Publish(events.Event{Type: events.TypePurchase, UserID: userID, Data: result})
	if result.Referral != nil {
		notify.Dispatch(h.notifier, h.log, notify.Event{
			UserID: result.Referral.ReferrerID,
			Kind:   notify.KindReferralCommission,
			Amount: result.Referral.Commission,
			Detail: "Referral commission",
		})
		h.bus.Publish(events.Event{
			Type:   events.TypeReferralCommission,
			UserID: result.Referral.ReferrerID,
			Data:   result.Referral,
		})
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request, userID, positionID string) {
	var req toggleRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	pos, err := h.svc.Toggle(r.Context(), userID, positionID, req.Active)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pos)
}
