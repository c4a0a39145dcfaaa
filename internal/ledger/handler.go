package ledger

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/events"
	"cryptoprofit/internal/gateway"
	"cryptoprofit/internal/httputil"
	"cryptoprofit/internal/notify"
	"cryptoprofit/internal/types"
)

const maxWebhookBytes = 1 << 20

type Handler struct {
	svc      *Service
	gw       *gateway.Client
	notifier notify.Notifier
	bus      *events.Bus
	mode     string
	log      *zap.Logger
}

func NewHandler(svc *Service, gw *gateway.Client, notifier notify.Notifier, bus *events.Bus, mode string, log *zap.Logger) *Handler {
	return &Handler{svc: svc, gw: gw, notifier: notifier, bus: bus, mode: mode, log: log}
}

type balanceResponse struct {
	Balance          string `json:"balance"`
	TotalProfit      string `json:"total_profit"`
	ReferralEarnings string `json:"referral_earnings"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, userID string) {
	snapshot, err := h.svc.BalanceOf(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		Balance:          snapshot.Balance.StringFixed(2),
		TotalProfit:      snapshot.TotalProfit.StringFixed(2),
		ReferralEarnings: snapshot.ReferralEarnings.StringFixed(2),
	})
}

type historyResponse struct {
	Items []Transaction `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	kind := types.TransactionKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	page, limit := parsePagination(r)
	items, total, err := h.svc.History(r.Context(), userID, kind, Page{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if items == nil {
		items = []Transaction{}
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{Items: items, Total: total, Page: page, Limit: limit})
}

// DepositAddress returns the user's gateway deposit address, provisioning
// one on first use.
func (h *Handler) DepositAddress(w http.ResponseWriter, r *http.Request, userID string) {
	var address string
	err := h.svc.pool.QueryRow(r.Context(), `
		SELECT COALESCE(deposit_address, '')
		FROM users
		WHERE id = $1
	`, userID).Scan(&address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, apperr.NotFound("user not found"))
			return
		}
		httputil.WriteError(w, apperr.Store(err))
		return
	}
	if address == "" {
		address, err = h.gw.CallbackAddress(r.Context(), userID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if _, err := h.svc.pool.Exec(r.Context(), `
			UPDATE users
			SET deposit_address = $2
			WHERE id = $1
			  AND deposit_address IS NULL
		`, userID, address); err != nil {
			httputil.WriteError(w, apperr.Store(err))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"deposit_address": address})
}

// Webhook is the gateway's IPN endpoint. The signature covers the exact raw
// body bytes, so those are read before any parsing. Verification fails
// closed in production; development mode accepts unsigned callbacks so the
// test-deposit flow works.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		httputil.WriteError(w, apperr.Validation("missing user id"))
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, apperr.Validation("unreadable request body"))
		return
	}
	if h.mode == "production" {
		if err := h.gw.VerifyIPN(raw, r.Header.Get("Hmac")); err != nil {
			h.log.Warn("rejected ipn with bad signature", zap.String("user_id", userID))
			httputil.WriteError(w, err)
			return
		}
	}
	ipn, err := gateway.ParseIPN(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.applyDeposit(w, r, userID, ipn)
}

type testDepositRequest struct {
	TxnID   string `json:"txn_id"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
}

// TestDeposit simulates a completed gateway notification. Development only.
func (h *Handler) TestDeposit(w http.ResponseWriter, r *http.Request, userID string) {
	if h.mode == "production" {
		httputil.WriteError(w, apperr.Unauthorized("not available in production"))
		return
	}
	var req testDepositRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.GreaterThan(decimal.Zero) {
		httputil.WriteError(w, apperr.Validation("invalid amount"))
		return
	}
	if strings.TrimSpace(req.TxnID) == "" {
		httputil.WriteError(w, apperr.Validation("txn_id is required"))
		return
	}
	h.applyDeposit(w, r, userID, gateway.IPN{
		TxnID:   strings.TrimSpace(req.TxnID),
		Amount:  amount,
		Status:  100,
		Address: strings.TrimSpace(req.Address),
	})
}

func (h *Handler) applyDeposit(w http.ResponseWriter, r *http.Request, userID string, ipn gateway.IPN) {
	status := gateway.MapStatus(ipn.Status)
	result, err := h.svc.ProcessDeposit(r.Context(), userID, ipn.TxnID, ipn.Amount, ipn.Address, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if result.Credited {
		notify.Dispatch(h.notifier, h.log, notify.Event{
			UserID: userID,
			Kind:   notify.KindDepositConfirmed,
			Amount: result.Transaction.Amount,
			Detail: "Deposit confirmed",
		})
		h.bus.Publish(events.Event{Type: events.TypeDepositConfirmed, UserID: userID, Data: result.Transaction})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"created":  result.Created,
		"credited": result.Credited,
	})
}

type withdrawRequest struct {
	Amount  string `json:"amount"`
	Address string `json:"address"`
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request, userID string) {
	var req withdrawRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteError(w, apperr.Validation("invalid amount"))
		return
	}
	record, err := h.svc.RequestWithdrawal(r.Context(), userID, amount, strings.TrimSpace(req.Address))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	notify.Dispatch(h.notifier, h.log, notify.Event{
		UserID: userID,
		Kind:   notify.KindWithdrawalRequest,
		Amount: record.Amount,
		Detail: "Withdrawal requested to " + record.Address,
	})
	h.bus.Publish(events.Event{Type: events.TypeWithdrawalRequest, UserID: userID, Data: record})
	httputil.WriteJSON(w, http.StatusCreated, record)
}

type resolveWithdrawalRequest struct {
	Approve bool `json:"approve"`
}

// ResolveWithdrawal is an operator endpoint behind the internal token.
func (h *Handler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request, txID string) {
	var req resolveWithdrawalRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	record, err := h.svc.ResolveWithdrawal(r.Context(), txID, req.Approve)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// Reconcile is an operator endpoint behind the internal token; it audits the
// stored balance against the completed ledger for one user.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request, userID string) {
	report, err := h.svc.ReconcileUser(r.Context(), userID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeInvariant) {
			h.log.Error("ledger invariant violation",
				zap.String("user_id", userID),
				zap.String("balance", report.Balance.StringFixed(2)),
				zap.String("ledger_net", report.LedgerNet.StringFixed(2)),
			)
			httputil.WriteJSON(w, http.StatusConflict, report)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 10
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	return page, limit
}
