package http

import (
	"encoding/json"
	"net/http"

	"pillpath-finance/internal/application/query"
	"pillpath-finance/internal/application/store"
	"pillpath-finance/internal/domain/ledger"
	"pillpath-finance/internal/infrastructure/backend"
	"pillpath-finance/pkg/errors"
	"pillpath-finance/pkg/middleware"
	"pillpath-finance/pkg/response"

	"github.com/go-chi/chi/v5"
)

// maxReceiptSize caps payout receipt uploads at 10 MB
const maxReceiptSize = 10 << 20

// HTTPFinanceController handles the admin finance dashboard endpoints
type HTTPFinanceController struct {
	financeStore         *store.FinanceStore
	ledgerHandler        *query.GetLedgerHandler
	walletHandler        *query.GetWalletSummaryHandler
	orderPaymentsHandler *query.GetOrderPaymentsHandler
}

// NewHTTPFinanceController creates a new finance controller
func NewHTTPFinanceController(
	financeStore *store.FinanceStore,
	ledgerHandler *query.GetLedgerHandler,
	walletHandler *query.GetWalletSummaryHandler,
	orderPaymentsHandler *query.GetOrderPaymentsHandler,
) *HTTPFinanceController {
	return &HTTPFinanceController{
		financeStore:         financeStore,
		ledgerHandler:        ledgerHandler,
		walletHandler:        walletHandler,
		orderPaymentsHandler: orderPaymentsHandler,
	}
}

// GetLedger handles GET /admin/finance/ledger
// Query parameters: search, type, month, year ("All" or empty passes through)
func (c *HTTPFinanceController) GetLedger(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	result, err := c.ledgerHandler.Handle(r.Context(), &query.GetLedgerQuery{
		Search: params.Get("search"),
		Type:   params.Get("type"),
		Month:  params.Get("month"),
		Year:   params.Get("year"),
	})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, result)
}

// GetWalletSummary handles GET /admin/finance/wallets/{pharmacyName}
func (c *HTTPFinanceController) GetWalletSummary(w http.ResponseWriter, r *http.Request) {
	pharmacyName := chi.URLParam(r, "pharmacyName")
	summary, err := c.walletHandler.Handle(r.Context(), &query.GetWalletSummaryQuery{
		PharmacyName: pharmacyName,
	})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, summary)
}

// GetOrderPayments handles GET /admin/finance/order-payments
func (c *HTTPFinanceController) GetOrderPayments(w http.ResponseWriter, r *http.Request) {
	views, err := c.orderPaymentsHandler.Handle(r.Context(), &query.GetOrderPaymentsQuery{})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, views)
}

// RefreshRequest selects the filter window to fetch
type RefreshRequest struct {
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	PharmacyID string `json:"pharmacyId"`
}

// RefreshFinanceData handles POST /admin/finance/refresh
// The three collections load independently; sources that failed are reported
// alongside the ones that refreshed, and previously loaded data stays served.
func (c *HTTPFinanceController) RefreshFinanceData(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.HandleError(w, r, errors.NewValidationError("invalid request body"))
			return
		}
	}

	failures := c.financeStore.Refresh(r.Context(), backend.Window{
		Month: req.Month,
		Year:  req.Year,
	}, req.PharmacyID)

	sourceErrors := make(map[string]string, len(failures))
	for source, err := range failures {
		// A rejected session has to surface distinctly so the caller can
		// force re-authentication instead of showing a retry banner.
		if errors.IsAuthFailure(err) {
			middleware.HandleError(w, r, err)
			return
		}
		sourceErrors[string(source)] = err.Error()
	}

	response.SendSuccess(w, r, map[string]interface{}{
		"refreshed":    len(failures) == 0,
		"sourceErrors": sourceErrors,
	})
}

// UpdateCommissionRequest toggles a commission's settlement status
type UpdateCommissionRequest struct {
	Status string `json:"status"`
}

// UpdateCommissionStatus handles PATCH /admin/finance/commissions/{id}
func (c *HTTPFinanceController) UpdateCommissionStatus(w http.ResponseWriter, r *http.Request) {
	commissionID := chi.URLParam(r, "id")
	if commissionID == "" {
		middleware.HandleError(w, r, errors.NewValidationError("commission id is required"))
		return
	}

	var req UpdateCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.HandleError(w, r, errors.NewValidationError("invalid request body"))
		return
	}

	var (
		updated *ledger.Commission
		err     error
	)
	switch ledger.PaymentStatus(req.Status) {
	case ledger.StatusPaid:
		updated, err = c.financeStore.MarkCommissionPaid(r.Context(), commissionID)
	case ledger.StatusUnpaid:
		updated, err = c.financeStore.MarkCommissionUnpaid(r.Context(), commissionID)
	default:
		middleware.HandleError(w, r, errors.NewValidationError("status must be PAID or UNPAID"))
		return
	}
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, updated)
}

// PayPayout handles POST /admin/finance/payouts/{id}/pay (multipart)
// The receipt file is mandatory; a payout is never marked paid without one.
func (c *HTTPFinanceController) PayPayout(w http.ResponseWriter, r *http.Request) {
	payoutID := chi.URLParam(r, "id")
	if payoutID == "" {
		middleware.HandleError(w, r, errors.NewValidationError("payout id is required"))
		return
	}

	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		middleware.HandleError(w, r, errors.NewValidationError("a receipt file is required to mark a payout paid"))
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		middleware.HandleError(w, r, errors.NewValidationError("a receipt file is required to mark a payout paid"))
		return
	}
	defer file.Close()

	updated, err := c.financeStore.MarkPayoutPaid(r.Context(), payoutID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, updated)
}

// HealthCheck handles GET /health
func (c *HTTPFinanceController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"pillpath-finance"}`))
}
