package query

import (
	"context"
	"strconv"
	"strings"

	"pillpath-finance/internal/application/store"
	"pillpath-finance/internal/domain/ledger"
	"pillpath-finance/pkg/errors"
)

// GetLedgerQuery represents a query for the unified transaction ledger
type GetLedgerQuery struct {
	Search string `json:"search"`
	Type   string `json:"type"`
	Month  string `json:"month"`
	Year   string `json:"year"`
}

// LedgerResult is the filtered ledger plus its aggregate figures
type LedgerResult struct {
	Rows         []ledger.Transaction `json:"rows"`
	KPIs         ledger.KPIs          `json:"kpis"`
	SourceErrors map[string]string    `json:"sourceErrors,omitempty"`
}

// GetLedgerHandler handles ledger queries
type GetLedgerHandler struct {
	financeStore *store.FinanceStore
}

// NewGetLedgerHandler creates a new ledger query handler
func NewGetLedgerHandler(financeStore *store.FinanceStore) *GetLedgerHandler {
	return &GetLedgerHandler{
		financeStore: financeStore,
	}
}

// Handle processes the ledger query. Aggregation runs purely on the cached
// collections, so re-running it for every filter change is always safe.
func (h *GetLedgerHandler) Handle(ctx context.Context, query *GetLedgerQuery) (*LedgerResult, error) {
	if query == nil {
		return nil, errors.NewValidationError("query cannot be nil")
	}
	if err := validateNumericFilter("month", query.Month); err != nil {
		return nil, err
	}
	if err := validateNumericFilter("year", query.Year); err != nil {
		return nil, err
	}

	snapshot := h.financeStore.Snapshot()
	rows := ledger.MapToTransactionRows(snapshot.Orders, snapshot.Commissions, snapshot.Payouts)
	filtered := ledger.FilterRows(rows, ledger.Filter{
		Search: query.Search,
		Type:   query.Type,
		Month:  query.Month,
		Year:   query.Year,
	})

	result := &LedgerResult{
		Rows: filtered,
		KPIs: ledger.ComputeKPIs(filtered),
	}
	if len(snapshot.Errors) > 0 {
		result.SourceErrors = make(map[string]string, len(snapshot.Errors))
		for source, message := range snapshot.Errors {
			result.SourceErrors[string(source)] = message
		}
	}

	return result, nil
}

// validateNumericFilter rejects month/year filter values that are neither
// numeric nor the pass-through value, so a caller typo comes back as a
// validation error instead of silently matching nothing.
func validateNumericFilter(name, value string) error {
	if value == "" || value == ledger.FilterAll {
		return nil
	}
	if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
		return errors.NewValidationError(name + " must be a number or All")
	}
	return nil
}

// GetWalletSummaryQuery represents a query for one pharmacy's wallet
type GetWalletSummaryQuery struct {
	PharmacyName string `json:"pharmacy_name"`
}

// GetWalletSummaryHandler handles pharmacy wallet summary queries
type GetWalletSummaryHandler struct {
	financeStore *store.FinanceStore
}

// NewGetWalletSummaryHandler creates a new wallet summary handler
func NewGetWalletSummaryHandler(financeStore *store.FinanceStore) *GetWalletSummaryHandler {
	return &GetWalletSummaryHandler{
		financeStore: financeStore,
	}
}

// Handle processes the wallet summary query. A pharmacy with no settled
// records gets a zero-valued summary.
func (h *GetWalletSummaryHandler) Handle(ctx context.Context, query *GetWalletSummaryQuery) (*ledger.WalletSummary, error) {
	if query == nil {
		return nil, errors.NewValidationError("query cannot be nil")
	}
	if query.PharmacyName == "" {
		return nil, errors.NewValidationError("pharmacy_name is required")
	}

	snapshot := h.financeStore.Snapshot()
	summary := ledger.SummarizePharmacyWallet(query.PharmacyName, snapshot.Commissions, snapshot.Payouts)
	return &summary, nil
}

// GetOrderPaymentsQuery represents a query for the order-payment table
type GetOrderPaymentsQuery struct{}

// OrderPaymentView is an order payment with its derived received-status label
type OrderPaymentView struct {
	ledger.OrderPayment
	ReceivedStatus string `json:"receivedStatus"`
}

// GetOrderPaymentsHandler handles order-payment table queries
type GetOrderPaymentsHandler struct {
	financeStore *store.FinanceStore
}

// NewGetOrderPaymentsHandler creates a new order-payments handler
func NewGetOrderPaymentsHandler(financeStore *store.FinanceStore) *GetOrderPaymentsHandler {
	return &GetOrderPaymentsHandler{
		financeStore: financeStore,
	}
}

// Handle returns the cached order payments with received-status labels
func (h *GetOrderPaymentsHandler) Handle(ctx context.Context, query *GetOrderPaymentsQuery) ([]OrderPaymentView, error) {
	if query == nil {
		return nil, errors.NewValidationError("query cannot be nil")
	}

	snapshot := h.financeStore.Snapshot()
	views := make([]OrderPaymentView, len(snapshot.Orders))
	for i, order := range snapshot.Orders {
		views[i] = OrderPaymentView{
			OrderPayment:   order,
			ReceivedStatus: ledger.ReceivedStatusLabel(order),
		}
	}
	return views, nil
}
