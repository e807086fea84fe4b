package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FilterAll is the pass-through value for type/month/year filters
const FilterAll = "All"

// ParseMonth interprets an MM/YYYY billing month as the first day of that
// month in UTC. This is the single place the month-format asymmetry between
// the order-payment and commission/payout endpoints is normalized.
func ParseMonth(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid month %q: want MM/YYYY", s)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %q: bad month number", s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return time.Time{}, fmt.Errorf("invalid month %q: bad year", s)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// FormatMonth renders a timestamp as the MM/YYYY form the commission and
// payout endpoints expect.
func FormatMonth(t time.Time) string {
	return fmt.Sprintf("%02d/%d", int(t.Month()), t.Year())
}

// epoch is the fallback sort date for rows with no usable date; they sort last
var epoch = time.Unix(0, 0).UTC()

// parseTimestamp accepts the backend's ISO timestamps, with or without a
// time component.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// resolveDate normalizes the heterogeneous paidAt/month pair into a single
// sort date, computed once at ingestion and never re-parsed downstream.
func resolveDate(paidAt *string, month string) time.Time {
	if paidAt != nil {
		if t, ok := parseTimestamp(*paidAt); ok {
			return t
		}
	}
	if t, err := ParseMonth(month); err == nil {
		return t
	}
	return epoch
}

// MapToTransactionRows merges the three source collections into unified
// ledger rows sorted newest first. The function is pure and deterministic:
// identical inputs always yield identical, identically-ordered output. Rows
// whose amount is not a finite number are discarded rather than failing the
// whole batch.
func MapToTransactionRows(orders []OrderPayment, commissions []Commission, payouts []Payout) []Transaction {
	rows := make([]Transaction, 0, len(orders)+len(commissions)+len(payouts))

	for _, order := range orders {
		amount, ok := order.GrossAmount.Float64()
		if !ok {
			continue
		}
		date := epoch
		if t, ok := parseTimestamp(order.Date); ok {
			date = t
		}
		rows = append(rows, Transaction{
			ID:                order.ID,
			Date:              date,
			Sender:            order.CustomerName,
			Receiver:          order.PharmacyName,
			Amount:            amount,
			Type:              TypeOrderPayment,
			PharmacyName:      order.PharmacyName,
			SettlementChannel: order.SettlementChannel,
		})
	}

	for _, commission := range commissions {
		amount, ok := commission.Amount.Float64()
		if !ok {
			continue
		}
		rows = append(rows, Transaction{
			ID:           commission.ID,
			Date:         resolveDate(commission.PaidAt, commission.Month),
			Sender:       commission.PharmacyName,
			Receiver:     PlatformParty,
			Amount:       amount,
			Type:         TypeCommissionPayment,
			PharmacyName: commission.PharmacyName,
		})
	}

	for _, payout := range payouts {
		amount, ok := payout.Amount.Float64()
		if !ok {
			continue
		}
		rows = append(rows, Transaction{
			ID:           payout.ID,
			Date:         resolveDate(payout.PaidAt, payout.monthKey()),
			Sender:       PlatformParty,
			Receiver:     payout.PharmacyName,
			Amount:       amount,
			Type:         TypePayout,
			PharmacyName: payout.PharmacyName,
		})
	}

	// Newest first; ties keep emission order (orders, commissions, payouts)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})

	return rows
}

// FilterRows applies the four dashboard filters. Search matches sender,
// receiver, id or pharmacy name case-insensitively (OR); type, month and year
// must all match when set (AND). Relative order is preserved.
func FilterRows(rows []Transaction, filter Filter) []Transaction {
	filtered := make([]Transaction, 0, len(rows))
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	for _, row := range rows {
		if search != "" && !matchesSearch(row, search) {
			continue
		}
		if isSet(filter.Type) && string(row.Type) != filter.Type {
			continue
		}
		if isSet(filter.Month) && !matchesNumber(filter.Month, int(row.Date.Month())) {
			continue
		}
		if isSet(filter.Year) && !matchesNumber(filter.Year, row.Date.Year()) {
			continue
		}
		filtered = append(filtered, row)
	}

	return filtered
}

func isSet(value string) bool {
	return value != "" && value != FilterAll
}

func matchesSearch(row Transaction, search string) bool {
	for _, field := range []string{row.Sender, row.Receiver, row.ID, row.PharmacyName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func matchesNumber(filterValue string, actual int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(filterValue))
	if err != nil {
		return false
	}
	return n == actual
}

// ComputeKPIs aggregates the dashboard figures from ledger rows. The wallet
// balance only counts online-settled order payments, which is why rows carry
// the settlement channel through the merge.
func ComputeKPIs(rows []Transaction) KPIs {
	kpis := KPIs{TransactionCount: len(rows)}

	for _, row := range rows {
		switch row.Type {
		case TypeOrderPayment, TypeCommissionPayment:
			kpis.TotalReceived += row.Amount
			if row.Type == TypeOrderPayment && row.SettlementChannel == SettlementOnline {
				kpis.WalletBalance += row.Amount
			}
		case TypePayout:
			kpis.TotalPayouts += row.Amount
		}
	}

	kpis.WalletBalance -= kpis.TotalPayouts
	return kpis
}

// SummarizePharmacyWallet sums the PAID commissions and payouts of one
// pharmacy. A pharmacy with no matching records gets a zero-valued summary,
// not an error.
func SummarizePharmacyWallet(pharmacyName string, commissions []Commission, payouts []Payout) WalletSummary {
	summary := WalletSummary{PharmacyName: pharmacyName}

	for _, commission := range commissions {
		if commission.PharmacyName != pharmacyName || commission.Status != StatusPaid {
			continue
		}
		if amount, ok := commission.Amount.Float64(); ok {
			summary.TotalPaidCommissions += amount
		}
	}

	for _, payout := range payouts {
		if payout.PharmacyName != pharmacyName || payout.Status != StatusPaid {
			continue
		}
		if amount, ok := payout.Amount.Float64(); ok {
			summary.TotalPayoutsReceived += amount
		}
	}

	return summary
}

// ReceivedStatusLabel derives the commission-received label for an order.
// Online payments are captured by the gateway at transaction time, so they
// are always "Received"; whether the gateway can later reverse a capture is
// not modeled here.
func ReceivedStatusLabel(order OrderPayment) string {
	if order.SettlementChannel == SettlementOnline {
		return "Received"
	}
	switch {
	case order.OnHandCommissionReceived == nil:
		return "Not Paid"
	case *order.OnHandCommissionReceived:
		return "Received"
	default:
		return "Unreceived"
	}
}
