package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers -------------------------------------------------------------

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func order(id, date, customer, pharmacy string, amount float64, channel SettlementChannel) OrderPayment {
	return OrderPayment{
		ID:                id,
		Date:              date,
		CustomerName:      customer,
		PharmacyName:      pharmacy,
		GrossAmount:       NewAmount(amount),
		SettlementChannel: channel,
	}
}

func commission(id, pharmacy string, amount float64, month string, status PaymentStatus, paidAt *string) Commission {
	return Commission{
		ID:           id,
		PharmacyName: pharmacy,
		Amount:       NewAmount(amount),
		Month:        month,
		Status:       status,
		PaidAt:       paidAt,
	}
}

func payout(id, pharmacy string, amount float64, month string, status PaymentStatus, paidAt *string) Payout {
	return Payout{
		ID:           id,
		PharmacyName: pharmacy,
		Amount:       NewAmount(amount),
		PayoutMonth:  month,
		Status:       status,
		PaidAt:       paidAt,
	}
}

// --- ParseMonth ----------------------------------------------------------

func TestParseMonth(t *testing.T) {
	parsed, err := ParseMonth("03/2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), parsed)

	for _, bad := range []string{"", "2024-03", "13/2024", "00/2024", "3", "aa/2024", "03/xx"} {
		_, err := ParseMonth(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestFormatMonth(t *testing.T) {
	assert.Equal(t, "03/2024", FormatMonth(time.Date(2024, time.March, 17, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "12/2023", FormatMonth(time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

// --- MapToTransactionRows ------------------------------------------------

func TestMapToTransactionRowsDeterminism(t *testing.T) {
	orders := []OrderPayment{
		order("O1", "2024-03-01T09:00:00Z", "Alice", "Crescent Pharmacy", 500, SettlementOnline),
		order("O2", "2024-01-15T09:00:00Z", "Bob", "Harbor Pharmacy", 320, SettlementOnHand),
	}
	commissions := []Commission{
		commission("C1", "Harbor Pharmacy", 32, "01/2024", StatusPaid, strPtr("2024-02-01T00:00:00Z")),
	}
	payouts := []Payout{
		payout("P1", "Crescent Pharmacy", 450, "03/2024", StatusUnpaid, nil),
	}

	first := MapToTransactionRows(orders, commissions, payouts)
	second := MapToTransactionRows(orders, commissions, payouts)
	assert.Equal(t, first, second)
}

func TestMapToTransactionRowsSortsNewestFirst(t *testing.T) {
	orders := []OrderPayment{
		order("O1", "2024-03-01T00:00:00Z", "Alice", "A", 100, SettlementOnline),
	}
	commissions := []Commission{
		commission("C1", "A", 10, "", StatusPaid, strPtr("2024-01-01T00:00:00Z")),
	}
	payouts := []Payout{
		payout("P1", "A", 90, "", StatusPaid, strPtr("2024-02-01T00:00:00Z")),
	}

	rows := MapToTransactionRows(orders, commissions, payouts)
	require.Len(t, rows, 3)
	assert.Equal(t, "O1", rows[0].ID)
	assert.Equal(t, "P1", rows[1].ID)
	assert.Equal(t, "C1", rows[2].ID)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].Date.After(rows[i-1].Date), "rows must be descending by date")
	}
}

func TestMapToTransactionRowsMonthFallback(t *testing.T) {
	commissions := []Commission{
		commission("C-month", "A", 10, "03/2024", StatusUnpaid, nil),
		commission("C-none", "A", 10, "", StatusUnpaid, nil),
	}

	rows := MapToTransactionRows(nil, commissions, nil)
	require.Len(t, rows, 2)

	assert.Equal(t, "C-month", rows[0].ID)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)

	// Neither paidAt nor month: epoch, sorts last
	assert.Equal(t, "C-none", rows[1].ID)
	assert.Equal(t, time.Unix(0, 0).UTC(), rows[1].Date)
}

func TestMapToTransactionRowsTieKeepsEmissionOrder(t *testing.T) {
	ts := "2024-05-01T00:00:00Z"
	orders := []OrderPayment{order("O1", ts, "Alice", "A", 100, SettlementOnline)}
	commissions := []Commission{commission("C1", "A", 10, "", StatusPaid, strPtr(ts))}
	payouts := []Payout{payout("P1", "A", 90, "", StatusPaid, strPtr(ts))}

	rows := MapToTransactionRows(orders, commissions, payouts)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"O1", "C1", "P1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
}

func TestMapToTransactionRowsRowShape(t *testing.T) {
	orders := []OrderPayment{order("O1", "2024-01-05T00:00:00Z", "Alice", "Crescent Pharmacy", 1000, SettlementOnline)}
	commissions := []Commission{commission("C1", "Crescent Pharmacy", 100, "", StatusPaid, strPtr("2024-01-06T00:00:00Z"))}
	payouts := []Payout{payout("P1", "Crescent Pharmacy", 900, "", StatusPaid, strPtr("2024-01-07T00:00:00Z"))}

	rows := MapToTransactionRows(orders, commissions, payouts)
	require.Len(t, rows, 3)

	byID := map[string]Transaction{}
	for _, row := range rows {
		byID[row.ID] = row
	}

	assert.Equal(t, "Alice", byID["O1"].Sender)
	assert.Equal(t, "Crescent Pharmacy", byID["O1"].Receiver)
	assert.Equal(t, TypeOrderPayment, byID["O1"].Type)

	assert.Equal(t, "Crescent Pharmacy", byID["C1"].Sender)
	assert.Equal(t, PlatformParty, byID["C1"].Receiver)
	assert.Equal(t, TypeCommissionPayment, byID["C1"].Type)

	assert.Equal(t, PlatformParty, byID["P1"].Sender)
	assert.Equal(t, "Crescent Pharmacy", byID["P1"].Receiver)
	assert.Equal(t, TypePayout, byID["P1"].Type)
}

func TestMapToTransactionRowsSkipsMalformedAmounts(t *testing.T) {
	payload := `[
		{"id":"O1","date":"2024-01-01T00:00:00Z","customerName":"A","pharmacyName":"P","grossAmount":100,"settlementChannel":"ONLINE"},
		{"id":"O2","date":"2024-01-02T00:00:00Z","customerName":"B","pharmacyName":"P","grossAmount":"not-a-number","settlementChannel":"ONLINE"},
		{"id":"O3","date":"2024-01-03T00:00:00Z","customerName":"C","pharmacyName":"P","grossAmount":300,"settlementChannel":"ON_HAND"},
		{"id":"O4","date":"2024-01-04T00:00:00Z","customerName":"D","pharmacyName":"P","grossAmount":400,"settlementChannel":"ONLINE"},
		{"id":"O5","date":"2024-01-05T00:00:00Z","customerName":"E","pharmacyName":"P","grossAmount":500,"settlementChannel":"ONLINE"}
	]`
	var orders []OrderPayment
	require.NoError(t, json.Unmarshal([]byte(payload), &orders))

	rows := MapToTransactionRows(orders, nil, nil)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.NotEqual(t, "O2", row.ID)
	}
}

// --- FilterRows ----------------------------------------------------------

func filterFixture() []Transaction {
	return MapToTransactionRows(
		[]OrderPayment{
			order("O1", "2024-03-05T00:00:00Z", "Alice", "Crescent Pharmacy", 100, SettlementOnline),
			order("O2", "2023-11-20T00:00:00Z", "Bob", "Harbor Pharmacy", 200, SettlementOnHand),
		},
		[]Commission{
			commission("C1", "Harbor Pharmacy", 20, "11/2023", StatusPaid, nil),
		},
		[]Payout{
			payout("P1", "Crescent Pharmacy", 80, "03/2024", StatusPaid, nil),
			payout("P2", "Harbor Pharmacy", 150, "12/2023", StatusUnpaid, nil),
		},
	)
}

func TestFilterRowsCombinesWithAnd(t *testing.T) {
	rows := filterFixture()

	both := FilterRows(rows, Filter{Type: string(TypePayout), Year: "2024"})
	require.Len(t, both, 1)
	assert.Equal(t, "P1", both[0].ID)

	// Removing either filter can only grow the result
	typeOnly := FilterRows(rows, Filter{Type: string(TypePayout), Year: FilterAll})
	yearOnly := FilterRows(rows, Filter{Type: FilterAll, Year: "2024"})
	assert.GreaterOrEqual(t, len(typeOnly), len(both))
	assert.GreaterOrEqual(t, len(yearOnly), len(both))
}

func TestFilterRowsSearchMatchesAnyField(t *testing.T) {
	rows := filterFixture()

	bySender := FilterRows(rows, Filter{Search: "alice"})
	require.Len(t, bySender, 1)
	assert.Equal(t, "O1", bySender[0].ID)

	byID := FilterRows(rows, Filter{Search: "p2"})
	require.Len(t, byID, 1)
	assert.Equal(t, "P2", byID[0].ID)

	byPharmacy := FilterRows(rows, Filter{Search: "HARBOR"})
	assert.Len(t, byPharmacy, 3)

	// "Platform" appears as sender of payouts and receiver of commissions
	byPlatform := FilterRows(rows, Filter{Search: "platform"})
	assert.Len(t, byPlatform, 3)

	assert.Empty(t, FilterRows(rows, Filter{Search: "no-such-party"}))
}

func TestFilterRowsMonthUsesResolvedDate(t *testing.T) {
	rows := filterFixture()

	// C1 has no paidAt; its resolved date comes from the 11/2023 month string
	filtered := FilterRows(rows, Filter{Month: "11", Year: "2023"})
	ids := make([]string, len(filtered))
	for i, row := range filtered {
		ids[i] = row.ID
	}
	assert.ElementsMatch(t, []string{"O2", "C1"}, ids)
}

func TestFilterRowsPreservesOrder(t *testing.T) {
	rows := filterFixture()
	filtered := FilterRows(rows, Filter{Search: "harbor"})
	require.Len(t, filtered, 3)
	for i := 1; i < len(filtered); i++ {
		assert.False(t, filtered[i].Date.After(filtered[i-1].Date))
	}
}

// --- ComputeKPIs ---------------------------------------------------------

func TestComputeKPIsAdditivity(t *testing.T) {
	rows := filterFixture()
	kpis := ComputeKPIs(rows)

	var total float64
	for _, row := range rows {
		total += row.Amount
	}
	assert.Equal(t, total, kpis.TotalReceived+kpis.TotalPayouts)
	assert.Equal(t, len(rows), kpis.TransactionCount)
}

func TestComputeKPIsWalletBalanceCountsOnlineOnly(t *testing.T) {
	rows := filterFixture()
	kpis := ComputeKPIs(rows)

	// Online orders: O1 (100). Payouts: P1 (80) + P2 (150).
	assert.Equal(t, 100.0, kpis.TotalReceived-200-20)
	assert.Equal(t, 230.0, kpis.TotalPayouts)
	assert.Equal(t, 100.0-230.0, kpis.WalletBalance)
}

// --- SummarizePharmacyWallet ---------------------------------------------

func TestSummarizePharmacyWallet(t *testing.T) {
	commissions := []Commission{
		commission("C1", "Harbor Pharmacy", 20, "11/2023", StatusPaid, nil),
		commission("C2", "Harbor Pharmacy", 35, "12/2023", StatusUnpaid, nil),
		commission("C3", "Crescent Pharmacy", 50, "12/2023", StatusPaid, nil),
	}
	payouts := []Payout{
		payout("P1", "Harbor Pharmacy", 150, "12/2023", StatusPaid, nil),
		payout("P2", "Harbor Pharmacy", 90, "01/2024", StatusUnpaid, nil),
	}

	summary := SummarizePharmacyWallet("Harbor Pharmacy", commissions, payouts)
	assert.Equal(t, 20.0, summary.TotalPaidCommissions)
	assert.Equal(t, 150.0, summary.TotalPayoutsReceived)

	empty := SummarizePharmacyWallet("Unknown Pharmacy", commissions, payouts)
	assert.Equal(t, WalletSummary{PharmacyName: "Unknown Pharmacy"}, empty)
}

// --- ReceivedStatusLabel -------------------------------------------------

func TestReceivedStatusLabel(t *testing.T) {
	tests := []struct {
		name     string
		order    OrderPayment
		expected string
	}{
		{"online always received", OrderPayment{SettlementChannel: SettlementOnline}, "Received"},
		{"on-hand commission paid", OrderPayment{SettlementChannel: SettlementOnHand, OnHandCommissionReceived: boolPtr(true)}, "Received"},
		{"on-hand commission unpaid", OrderPayment{SettlementChannel: SettlementOnHand, OnHandCommissionReceived: boolPtr(false)}, "Unreceived"},
		{"on-hand no invoice yet", OrderPayment{SettlementChannel: SettlementOnHand, OnHandCommissionReceived: nil}, "Not Paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReceivedStatusLabel(tt.order))
		})
	}
}

// --- End to end ----------------------------------------------------------

func TestLedgerEndToEnd(t *testing.T) {
	orders := []OrderPayment{
		order("O1", "2024-01-05T00:00:00Z", "Alice", "A", 1000, SettlementOnline),
	}
	commissions := []Commission{
		commission("C1", "A", 100, "", StatusPaid, strPtr("2024-01-06T00:00:00Z")),
	}
	payouts := []Payout{
		payout("P1", "A", 900, "", StatusPaid, strPtr("2024-01-07T00:00:00Z")),
	}

	rows := MapToTransactionRows(orders, commissions, payouts)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"P1", "C1", "O1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	kpis := ComputeKPIs(rows)
	assert.Equal(t, 1100.0, kpis.TotalReceived)
	assert.Equal(t, 900.0, kpis.TotalPayouts)
	assert.Equal(t, 100.0, kpis.WalletBalance)
	assert.Equal(t, 3, kpis.TransactionCount)
}
