package ledger

import (
	"bytes"
	"math"
	"strconv"
	"time"
)

// SettlementChannel represents how a customer paid for an order
type SettlementChannel string

const (
	// SettlementOnline is a card/gateway payment, captured at transaction time
	SettlementOnline SettlementChannel = "ONLINE"
	// SettlementOnHand is cash collected by the pharmacy, commission owed back to the platform
	SettlementOnHand SettlementChannel = "ON_HAND"
)

// PaymentStatus represents the settlement state of a commission or payout
type PaymentStatus string

const (
	StatusPaid   PaymentStatus = "PAID"
	StatusUnpaid PaymentStatus = "UNPAID"
)

// TransactionType classifies a unified ledger row
type TransactionType string

const (
	TypeOrderPayment      TransactionType = "Order Payment"
	TypeCommissionPayment TransactionType = "Commission Payment"
	TypePayout            TransactionType = "Payout"
)

// PlatformParty is the counterparty name used for commission and payout rows
const PlatformParty = "Platform"

// Amount is a backend money field. The core API normally sends numbers, but
// malformed records have been observed in production exports, so decoding
// never fails the whole batch; Float64 reports whether the value is usable.
type Amount struct {
	raw string
}

// NewAmount builds an Amount from a float (used by tests and fixtures)
func NewAmount(v float64) Amount {
	return Amount{raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// UnmarshalJSON accepts any JSON token and keeps its raw text
func (a *Amount) UnmarshalJSON(data []byte) error {
	a.raw = string(bytes.Trim(bytes.TrimSpace(data), `"`))
	return nil
}

// MarshalJSON re-emits the value as a number when valid, else null
func (a Amount) MarshalJSON() ([]byte, error) {
	if v, ok := a.Float64(); ok {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return []byte("null"), nil
}

// Float64 returns the parsed amount and whether it is a finite number
func (a Amount) Float64() (float64, bool) {
	v, err := strconv.ParseFloat(a.raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// OrderPayment is an order-level payment record from the core platform API
type OrderPayment struct {
	ID                       string            `json:"id"`
	OrderCode                string            `json:"orderCode,omitempty"`
	Date                     string            `json:"date"`
	CustomerName             string            `json:"customerName"`
	PharmacyID               string            `json:"pharmacyId"`
	PharmacyName             string            `json:"pharmacyName"`
	GrossAmount              Amount            `json:"grossAmount"`
	CommissionAmount         Amount            `json:"commissionAmount"`
	SettlementChannel        SettlementChannel `json:"settlementChannel"`
	CommissionID             string            `json:"commissionId,omitempty"`
	OnHandCommissionReceived *bool             `json:"onHandCommissionReceived"`
}

// Commission is a platform fee owed by a pharmacy for an on-hand-settled order
type Commission struct {
	ID           string        `json:"id"`
	PharmacyID   string        `json:"pharmacyId"`
	PharmacyName string        `json:"pharmacyName"`
	Amount       Amount        `json:"amount"`
	Month        string        `json:"month"` // MM/YYYY
	Status       PaymentStatus `json:"status"`
	PaidAt       *string       `json:"paidAt"`
}

// Payout is a transfer owed by the platform to a pharmacy
type Payout struct {
	ID              string        `json:"id"`
	PharmacyID      string        `json:"pharmacyId"`
	PharmacyName    string        `json:"pharmacyName"`
	Amount          Amount        `json:"amount"`
	PayoutMonth     string        `json:"payoutMonth"` // MM/YYYY
	Month           string        `json:"month,omitempty"`
	Status          PaymentStatus `json:"status"`
	PaidAt          *string       `json:"paidAt"`
	ReceiptURL      string        `json:"receiptUrl,omitempty"`
	ReceiptFileName string        `json:"receiptFileName,omitempty"`
	ReceiptFileType string        `json:"receiptFileType,omitempty"`
}

// monthKey returns whichever month field the backend populated
func (p Payout) monthKey() string {
	if p.PayoutMonth != "" {
		return p.PayoutMonth
	}
	return p.Month
}

// Transaction is the unified, UI-facing ledger row merging the three source
// entity types. It is constructed, never persisted. The settlement channel is
// carried through from order payments so KPI computation does not need a
// parallel reference to the raw order collection.
type Transaction struct {
	ID                string            `json:"id"`
	Date              time.Time         `json:"date"`
	Sender            string            `json:"sender"`
	Receiver          string            `json:"receiver"`
	Amount            float64           `json:"amount"`
	Type              TransactionType   `json:"type"`
	PharmacyName      string            `json:"pharmacyName"`
	SettlementChannel SettlementChannel `json:"settlementChannel,omitempty"`
}

// Filter selects ledger rows. Zero values and "All" pass everything.
type Filter struct {
	Search string `json:"search"`
	Type   string `json:"type"`
	Month  string `json:"month"` // calendar month number of the resolved date
	Year   string `json:"year"`
}

// KPIs are the aggregate figures shown on the admin finance dashboard
type KPIs struct {
	TotalReceived    float64 `json:"totalReceived"`
	TotalPayouts     float64 `json:"totalPayouts"`
	TransactionCount int     `json:"transactionCount"`
	WalletBalance    float64 `json:"walletBalance"`
}

// WalletSummary is the per-pharmacy settled-money view
type WalletSummary struct {
	PharmacyName         string  `json:"pharmacyName"`
	TotalPaidCommissions float64 `json:"totalPaidCommissions"`
	TotalPayoutsReceived float64 `json:"totalPayoutsReceived"`
}
