package event

import "time"

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
	Version() int
}

// SourceRefreshed is published when one of the three finance collections
// (orders, commissions, payouts) finishes loading from the platform API.
type SourceRefreshed struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SourceRefreshed) EventType() string     { return "SourceRefreshed" }
func (e *SourceRefreshed) AggregateID() string   { return e.Source }
func (e *SourceRefreshed) OccurredAt() time.Time { return e.Timestamp }
func (e *SourceRefreshed) Version() int          { return 1 }

// SourceRefreshFailed is published when a collection fetch fails. The
// previously loaded data for that source stays visible.
type SourceRefreshFailed struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *SourceRefreshFailed) EventType() string     { return "SourceRefreshFailed" }
func (e *SourceRefreshFailed) AggregateID() string   { return e.Source }
func (e *SourceRefreshFailed) OccurredAt() time.Time { return e.Timestamp }
func (e *SourceRefreshFailed) Version() int          { return 1 }

// CommissionStatusChanged is published after the server confirms a
// commission was toggled between PAID and UNPAID.
type CommissionStatusChanged struct {
	CommissionID string    `json:"commission_id"`
	PharmacyID   string    `json:"pharmacy_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *CommissionStatusChanged) EventType() string     { return "CommissionStatusChanged" }
func (e *CommissionStatusChanged) AggregateID() string   { return e.CommissionID }
func (e *CommissionStatusChanged) OccurredAt() time.Time { return e.Timestamp }
func (e *CommissionStatusChanged) Version() int          { return 1 }

// PayoutPaid is published after the server confirms a payout was marked
// paid with its receipt attached. Payouts never move back to UNPAID.
type PayoutPaid struct {
	PayoutID   string    `json:"payout_id"`
	PharmacyID string    `json:"pharmacy_id"`
	ReceiptURL string    `json:"receipt_url"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *PayoutPaid) EventType() string     { return "PayoutPaid" }
func (e *PayoutPaid) AggregateID() string   { return e.PayoutID }
func (e *PayoutPaid) OccurredAt() time.Time { return e.Timestamp }
func (e *PayoutPaid) Version() int          { return 1 }
