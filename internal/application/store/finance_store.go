package store

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"pillpath-finance/internal/domain/event"
	"pillpath-finance/internal/domain/ledger"
	"pillpath-finance/internal/infrastructure/backend"
	"pillpath-finance/internal/infrastructure/bus"
	"pillpath-finance/pkg/errors"
)

// Source identifies one of the three independently fetched finance collections
type Source string

const (
	SourceOrders      Source = "orders"
	SourceCommissions Source = "commissions"
	SourcePayouts     Source = "payouts"
)

// sourceState tracks fetch progress for one collection. seq is bumped every
// time a fetch is issued; a response is applied only if its sequence is newer
// than the one already applied, so a slow response for an old filter window
// can never overwrite fresher data.
type sourceState struct {
	seq     uint64
	applied uint64
	total   int
	lastErr error
}

// FinanceStore owns the three finance collections for the currently selected
// filter window. It is the only writer of the caches: fetch-success handlers
// and the two mutation paths. All reads hand out copies.
type FinanceStore struct {
	client *backend.Client
	bus    bus.EventBus

	mu          sync.RWMutex
	window      backend.Window
	pharmacyID  string
	orders      []ledger.OrderPayment
	commissions []ledger.Commission
	payouts     []ledger.Payout
	states      map[Source]*sourceState
	inFlight    map[string]bool // entity id -> mutation outstanding
}

// NewFinanceStore creates a finance store backed by the platform API client
func NewFinanceStore(client *backend.Client, eventBus bus.EventBus) *FinanceStore {
	return &FinanceStore{
		client: client,
		bus:    eventBus,
		states: map[Source]*sourceState{
			SourceOrders:      {},
			SourceCommissions: {},
			SourcePayouts:     {},
		},
		inFlight: make(map[string]bool),
	}
}

// Snapshot is a consistent copy of the store for read-side aggregation
type Snapshot struct {
	Window      backend.Window
	Orders      []ledger.OrderPayment
	Commissions []ledger.Commission
	Payouts     []ledger.Payout
	Errors      map[Source]string
	Totals      map[Source]int
}

// Snapshot returns a copy of the cached collections plus per-source error
// state. A source that failed its last fetch still reports the data from its
// last successful fetch.
func (s *FinanceStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := Snapshot{
		Window:      s.window,
		Orders:      append([]ledger.OrderPayment(nil), s.orders...),
		Commissions: append([]ledger.Commission(nil), s.commissions...),
		Payouts:     append([]ledger.Payout(nil), s.payouts...),
		Errors:      make(map[Source]string),
		Totals:      make(map[Source]int),
	}
	for source, state := range s.states {
		if state.lastErr != nil {
			snapshot.Errors[source] = state.lastErr.Error()
		}
		snapshot.Totals[source] = state.total
	}
	return snapshot
}

// Refresh re-fetches the three collections for the given window. The fetches
// run concurrently since they have no data dependency on each other, and one
// failing never blocks the other two: a failed source keeps its previous data
// and records a per-source error. The returned map holds only the sources
// that failed.
func (s *FinanceStore) Refresh(ctx context.Context, window backend.Window, pharmacyID string) map[Source]error {
	s.mu.Lock()
	s.window = window
	s.pharmacyID = pharmacyID
	seqs := map[Source]uint64{}
	for source, state := range s.states {
		state.seq++
		seqs[source] = state.seq
	}
	s.mu.Unlock()

	var (
		wg       sync.WaitGroup
		failMu   sync.Mutex
		failures = make(map[Source]error)
	)

	record := func(source Source, err error) {
		failMu.Lock()
		failures[source] = err
		failMu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		items, total, err := s.client.ListOrderPayments(ctx, backend.ListOrderPaymentsParams{
			PharmacyID: pharmacyID,
			Window:     window,
		})
		if err != nil {
			s.markFailed(ctx, SourceOrders, seqs[SourceOrders], err)
			record(SourceOrders, err)
			return
		}
		s.applyOrders(ctx, seqs[SourceOrders], items, total)
	}()

	go func() {
		defer wg.Done()
		items, total, err := s.client.ListCommissions(ctx, backend.ListSettlementsParams{
			PharmacyID: pharmacyID,
			Window:     window,
		})
		if err != nil {
			s.markFailed(ctx, SourceCommissions, seqs[SourceCommissions], err)
			record(SourceCommissions, err)
			return
		}
		s.applyCommissions(ctx, seqs[SourceCommissions], items, total)
	}()

	go func() {
		defer wg.Done()
		items, total, err := s.client.ListPayouts(ctx, backend.ListSettlementsParams{
			PharmacyID: pharmacyID,
			Window:     window,
		})
		if err != nil {
			s.markFailed(ctx, SourcePayouts, seqs[SourcePayouts], err)
			record(SourcePayouts, err)
			return
		}
		s.applyPayouts(ctx, seqs[SourcePayouts], items, total)
	}()

	wg.Wait()
	return failures
}

func (s *FinanceStore) applyOrders(ctx context.Context, seq uint64, items []ledger.OrderPayment, total int) {
	s.mu.Lock()
	state := s.states[SourceOrders]
	if seq <= state.applied {
		s.mu.Unlock()
		log.Printf("store: discarding stale order-payment response (seq %d <= %d)", seq, state.applied)
		return
	}
	state.applied = seq
	state.total = total
	state.lastErr = nil
	s.orders = ledger.ProjectCommissionReceipts(items, s.commissions)
	s.mu.Unlock()

	s.publish(ctx, &event.SourceRefreshed{
		Source:    string(SourceOrders),
		Count:     len(items),
		Total:     total,
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
	})
}

func (s *FinanceStore) applyCommissions(ctx context.Context, seq uint64, items []ledger.Commission, total int) {
	s.mu.Lock()
	state := s.states[SourceCommissions]
	if seq <= state.applied {
		s.mu.Unlock()
		log.Printf("store: discarding stale commission response (seq %d <= %d)", seq, state.applied)
		return
	}
	state.applied = seq
	state.total = total
	state.lastErr = nil
	s.commissions = items
	// Commission.status is the source of truth for the cached received flag
	// on order rows, so the projection reruns on every commission refresh.
	s.orders = ledger.ProjectCommissionReceipts(s.orders, s.commissions)
	s.mu.Unlock()

	s.publish(ctx, &event.SourceRefreshed{
		Source:    string(SourceCommissions),
		Count:     len(items),
		Total:     total,
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
	})
}

func (s *FinanceStore) applyPayouts(ctx context.Context, seq uint64, items []ledger.Payout, total int) {
	s.mu.Lock()
	state := s.states[SourcePayouts]
	if seq <= state.applied {
		s.mu.Unlock()
		log.Printf("store: discarding stale payout response (seq %d <= %d)", seq, state.applied)
		return
	}
	state.applied = seq
	state.total = total
	state.lastErr = nil
	s.payouts = items
	s.mu.Unlock()

	s.publish(ctx, &event.SourceRefreshed{
		Source:    string(SourcePayouts),
		Count:     len(items),
		Total:     total,
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
	})
}

// markFailed records a fetch failure without touching the cached data
func (s *FinanceStore) markFailed(ctx context.Context, source Source, seq uint64, err error) {
	s.mu.Lock()
	state := s.states[source]
	if seq <= state.applied {
		s.mu.Unlock()
		return
	}
	state.lastErr = err
	s.mu.Unlock()

	log.Printf("store: %s fetch failed: %v", source, err)
	s.publish(ctx, &event.SourceRefreshFailed{
		Source:    string(source),
		Reason:    err.Error(),
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
	})
}

// MarkCommissionPaid confirms an on-hand commission with the platform and,
// only after the server agrees, updates the local caches.
func (s *FinanceStore) MarkCommissionPaid(ctx context.Context, commissionID string) (*ledger.Commission, error) {
	return s.setCommissionStatus(ctx, commissionID, ledger.StatusPaid)
}

// MarkCommissionUnpaid reverts a commission to UNPAID (admin correction path)
func (s *FinanceStore) MarkCommissionUnpaid(ctx context.Context, commissionID string) (*ledger.Commission, error) {
	return s.setCommissionStatus(ctx, commissionID, ledger.StatusUnpaid)
}

func (s *FinanceStore) setCommissionStatus(ctx context.Context, commissionID string, status ledger.PaymentStatus) (*ledger.Commission, error) {
	if commissionID == "" {
		return nil, errors.NewValidationError("commission id is required")
	}
	if err := s.acquireRow(commissionID); err != nil {
		return nil, err
	}
	defer s.releaseRow(commissionID)

	updated, err := s.client.UpdateCommissionStatus(ctx, commissionID, status)
	if err != nil {
		// No optimistic update: the cache must not show "Received" before
		// the ledger agrees.
		return nil, err
	}

	s.mu.Lock()
	for i := range s.commissions {
		if s.commissions[i].ID == updated.ID {
			s.commissions[i] = *updated
			break
		}
	}
	s.orders = ledger.ProjectCommissionReceipts(s.orders, s.commissions)
	s.mu.Unlock()

	s.publish(ctx, &event.CommissionStatusChanged{
		CommissionID: updated.ID,
		PharmacyID:   updated.PharmacyID,
		Status:       string(updated.Status),
		Timestamp:    time.Now().UTC(),
	})

	return updated, nil
}

// MarkPayoutPaid uploads the receipt and then marks the payout paid. A payout
// can never be marked paid without a receipt, and the transition is one-way.
// If the status update fails after the upload succeeded, the uploaded file is
// orphaned; that risk is accepted and not retried.
func (s *FinanceStore) MarkPayoutPaid(ctx context.Context, payoutID, fileName, fileType string, file io.Reader) (*ledger.Payout, error) {
	if payoutID == "" {
		return nil, errors.NewValidationError("payout id is required")
	}
	if file == nil || fileName == "" {
		return nil, errors.NewValidationError("a receipt file is required to mark a payout paid")
	}

	s.mu.RLock()
	for i := range s.payouts {
		if s.payouts[i].ID == payoutID && s.payouts[i].Status == ledger.StatusPaid {
			s.mu.RUnlock()
			return nil, errors.NewConflictError("payout is already paid")
		}
	}
	s.mu.RUnlock()

	if err := s.acquireRow(payoutID); err != nil {
		return nil, err
	}
	defer s.releaseRow(payoutID)

	upload, err := s.client.UploadPayoutReceipt(ctx, fileName, fileType, file)
	if err != nil {
		return nil, err
	}

	updated, err := s.client.UpdatePayout(ctx, payoutID, backend.UpdatePayoutRequest{
		Status:          ledger.StatusPaid,
		ReceiptURL:      upload.URL,
		ReceiptFileName: upload.FileName,
		ReceiptFileType: upload.FileType,
		PaidAt:          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.payouts {
		if s.payouts[i].ID == updated.ID {
			s.payouts[i] = *updated
			break
		}
	}
	s.mu.Unlock()

	s.publish(ctx, &event.PayoutPaid{
		PayoutID:   updated.ID,
		PharmacyID: updated.PharmacyID,
		ReceiptURL: updated.ReceiptURL,
		Timestamp:  time.Now().UTC(),
	})

	return updated, nil
}

// acquireRow enforces at most one in-flight mutation per row. A second
// attempt while the first is outstanding is rejected, not queued.
func (s *FinanceStore) acquireRow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return errors.NewConflictError("another update for this record is still in progress")
	}
	s.inFlight[id] = true
	return nil
}

func (s *FinanceStore) releaseRow(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *FinanceStore) publish(ctx context.Context, evt event.DomainEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		log.Printf("store: failed to publish %s: %v", evt.EventType(), err)
	}
}
