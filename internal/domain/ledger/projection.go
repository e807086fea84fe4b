package ledger

// ProjectCommissionReceipts recomputes OnHandCommissionReceived on order
// payments from the authoritative commission statuses. The boolean on the
// order record is a cached projection the backend resyncs lazily, so it is
// rebuilt here whenever either collection refreshes instead of being trusted.
//
// Orders settled online are left untouched; on-hand orders with no commission
// invoice yet get a nil value. A referenced commission missing from the
// current window keeps the order's cached value. The input slice is not
// modified.
func ProjectCommissionReceipts(orders []OrderPayment, commissions []Commission) []OrderPayment {
	statusByID := make(map[string]PaymentStatus, len(commissions))
	for _, commission := range commissions {
		statusByID[commission.ID] = commission.Status
	}

	projected := make([]OrderPayment, len(orders))
	copy(projected, orders)

	for i := range projected {
		if projected[i].SettlementChannel != SettlementOnHand {
			continue
		}
		if projected[i].CommissionID == "" {
			projected[i].OnHandCommissionReceived = nil
			continue
		}
		status, found := statusByID[projected[i].CommissionID]
		if !found {
			continue
		}
		received := status == StatusPaid
		projected[i].OnHandCommissionReceived = &received
	}

	return projected
}
