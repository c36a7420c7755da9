package domain

// OrderStatus is the fulfillment state of a ServiceOrder.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderInProgress OrderStatus = "in_progress"
	OrderPartial    OrderStatus = "partial"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderFailed     OrderStatus = "failed"
)

// orderTransitions encodes the lifecycle:
//
//	pending → processing → in_progress → completed | partial
//	pending | processing → cancelled
//	processing → failed
//
// partial stays open for further provider refreshes.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderInProgress, OrderCancelled, OrderFailed},
	OrderInProgress: {OrderCompleted, OrderPartial, OrderCancelled},
	OrderPartial:    {OrderCompleted, OrderInProgress},
}

// Terminal reports whether s accepts no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// CanTransition reports whether s → next is a legal lifecycle move.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderInProgress, OrderPartial,
		OrderCompleted, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// TxStatus is the state of a payment Transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSucceeded TxStatus = "succeeded"
	TxFailed    TxStatus = "failed"
	TxRefunded  TxStatus = "refunded"
)
