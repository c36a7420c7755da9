package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderPending, OrderProcessing, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderInProgress, false},
		{OrderPending, OrderCompleted, false},
		{OrderProcessing, OrderInProgress, true},
		{OrderProcessing, OrderCancelled, true},
		{OrderProcessing, OrderFailed, true},
		{OrderProcessing, OrderCompleted, false},
		{OrderInProgress, OrderCompleted, true},
		{OrderInProgress, OrderPartial, true},
		{OrderInProgress, OrderCancelled, true},
		{OrderInProgress, OrderPending, false},
		{OrderPartial, OrderCompleted, true},
		{OrderPartial, OrderInProgress, true},
		{OrderPartial, OrderCancelled, false},
		{OrderCompleted, OrderInProgress, false},
		{OrderCancelled, OrderProcessing, false},
		{OrderFailed, OrderProcessing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderCompleted, OrderCancelled, OrderFailed}
	open := []OrderStatus{OrderPending, OrderProcessing, OrderInProgress, OrderPartial}

	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s", s)
		assert.Empty(t, orderTransitions[s], "%s must have no outgoing transitions", s)
	}
	for _, s := range open {
		assert.False(t, s.Terminal(), "%s", s)
	}
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderPartial.Valid())
	assert.False(t, OrderStatus("refunded").Valid())
	assert.False(t, OrderStatus("").Valid())
}
