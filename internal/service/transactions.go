package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/smmops/internal/domain"
	"github.com/punchamoorthee/smmops/internal/store"
)

// Transactions is the payment ledger. It never links itself to orders;
// callers carry the association explicitly.
type Transactions struct {
	store    store.Store
	notifier *Notifier
}

func NewTransactions(s store.Store, n *Notifier) *Transactions {
	return &Transactions{store: s, notifier: n}
}

// TransactionInput is the payload for recording a payment intent.
type TransactionInput struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Record persists a pending transaction. Fees come from the selected payment
// method's schedule; net amount is computed at settlement.
func (t *Transactions) Record(ctx context.Context, in TransactionInput) (*domain.Transaction, error) {
	if in.CustomerID == uuid.Nil {
		return nil, domain.Validationf("customer_id", "required")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.Validationf("amount", "must be positive")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	fees := decimal.Zero
	methodName := ""
	if in.PaymentMethodID != nil {
		method, err := t.store.GetPaymentMethod(ctx, *in.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if !method.IsActive {
			return nil, domain.Validationf("payment_method_id", "payment method is inactive")
		}
		fees = in.Amount.Mul(method.FeesPercentage).Round(2)
		methodName = method.Name
	}

	now := time.Now()
	tx := &domain.Transaction{
		ID:            uuid.New(),
		CustomerID:    in.CustomerID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        domain.TxPending,
		PaymentMethod: methodName,
		Description:   in.Description,
		Fees:          fees,
		Metadata:      in.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

// MarkSucceeded settles a pending transaction, computing
// netAmount = amount - fees. Idempotent per gateway reference: duplicate
// webhook deliveries return the original result without double-crediting.
func (t *Transactions) MarkSucceeded(ctx context.Context, id uuid.UUID, gatewayRef string) (*domain.Transaction, error) {
	if gatewayRef == "" {
		return nil, domain.Validationf("gateway_ref", "required")
	}

	tx, replayed, err := t.store.MarkTransactionSucceeded(ctx, id, gatewayRef, time.Now())
	if err != nil {
		return nil, err
	}
	if !replayed {
		t.notifier.Notify(ctx, tx.CustomerID, "Payment received",
			fmt.Sprintf("Payment of %s %s was received.", tx.Amount, tx.Currency), "payment")
	}
	return tx, nil
}

// MarkFailed is terminal for a pending transaction.
func (t *Transactions) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.Transaction, error) {
	tx, err := t.store.MarkTransactionFailed(ctx, id, reason, time.Now())
	if err != nil {
		return nil, err
	}
	t.notifier.Notify(ctx, tx.CustomerID, "Payment failed",
		fmt.Sprintf("Payment of %s %s failed: %s", tx.Amount, tx.Currency, reason), "error")
	return tx, nil
}

func (t *Transactions) List(ctx context.Context) ([]domain.Transaction, error) {
	return t.store.ListTransactions(ctx)
}

func (t *Transactions) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return t.store.GetTransaction(ctx, id)
}

// ListPaymentMethods returns the public payment-method listing.
func (t *Transactions) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return t.store.ListPaymentMethods(ctx, true)
}
