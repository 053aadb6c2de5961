// Package payment reconciles due and paid amounts into a balance and a
// status. Sales, purchases and expenses all carry a State and change it only
// through Initial, Apply and Revise.
package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/money"
)

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
	StatusRefunded      Status = "REFUNDED"
	StatusOverdue       Status = "OVERDUE"
)

var (
	ErrInvalidAmounts    = errors.New("invalid amounts")
	ErrAlreadySettled    = errors.New("already settled")
	ErrOverpayment       = errors.New("payment exceeds remaining balance")
	ErrNonPositiveAmount = errors.New("payment amount must be greater than zero")
)

// Terminal statuses are set by an administrator and never re-derived.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Open reports whether the entity still accepts payments.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusPartiallyPaid || s == StatusOverdue
}

func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")))
	switch status {
	case StatusPending, StatusPartiallyPaid, StatusCompleted, StatusCancelled, StatusRefunded, StatusOverdue:
		return status, true
	}
	return "", false
}

type State struct {
	AmountDue        decimal.Decimal `json:"amountDue" db:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amountPaid" db:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remainingBalance" db:"remaining_balance"`
	ChangeAmount     decimal.Decimal `json:"changeAmount" db:"change_amount"`
	Status           Status          `json:"status" db:"status"`
}

func DeriveStatus(amountDue decimal.Decimal, amountPaid decimal.Decimal, dueDate *time.Time, now time.Time) Status {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return StatusCompleted
	case amountPaid.IsPositive():
		return StatusPartiallyPaid
	case dueDate != nil && now.After(*dueDate):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// Initial builds the state of a new entity. tendered is the cash handed over
// at the counter; zero means it equals amountPaid. Change is only given when
// the entity is settled in full on the spot.
func Initial(amountDue, amountPaid, tendered decimal.Decimal, dueDate *time.Time, now time.Time) (State, error) {
	if err := checkAmounts(amountDue, amountPaid); err != nil {
		return State{}, err
	}
	if tendered.IsZero() {
		tendered = amountPaid
	}
	if !money.HasCents(tendered) || tendered.LessThan(amountPaid) {
		return State{}, fmt.Errorf("%w: tendered %s is less than amount paid %s", ErrInvalidAmounts, tendered, amountPaid)
	}
	change := decimal.Zero
	if tendered.GreaterThan(amountPaid) {
		if !amountPaid.Equal(amountDue) {
			return State{}, fmt.Errorf("%w: change is only given when the full amount is paid", ErrInvalidAmounts)
		}
		change = tendered.Sub(amountPaid)
	}

	return State{
		AmountDue:        amountDue,
		AmountPaid:       amountPaid,
		RemainingBalance: amountDue.Sub(amountPaid),
		ChangeAmount:     change,
		Status:           DeriveStatus(amountDue, amountPaid, dueDate, now),
	}, nil
}

// Apply records an incremental payment. On error current is returned as is.
func Apply(current State, increment decimal.Decimal, dueDate *time.Time, now time.Time) (State, error) {
	if current.Status.Terminal() || current.Status == StatusCompleted || current.AmountPaid.GreaterThanOrEqual(current.AmountDue) {
		return current, fmt.Errorf("%w: status is %s", ErrAlreadySettled, current.Status)
	}
	if !increment.IsPositive() {
		return current, ErrNonPositiveAmount
	}
	if !money.HasCents(increment) {
		return current, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmounts, increment, money.Scale)
	}
	remaining := current.AmountDue.Sub(current.AmountPaid)
	if increment.GreaterThan(remaining) {
		return current, fmt.Errorf("%w: %s exceeds remaining balance %s", ErrOverpayment, increment, remaining)
	}

	paid := current.AmountPaid.Add(increment)
	return State{
		AmountDue:        current.AmountDue,
		AmountPaid:       paid,
		RemainingBalance: current.AmountDue.Sub(paid),
		ChangeAmount:     decimal.Zero,
		Status:           DeriveStatus(current.AmountDue, paid, dueDate, now),
	}, nil
}

// Revise replaces both amounts during an administrative edit. Terminal
// statuses are kept.
func Revise(current State, amountDue, amountPaid decimal.Decimal, dueDate *time.Time, now time.Time) (State, error) {
	if err := checkAmounts(amountDue, amountPaid); err != nil {
		return current, err
	}
	next := State{
		AmountDue:        amountDue,
		AmountPaid:       amountPaid,
		RemainingBalance: amountDue.Sub(amountPaid),
		ChangeAmount:     decimal.Zero,
		Status:           DeriveStatus(amountDue, amountPaid, dueDate, now),
	}
	if current.Status.Terminal() {
		next.Status = current.Status
	}
	return next, nil
}

// Reconcile re-derives the status of a stored state, e.g. when a due date
// passes. Terminal statuses are kept.
func Reconcile(current State, dueDate *time.Time, now time.Time) State {
	if current.Status.Terminal() {
		return current
	}
	current.RemainingBalance = money.Max0(current.AmountDue.Sub(current.AmountPaid))
	current.Status = DeriveStatus(current.AmountDue, current.AmountPaid, dueDate, now)
	return current
}

func checkAmounts(amountDue, amountPaid decimal.Decimal) error {
	if !amountDue.IsPositive() {
		return fmt.Errorf("%w: amount due must be greater than zero", ErrInvalidAmounts)
	}
	if amountPaid.IsNegative() {
		return fmt.Errorf("%w: amount paid cannot be negative", ErrInvalidAmounts)
	}
	if !money.HasCents(amountDue) || !money.HasCents(amountPaid) {
		return fmt.Errorf("%w: amounts have more than %d decimal places", ErrInvalidAmounts, money.Scale)
	}
	if amountPaid.GreaterThan(amountDue) {
		return fmt.Errorf("%w: amount paid %s exceeds amount due %s", ErrInvalidAmounts, amountPaid, amountDue)
	}
	return nil
}
