package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TxnType = "income"
	Expense TxnType = "expense"
)

const (
	Daily   BudgetPeriod = "daily"
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"
)

// MaxDescriptionLen bounds transaction descriptions; MaxNameLen bounds
// category names.
const (
	MaxDescriptionLen = 500
	MaxNameLen        = 100
)

type (
	// TxnType classifies a category or transaction as income or expense.
	TxnType string

	// BudgetPeriod labels a budget's cadence. It is descriptive metadata:
	// the start/end dates define the actual window, the period is never
	// validated against their span.
	BudgetPeriod string

	// User owns transactions and budgets. Identity comes from outside the
	// system; this record only exists so ownership and cascades are
	// enforceable.
	User struct {
		ID   string
		Name string
	}

	// Category is a named income/expense bucket, optionally nested under a
	// parent and optionally scoped to one user (nil UserID = shared).
	Category struct {
		ID        int64
		Name      string
		Type      TxnType
		ParentID  *int64
		UserID    *string
		CreatedAt time.Time
	}

	// Transaction is a single dated money movement owned by a user.
	// CategoryID is nil for uncategorized transactions and is nulled when
	// the category is deleted.
	Transaction struct {
		ID          int64
		UserID      string
		Amount      Money
		Type        TxnType
		CategoryID  *int64
		Description string
		Date        time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Budget is a user's spending cap for one category over a date range.
	// StartDate and EndDate are date-only values (midnight UTC); EndDate is
	// inclusive and must be strictly after StartDate.
	Budget struct {
		ID         int64
		UserID     string
		CategoryID int64
		Amount     Money
		Period     BudgetPeriod
		StartDate  time.Time
		EndDate    time.Time
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrFutureDate           = errors.New("date is in the future")
	ErrInvalidDateRange     = errors.New("end date must be after start date")
	ErrInvalidType          = errors.New("type must be income or expense")
	ErrInvalidPeriod        = errors.New("invalid budget period")
	ErrDuplicateBudgetScope = errors.New("budget already exists for this user, category, period and start date")
	ErrNotFound             = errors.New("not found")
	ErrCategoryCycle        = errors.New("category parent chain forms a cycle")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyUser            = errors.New("empty user id")
	ErrNameTooLong          = fmt.Errorf("name too long (max %d characters)", MaxNameLen)
	ErrDescriptionTooLong   = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLen)
	ErrZeroDate             = errors.New("date is required")
	ErrMissingDates         = errors.New("start and end dates are required")
)

// TypeMismatchError reports a category attached to a record of the wrong
// type. The message carries the category name and the offending type so the
// caller can surface it as a field error verbatim.
type TypeMismatchError struct {
	CategoryName string
	CategoryType TxnType
	GotType      TxnType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("category %q has type %s, got %s", e.CategoryName, e.CategoryType, e.GotType)
}

func (t TxnType) Valid() bool {
	return t == Income || t == Expense
}

func (p BudgetPeriod) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLen {
		return ErrNameTooLong
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Validate checks the transaction against the injected clock. A date equal
// to now is accepted; only strictly-future dates are rejected.
func (t Transaction) Validate(now time.Time) error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.Date.After(now) {
		return ErrFutureDate
	}
	if len(t.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// CheckCategory enforces the category/type invariant for a transaction that
// references cat.
func (t Transaction) CheckCategory(cat Category) error {
	if cat.Type != t.Type {
		return &TypeMismatchError{CategoryName: cat.Name, CategoryType: cat.Type, GotType: t.Type}
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrMissingDates
	}
	if !b.EndDate.After(b.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// CheckCategory enforces that budgets cap spending only: the referenced
// category must be an expense category.
func (b Budget) CheckCategory(cat Category) error {
	if cat.Type != Expense {
		return &TypeMismatchError{CategoryName: cat.Name, CategoryType: cat.Type, GotType: Expense}
	}
	return nil
}

// DateOnly truncates t to midnight UTC. Budget windows and the dashboard's
// "today" are compared at day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
