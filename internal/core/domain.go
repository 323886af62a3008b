package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	Bank    AccountType = "bank"
	Cash    AccountType = "cash"
	EWallet AccountType = "ewallet"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	Need    ImportanceLevel = "need"
	Want    ImportanceLevel = "want"
	General ImportanceLevel = "general"
)

const (
	Monthly BudgetPeriod = "monthly"
	Weekly  BudgetPeriod = "weekly"
)

const (
	Days   ReminderUnit = "days"
	Weeks  ReminderUnit = "weeks"
	Months ReminderUnit = "months"
	Years  ReminderUnit = "years"
)

type (
	TransactionType string
	AccountType     string
	Role            string
	ImportanceLevel string
	BudgetPeriod    string
	ReminderUnit    string

	Money struct {
		Cents int64
	}

	Family struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	User struct {
		ID           string    `json:"id"`
		FamilyID     string    `json:"family_id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Account struct {
		ID             string      `json:"id"`
		FamilyID       string      `json:"family_id"`
		Name           string      `json:"name"`
		Type           AccountType `json:"type"`
		CurrentBalance Money       `json:"current_balance"`
	}

	// Category carries display metadata used by reports.
	// Type is either Income or Expense.
	Category struct {
		ID       string          `json:"id"`
		FamilyID string          `json:"family_id"`
		Name     string          `json:"name"`
		Icon     string          `json:"icon"`
		Color    string          `json:"color"`
		Type     TransactionType `json:"type"`
	}

	Transaction struct {
		ID                   string          `json:"id"`
		FamilyID             string          `json:"family_id"`
		UserID               string          `json:"user_id"`
		Type                 TransactionType `json:"type"`
		Amount               Money           `json:"amount"`
		Date                 time.Time       `json:"date"`
		CategoryID           string          `json:"category_id,omitempty"`
		Category             *Category       `json:"category,omitempty"` // expanded on reads, nil when unset or dangling
		SourceAccountID      string          `json:"source_account_id,omitempty"`
		DestinationAccountID string          `json:"destination_account_id,omitempty"`
		Note                 string          `json:"note,omitempty"`
		Beneficiary          string          `json:"beneficiary,omitempty"`
		Importance           ImportanceLevel `json:"importance_level,omitempty"`
		CreatedAt            time.Time       `json:"created_at"`
	}

	Budget struct {
		ID          string       `json:"id"`
		FamilyID    string       `json:"family_id"`
		AmountLimit Money        `json:"amount_limit"`
		Period      BudgetPeriod `json:"period"`
	}

	Reminder struct {
		ID          string       `json:"id"`
		FamilyID    string       `json:"family_id"`
		Title       string       `json:"title"`
		Amount      Money        `json:"amount"`
		NextDueDate time.Time    `json:"next_due_date"`
		IsActive    bool         `json:"is_active"`
		Frequency   int          `json:"frequency"`
		Unit        ReminderUnit `json:"unit"`
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidDate          = errors.New("invalid date")
	ErrMissingSourceAccount = errors.New("source account required")
	ErrMissingDestination   = errors.New("destination account required")
	ErrSameAccount          = errors.New("source and destination accounts must differ")
	ErrCategoryOnTransfer   = errors.New("transfers cannot have a category")
	ErrInvalidImportance    = errors.New("invalid importance level")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidFrequency     = errors.New("invalid reminder frequency")
	ErrInvalidUnit          = errors.New("invalid reminder unit")
	ErrInvalidPeriod        = errors.New("invalid budget period")
	ErrInvalidRange         = errors.New("invalid report range")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientInput    = errors.New("missing required field")
	ErrTooLong              = errors.New("value too long")
)

// IsValidationError reports whether err is one of the domain validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidType, ErrInvalidDate, ErrMissingSourceAccount,
		ErrMissingDestination, ErrSameAccount, ErrCategoryOnTransfer, ErrInvalidImportance,
		ErrEmptyName, ErrInvalidAccountType, ErrInvalidRole, ErrInvalidFrequency,
		ErrInvalidUnit, ErrInvalidPeriod, ErrInvalidRange, ErrCategoryTypeMismatch, ErrInsufficientInput, ErrTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

// withinBounds reports whether the magnitude of m fits under MaxCents.
func (m Money) withinBounds() bool {
	return m.Cents >= -MaxCents && m.Cents <= MaxCents
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (a AccountType) Valid() bool {
	switch a {
	case Bank, Cash, EWallet:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (u ReminderUnit) Valid() bool {
	switch u {
	case Days, Weeks, Months, Years:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case Expense:
		if t.SourceAccountID == "" {
			return ErrMissingSourceAccount
		}
	case Income:
		if t.DestinationAccountID == "" {
			return ErrMissingDestination
		}
	case Transfer:
		if t.SourceAccountID == "" {
			return ErrMissingSourceAccount
		}
		if t.DestinationAccountID == "" {
			return ErrMissingDestination
		}
		if t.SourceAccountID == t.DestinationAccountID {
			return ErrSameAccount
		}
		if t.CategoryID != "" {
			return ErrCategoryOnTransfer
		}
	}
	switch t.Importance {
	case "", Need, Want, General:
	default:
		return ErrInvalidImportance
	}
	if len(t.Note) > 500 {
		return fmt.Errorf("note: %w (max 500 characters)", ErrTooLong)
	}
	return nil
}

// BalanceDeltas returns the signed change each affected account receives.
func (t Transaction) BalanceDeltas() map[string]int64 {
	deltas := make(map[string]int64, 2)
	switch t.Type {
	case Expense:
		deltas[t.SourceAccountID] -= t.Amount.Cents
	case Income:
		deltas[t.DestinationAccountID] += t.Amount.Cents
	case Transfer:
		deltas[t.SourceAccountID] -= t.Amount.Cents
		deltas[t.DestinationAccountID] += t.Amount.Cents
	}
	return deltas
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	if !a.CurrentBalance.withinBounds() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Type != Income && c.Type != Expense {
		return ErrInvalidType
	}
	return nil
}

func (b Budget) Validate() error {
	if b.AmountLimit.Cents < 0 || !b.AmountLimit.withinBounds() {
		return ErrInvalidAmount
	}
	switch b.Period {
	case Monthly, Weekly:
	default:
		return ErrInvalidPeriod
	}
	return nil
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyName
	}
	if len(r.Title) > 200 {
		return fmt.Errorf("title: %w (max 200 characters)", ErrTooLong)
	}
	if r.Amount.Cents < 0 || !r.Amount.withinBounds() {
		return ErrInvalidAmount
	}
	if r.NextDueDate.IsZero() {
		return ErrInvalidDate
	}
	if r.Frequency < 1 {
		return ErrInvalidFrequency
	}
	if !r.Unit.Valid() {
		return ErrInvalidUnit
	}
	return nil
}
