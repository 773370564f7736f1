package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income     TransactionType = "INCOME"
	Expense    TransactionType = "EXPENSE"
	Investment TransactionType = "INVESTMENT"
)

const (
	GoalMonthly GoalType = "MONTHLY"
	GoalWeekly  GoalType = "WEEKLY"
	GoalCustom  GoalType = "CUSTOM"
)

const (
	MarginAuto   MarginMode = "AUTO"
	MarginManual MarginMode = "MANUAL"
)

// DefaultCategory labels expenses recorded without a category.
const DefaultCategory = "Outros"

const (
	maxDescriptionLen = 200
	maxCategoryLen    = 60
)

// ExpenseCategories is the list offered when recording an expense.
var ExpenseCategories = []string{
	"Alimentação",
	"Gasolina",
	"Transporte",
	"Material",
	DefaultCategory,
}

type (
	TransactionType string
	GoalType        string
	MarginMode      string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category,omitempty"`
		Description string          `json:"description,omitempty"`
	}

	// TransactionInput is a transaction that has not been assigned an id yet.
	TransactionInput struct {
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category,omitempty"`
		Description string          `json:"description,omitempty"`
	}

	Goal struct {
		ID                string           `json:"id"`
		Type              GoalType         `json:"type"`
		TargetValue       decimal.Decimal  `json:"targetValue"`
		WorkDays          int              `json:"workDays"`
		SelectedWeekDays  []int            `json:"selectedWeekDays"`
		CustomTotalDays   int              `json:"customTotalDays,omitempty"`
		StartDate         Date             `json:"startDate"`
		EndDate           Date             `json:"endDate"`
		IsActive          bool             `json:"isActive"`
		MarginMode        MarginMode       `json:"marginMode"`
		ManualMarginValue *decimal.Decimal `json:"manualMarginValue,omitempty"`
	}

	// PaidUser is an account provisioned by a payment provider event.
	PaidUser struct {
		ID            string    `json:"id"`
		Email         string    `json:"email"`
		Name          string    `json:"name"`
		Active        bool      `json:"active"`
		Plan          string    `json:"plan"`
		OrderID       string    `json:"orderId"`
		ProductName   string    `json:"productName"`
		PasswordHash  string    `json:"-"`
		RegisteredAt  time.Time `json:"registeredAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
		LastPaymentAt time.Time `json:"lastPaymentAt"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrCategoryTooLong    = errors.New("category too long (max 60 characters)")
	ErrEmptyID            = errors.New("empty id")
	ErrUserNotFound       = errors.New("user not found")
)

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Investment:
		return true
	}
	return false
}

func (g GoalType) Valid() bool {
	switch g {
	case GoalMonthly, GoalWeekly, GoalCustom:
		return true
	}
	return false
}

func (m MarginMode) Valid() bool {
	return m == MarginAuto || m == MarginManual
}

func (in TransactionInput) Validate() error {
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if in.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if len([]rune(in.Description)) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if len([]rune(in.Category)) > maxCategoryLen {
		return ErrCategoryTooLong
	}
	return nil
}

// Normalize trims free text and drops the category on non-expense entries.
func (in TransactionInput) Normalize() TransactionInput {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Type != Expense {
		in.Category = ""
	}
	return in
}

// WithID turns the input into a stored transaction.
func (in TransactionInput) WithID(id string) Transaction {
	return Transaction{
		ID:          id,
		Date:        in.Date,
		Amount:      in.Amount,
		Type:        in.Type,
		Category:    in.Category,
		Description: in.Description,
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	return TransactionInput{
		Date:        t.Date,
		Amount:      t.Amount,
		Type:        t.Type,
		Category:    t.Category,
		Description: t.Description,
	}.Validate()
}

// CategoryOrDefault returns the expense category, falling back to DefaultCategory.
func (t Transaction) CategoryOrDefault() string {
	if strings.TrimSpace(t.Category) == "" {
		return DefaultCategory
	}
	return t.Category
}
