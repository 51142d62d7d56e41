package domain

import "time"

// ExpenseCategory classifies a driver expense.
type ExpenseCategory string

const (
	ExpenseFuel        ExpenseCategory = "FUEL"
	ExpenseMaintenance ExpenseCategory = "MAINTENANCE"
	ExpenseCarWash     ExpenseCategory = "CAR_WASH"
	ExpenseCommission  ExpenseCategory = "COMMISSION"
	ExpenseOther       ExpenseCategory = "OTHER"
)

// Valid reports whether c is one of the known categories.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseFuel, ExpenseMaintenance, ExpenseCarWash, ExpenseCommission, ExpenseOther:
		return true
	}
	return false
}

// Expense is money the driver spent.
type Expense struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Category ExpenseCategory `json:"category"`
	Amount   float64         `json:"amount"`
	Notes    string          `json:"notes,omitempty"`
}
