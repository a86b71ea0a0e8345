package types

import (
	"encoding/json"
	"strings"
	"time"
)

type ExpenseCategory string

const (
	CategoryTransport ExpenseCategory = "transport"
	CategoryLodging   ExpenseCategory = "lodging"
	CategoryFood      ExpenseCategory = "food"
	CategoryTickets   ExpenseCategory = "tickets"
	CategoryShopping  ExpenseCategory = "shopping"
	CategoryOther     ExpenseCategory = "other"
)

var categoryAliases = map[string]ExpenseCategory{
	"transport": CategoryTransport,
	"交通":        CategoryTransport,
	"lodging":   CategoryLodging,
	"住宿":        CategoryLodging,
	"food":      CategoryFood,
	"餐饮":        CategoryFood,
	"tickets":   CategoryTickets,
	"门票":        CategoryTickets,
	"shopping":  CategoryShopping,
	"购物":        CategoryShopping,
	"other":     CategoryOther,
	"其他":        CategoryOther,
}

// ParseExpenseCategory maps canonical names and the Chinese UI labels to a
// category. Anything unrecognised is CategoryOther.
func ParseExpenseCategory(s string) ExpenseCategory {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return CategoryOther
}

// Expense is a single spending entry attached to a plan. Entries that have not
// been persisted yet carry a client placeholder ID.
type Expense struct {
	ID        string          `json:"id"`
	PlanID    string          `json:"planId"`
	Category  ExpenseCategory `json:"category"`
	Title     string          `json:"title"`
	AmountCNY float64         `json:"amountCNY"`
	Date      *string         `json:"date,omitempty"`
	CreatedAt time.Time       `json:"createdAt,omitzero"`
}

// ExpenseParams is the body of POST and PUT /expenses. Notes and ExpenseDate
// are stored as the Expense's Title and Date; the Expense field names "title"
// and "date" are accepted as well so a returned expense can be sent back as is.
type ExpenseParams struct {
	PlanID      string  `json:"planId"`
	Category    string  `json:"category"`
	AmountCNY   float64 `json:"amountCNY"`
	Notes       string  `json:"notes"`
	ExpenseDate *string `json:"expenseDate,omitempty"`
}

func (p *ExpenseParams) UnmarshalJSON(data []byte) error {
	type params ExpenseParams
	var aux struct {
		params
		Title *string `json:"title"`
		Date  *string `json:"date"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ExpenseParams(aux.params)
	if p.Notes == "" && aux.Title != nil {
		p.Notes = *aux.Title
	}
	if p.ExpenseDate == nil && aux.Date != nil {
		p.ExpenseDate = aux.Date
	}
	return nil
}

type ExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type ExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

// SyncExpensesRequest carries the full local expense list for a plan.
type SyncExpensesRequest struct {
	PlanID   string    `json:"planId"`
	Expenses []Expense `json:"expenses"`
}

type SyncExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
	Deleted  int       `json:"deleted"`
	Updated  int       `json:"updated"`
	Inserted int       `json:"inserted"`
	Failed   int       `json:"failed"`
}
