package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseParams_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantNotes string
		wantDate  *string
	}{
		{"store names", `{"notes":"地铁","expenseDate":"2025-05-01"}`, "地铁", strPtr("2025-05-01")},
		{"expense names", `{"title":"地铁","date":"2025-05-01"}`, "地铁", strPtr("2025-05-01")},
		{"store names win", `{"notes":"地铁","title":"公交","expenseDate":"2025-05-01","date":"2025-05-02"}`, "地铁", strPtr("2025-05-01")},
		{"neither", `{"amountCNY":3}`, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p ExpenseParams
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.wantNotes, p.Notes)
			assert.Equal(t, tt.wantDate, p.ExpenseDate)
		})
	}

	var p ExpenseParams
	require.NoError(t, json.Unmarshal([]byte(`{"planId":"p1","category":"food","amountCNY":12.5}`), &p))
	assert.Equal(t, ExpenseParams{PlanID: "p1", Category: "food", AmountCNY: 12.5}, p)
}

func TestParseExpenseCategory(t *testing.T) {
	assert.Equal(t, CategoryTransport, ParseExpenseCategory(" 交通 "))
	assert.Equal(t, CategoryFood, ParseExpenseCategory("FOOD"))
	assert.Equal(t, CategoryOther, ParseExpenseCategory("飞船"))
}

func strPtr(s string) *string { return &s }
