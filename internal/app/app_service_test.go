package app

import (
	"testing"

	"rental-manager/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftFromRequest(t *testing.T) {
	price := decimal.RequireFromString("12.50")
	req := OrderRequest{
		CustomerID: 7,
		EventDate:  "2025-05-10",
		StartDate:  "2025-05-10",
		EndDate:    "2025-05-12",
		Address:    "Av. Central 100",
		Lines: []OrderLineRequest{
			{ProductID: 1, Qty: 4},
			{ProductID: 2, Qty: 1, UnitPrice: &price},
		},
	}

	draft, err := draftFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(7), draft.CustomerID)
	require.NotNil(t, draft.StartDate)
	require.NotNil(t, draft.EndDate)
	assert.Equal(t, "2025-05-10", draft.StartDate.Format("2006-01-02"))
	require.Len(t, draft.Lines, 2)
	assert.Nil(t, draft.Lines[0].UnitPrice)
	assert.True(t, draft.Lines[1].UnitPrice.Equal(price))
}

func TestDraftFromRequest_BadDates(t *testing.T) {
	var constraint *core.ConstraintViolation

	_, err := draftFromRequest(OrderRequest{CustomerID: 1})
	require.ErrorAs(t, err, &constraint)
	assert.Equal(t, "event_date", constraint.Field)

	_, err = draftFromRequest(OrderRequest{CustomerID: 1, EventDate: "10/05/2025"})
	require.ErrorAs(t, err, &constraint)
	assert.Equal(t, "event_date", constraint.Field)

	_, err = draftFromRequest(OrderRequest{CustomerID: 1, EventDate: "2025-05-10", StartDate: "not-a-date"})
	require.ErrorAs(t, err, &constraint)
	assert.Equal(t, "start_date", constraint.Field)
}

func TestParsePeriod(t *testing.T) {
	from, to, err := parsePeriod(PeriodRequest{From: "2025-05-01", To: "2025-05-31"})
	require.NoError(t, err)
	assert.True(t, to.After(from))

	var constraint *core.ConstraintViolation
	_, _, err = parsePeriod(PeriodRequest{From: "2025-05-31", To: "2025-05-01"})
	require.ErrorAs(t, err, &constraint)

	_, _, err = parsePeriod(PeriodRequest{From: "2025-05-01"})
	require.ErrorAs(t, err, &constraint)
	assert.Equal(t, "to", constraint.Field)
}
