package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDate(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCommittedOn(t *testing.T) {
	holds := []Hold{
		{Qty: 6, Start: mustDate("2025-05-10"), End: mustDate("2025-05-12")},
		{Qty: 3, Start: mustDate("2025-05-11"), End: mustDate("2025-05-13")},
	}

	tests := []struct {
		day  string
		want int
	}{
		{"2025-05-09", 0},
		{"2025-05-10", 6},
		{"2025-05-11", 9}, // both holds overlap here
		{"2025-05-12", 3}, // first hold released (end exclusive)
		{"2025-05-13", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, committedOn(holds, mustDate(tt.day)), "day %s", tt.day)
	}
}

func TestCommittedOn_NoHolds(t *testing.T) {
	assert.Equal(t, 0, committedOn(nil, mustDate("2025-05-10")))
}

func TestHoldingStatusList(t *testing.T) {
	assert.Equal(t, []string{"draft", "confirmed"}, holdingStatusList())
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: StatusCanceled, Attempted: StatusCompleted}
	assert.Equal(t, "cannot transition order from canceled to completed", err.Error())

	already := &InvalidTransitionError{From: StatusCompleted, Attempted: StatusCompleted}
	assert.Equal(t, "order is already completed", already.Error())
}

func TestValidationError_Message(t *testing.T) {
	dated := &ValidationError{Conflict: Conflict{
		ProductName: "Chair", Date: mustDate("2025-05-11"), Available: 4, Requested: 5,
	}}
	assert.Equal(t, `insufficient stock for "Chair" on 2025-05-11: available 4, requested 5`, dated.Error())

	undated := &ValidationError{Conflict: Conflict{
		ProductName: "Cup", Available: 20, Requested: 30,
	}}
	assert.Equal(t, `insufficient stock for "Cup": available 20, requested 30`, undated.Error())
}
