package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestIsExpired(t *testing.T) {
	window := 600 * time.Second

	tests := []struct {
		name     string
		idle     time.Duration
		expected bool
	}{
		{name: "well past window", idle: 1200 * time.Second, expected: true},
		{name: "exactly at window", idle: window, expected: true},
		{name: "just inside window", idle: window - time.Nanosecond, expected: false},
		{name: "recently active", idle: 100 * time.Second, expected: false},
		{name: "activity after now", idle: -time.Second, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.IsExpired(t0.Add(tt.idle), t0, window))
		})
	}
}

func TestCartMergeOverwritesByKey(t *testing.T) {
	c := domain.NewCart(1, t0)
	c.Merge(map[int64]domain.Item{
		1: {ID: 1, Description: "X", Quantity: 1},
		2: {ID: 2, Description: "Y", Quantity: 3},
	}, t0.Add(time.Second))
	c.Merge(map[int64]domain.Item{
		1: {ID: 1, Description: "X", Quantity: 5},
	}, t0.Add(2*time.Second))

	want := map[int64]domain.Item{
		1: {ID: 1, Description: "X", Quantity: 5},
		2: {ID: 2, Description: "Y", Quantity: 3},
	}
	if diff := cmp.Diff(want, c.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, t0.Add(2*time.Second), c.LastActivity)
}

func TestCartMergeEmptyRefreshesActivity(t *testing.T) {
	c := domain.NewCart(1, t0)
	c.Merge(nil, t0.Add(time.Minute))

	assert.Empty(t, c.Items)
	assert.Equal(t, t0.Add(time.Minute), c.LastActivity)
}

func TestCartSnapshotIsIndependent(t *testing.T) {
	c := domain.NewCart(7, t0)
	c.Merge(map[int64]domain.Item{1: {ID: 1, Description: "X", Quantity: 1}}, t0)

	snap := c.Snapshot()
	snap.Items[2] = domain.Item{ID: 2}
	snap.Items[1] = domain.Item{ID: 1, Quantity: 99}

	assert.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[1].Quantity)
}

func TestValidateItems(t *testing.T) {
	require.NoError(t, domain.ValidateItems(map[int64]domain.Item{1: {ID: 1, Quantity: 0}}))

	err := domain.ValidateItems(map[int64]domain.Item{3: {ID: 3, Quantity: -1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))
}

func TestCartNotFoundError(t *testing.T) {
	var err error = domain.NewCartNotFoundError(42)

	assert.Equal(t, "Cart with given id: 42 was not found", err.Error())
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	var nf *domain.CartNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(42), nf.CartID)
	assert.Equal(t, "CART_NOT_FOUND", nf.Code())
}

func TestSteppingClock(t *testing.T) {
	clk := domain.NewSteppingClock(t0, time.Millisecond)

	first := clk.Now()
	second := clk.Now()
	assert.True(t, second.After(first))

	clk.Set(t0)
	clk.Advance(time.Hour)
	assert.Equal(t, t0.Add(time.Hour), clk.Now())
}
