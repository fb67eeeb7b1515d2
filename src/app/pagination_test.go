package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		name        string
		page, limit string
		want        PageRequest
	}{
		{"defaults", "", "", PageRequest{Page: 1, Limit: 10}},
		{"explicit", "3", "25", PageRequest{Page: 3, Limit: 25}},
		{"garbage", "abc", "xyz", PageRequest{Page: 1, Limit: 10}},
		{"zero", "0", "0", PageRequest{Page: 1, Limit: 10}},
		{"negative", "-2", "-5", PageRequest{Page: 1, Limit: 10}},
		{"clamped", "2", "1000", PageRequest{Page: 2, Limit: MaxLimit}},
		{"padded", " 2 ", " 5 ", PageRequest{Page: 2, Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePageRequest(tt.page, tt.limit))
		})
	}
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	count := func(context.Context) (int64, error) { return int64(len(items)), nil }
	fetch := func(_ context.Context, skip, limit int64) ([]int, error) {
		if skip >= int64(len(items)) {
			return nil, nil
		}
		end := skip + limit
		if end > int64(len(items)) {
			end = int64(len(items))
		}
		return items[skip:end], nil
	}

	t.Run("last partial page", func(t *testing.T) {
		page, err := Paginate(ctx, PageRequest{Page: 3, Limit: 10}, count, fetch)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Page)
		assert.EqualValues(t, 25, page.TotalItems)
		assert.EqualValues(t, 3, page.TotalPages)
		assert.Equal(t, []int{20, 21, 22, 23, 24}, page.Items)
	})

	t.Run("past the end", func(t *testing.T) {
		page, err := Paginate(ctx, PageRequest{Page: 9, Limit: 10}, count, fetch)
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.EqualValues(t, 3, page.TotalPages)
	})

	t.Run("empty collection", func(t *testing.T) {
		page, err := Paginate(ctx, PageRequest{Page: 1, Limit: 10},
			func(context.Context) (int64, error) { return 0, nil }, fetch)
		require.NoError(t, err)
		assert.EqualValues(t, 0, page.TotalPages)
	})

	t.Run("count failure", func(t *testing.T) {
		_, err := Paginate(ctx, PageRequest{Page: 1, Limit: 10},
			func(context.Context) (int64, error) { return 0, errors.New("down") }, fetch)
		assert.Error(t, err)
	})

	t.Run("skip", func(t *testing.T) {
		assert.EqualValues(t, 40, PageRequest{Page: 5, Limit: 10}.Skip())
	})
}
