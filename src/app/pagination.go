package app

import (
	"context"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Page  int
	Limit int
}

// Page is one slice of a collection plus the totals needed to walk it.
type Page[T any] struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	Items      []T   `json:"items"`
}

// ParsePageRequest coerces raw query values. Anything unparsable falls back
// to the defaults; page is at least 1 and limit lies in [1, MaxLimit].
func ParsePageRequest(rawPage, rawLimit string) PageRequest {
	req := PageRequest{Page: DefaultPage, Limit: DefaultLimit}
	if page, err := strconv.Atoi(strings.TrimSpace(rawPage)); err == nil && page >= 1 {
		req.Page = page
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(rawLimit)); err == nil && limit >= 1 {
		req.Limit = limit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return req
}

func (p PageRequest) Skip() int64 {
	return int64(p.Page-1) * int64(p.Limit)
}

// Paginate counts the whole collection and fetches the requested window.
func Paginate[T any](
	ctx context.Context,
	req PageRequest,
	count func(ctx context.Context) (int64, error),
	fetch func(ctx context.Context, skip, limit int64) ([]T, error),
) (*Page[T], error) {
	if req.Page < 1 {
		req.Page = DefaultPage
	}
	if req.Limit < 1 {
		req.Limit = DefaultLimit
	}
	total, err := count(ctx)
	if err != nil {
		return nil, err
	}
	items, err := fetch(ctx, req.Skip(), int64(req.Limit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	limit := int64(req.Limit)
	return &Page[T]{
		Page:       req.Page,
		Limit:      req.Limit,
		TotalItems: total,
		TotalPages: (total + limit - 1) / limit,
		Items:      items,
	}, nil
}
