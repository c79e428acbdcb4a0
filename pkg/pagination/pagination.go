// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pagination carries page requests from the query string down to the
stores and page metadata back up to the response envelope.

Pages are 1-indexed and ordered by creation time. Every list in the club
(registrations, liked trainers, members by role) goes through [Params].
*/
package pagination

import (
	"net/http"
	"strconv"
	"strings"
)

// Query parameter names read by [FromRequest].
const (
	QueryPage  = "page"
	QueryLimit = "limit"
	QuerySort  = "sort"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Sort is the creation-time order of a list.
type Sort string

const (
	SortAsc  Sort = "asc"
	SortDesc Sort = "desc"
)

// Params is a requested page. Call [Params.Normalize] before using it.
type Params struct {
	Page  int
	Limit int
	Sort  Sort
}

// Normalize replaces out-of-range values with the defaults.
// Anything other than [SortDesc] sorts oldest first.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		p.Limit = DefaultLimit
	}
	if p.Sort != SortDesc {
		p.Sort = SortAsc
	}
	return p
}

// Offset is the number of rows skipped before the page starts.
func (p Params) Offset() int {
	return max(p.Page-1, 0) * p.Limit
}

// Descending reports whether newest items come first.
func (p Params) Descending() bool { return p.Sort == SortDesc }

// Slice cuts the page described by p out of an already ordered list.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+p.Limit, len(items))]
}

// Meta is the "meta" object of a paginated response.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is one slice of a larger ordered result.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// NewPage pairs items with the metadata for p and the full result size.
func NewPage[T any](items []T, total int, p Params) Page[T] {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}

	return Page[T]{
		Items: items,
		Meta:  Meta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages},
	}
}

// FromRequest reads page, limit and sort from the query string.
// Unparseable numbers fall back to the defaults.
func FromRequest(r *http.Request) Params {
	query := r.URL.Query()

	return Params{
		Page:  atoiOr(query.Get(QueryPage), DefaultPage),
		Limit: atoiOr(query.Get(QueryLimit), DefaultLimit),
		Sort:  Sort(strings.ToLower(query.Get(QuerySort))),
	}.Normalize()
}

func atoiOr(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
