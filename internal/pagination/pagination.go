// Package pagination computes page windows and navigation links for list endpoints.
package pagination

import (
	"fmt"
	"strings"

	"oairag/internal/models"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Window is the clamped page a list query should read, with its response envelope.
type Window struct {
	Page   int
	Size   int
	Offset int
	Meta   models.Meta
	Links  models.Links
}

// Paginate clamps page into [1, total_pages] and builds links against baseURL.
// total_pages is never below 1, so an empty listing still has a first and last page.
// size is capped at MaxSize.
func Paginate(totalRecords, page, size int, baseURL string) Window {
	if size < 1 {
		size = DefaultSize
	}
	size = min(size, MaxSize)
	if totalRecords < 0 {
		totalRecords = 0
	}
	totalPages := (totalRecords + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	w := Window{
		Page:   page,
		Size:   size,
		Offset: (page - 1) * size,
		Meta:   models.Meta{TotalRecords: totalRecords, TotalPages: totalPages},
		Links: models.Links{
			CurrentPage: pageURL(baseURL, page, size),
			FirstPage:   pageURL(baseURL, 1, size),
			LastPage:    pageURL(baseURL, totalPages, size),
		},
	}
	if page > 1 {
		prev := pageURL(baseURL, page-1, size)
		w.Links.PrevPage = &prev
	}
	if page < totalPages {
		next := pageURL(baseURL, page+1, size)
		w.Links.NextPage = &next
	}
	return w
}

func pageURL(baseURL string, page, size int) string {
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d&size=%d", baseURL, sep, page, size)
}
