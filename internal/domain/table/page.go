package table

import "github.com/alem-hub/advising-hub/internal/domain/shared"

// DefaultPageSize is used whenever a non-positive page size is supplied.
const DefaultPageSize = 10

// TotalPages returns max(1, ceil(n/pageSize)).
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// Slice returns the page window for pageNumber together with the total page
// count. An out-of-range page yields an empty window, never an error. The
// returned window shares memory with ds but has its capacity capped, so
// appending to it cannot clobber the next page.
func Slice(ds Dataset, pageNumber, pageSize int) (Dataset, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := TotalPages(len(ds), pageSize)

	if pageNumber < 1 {
		return Dataset{}, total
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(ds) {
		return Dataset{}, total
	}
	end := min(start+pageSize, len(ds))

	return ds[start:end:end], total
}

// ClampPage pulls page into [1, totalPages]. When it had to move the page it
// also returns an *shared.InvalidPageError describing the correction; the
// clamped value is valid either way.
func ClampPage(page, totalPages int) (int, error) {
	if totalPages < 1 {
		totalPages = 1
	}
	clamped := page
	switch {
	case page < 1:
		clamped = 1
	case page > totalPages:
		clamped = totalPages
	}
	if clamped != page {
		return clamped, &shared.InvalidPageError{Requested: page, TotalPages: totalPages, Clamped: clamped}
	}
	return clamped, nil
}
