package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams reads ?page and ?limit (or the DRF-style ?page_size).
// Out-of-range values fall back to the first page of DefaultPageSize.
func GetPaginationParams(c echo.Context) PaginationParams {
	page := queryInt(c, "page")
	if page <= 0 {
		page = 1
	}

	pageSize := queryInt(c, "limit")
	if pageSize == 0 {
		pageSize = queryInt(c, "page_size")
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}

func queryInt(c echo.Context, name string) int {
	value, _ := strconv.Atoi(c.QueryParam(name))
	return value
}

// Paginate returns the window of items selected by p.
func Paginate[T any](items []T, p PaginationParams) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}
