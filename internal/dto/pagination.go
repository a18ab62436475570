package dto

import "math"

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes page counts for a result set.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}

	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return meta
}
