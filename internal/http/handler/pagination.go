package handler

import (
	"net/http"
	"strconv"

	"github.com/ARamos00/nursery-tracker/internal/repository"
)

// pageFromQuery reads page/page_size query parameters. Out-of-range values are
// normalized by the repository layer.
func pageFromQuery(r *http.Request) repository.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return repository.PageRequest{Page: page, PageSize: pageSize}
}

func pageView[T any](res repository.PageResult[T]) map[string]any {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		"items":       items,
		"page":        res.Page,
		"page_size":   res.PageSize,
		"total":       res.Total,
		"total_pages": res.TotalPages,
	}
}
