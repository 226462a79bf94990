package utils

// PageRequest запрошенная страница списка, нумерация с 1
type PageRequest struct {
	Number int
	Size   int
}

const defaultPageSize = 10

// NewPageRequest приводит номер к 1, а размер к значению по умолчанию, если они не заданы
func NewPageRequest(number, size int) PageRequest {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	return PageRequest{Number: number, Size: size}
}

func (p PageRequest) Offset() int { return (p.Number - 1) * p.Size }

func (p PageRequest) Limit() int { return p.Size }

// PageInfo сведения о странице в ответе API
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Page страница элементов. Items не бывает null в JSON
type Page[T any] struct {
	Items      []T      `json:"items"`
	Pagination PageInfo `json:"pagination"`
}

// NewPage собирает страницу из выборки и общего числа элементов
func NewPage[T any](req PageRequest, items []T, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(req.Size) - 1) / int64(req.Size))
	return Page[T]{
		Items: items,
		Pagination: PageInfo{
			Page:       req.Number,
			PageSize:   req.Size,
			TotalItems: total,
			TotalPages: pages,
			HasNext:    req.Number < pages,
			HasPrev:    req.Number > 1,
		},
	}
}
