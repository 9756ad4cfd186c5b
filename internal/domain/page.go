package domain

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page номер страницы (с 1) и её размер
type Page struct {
	Number int
	Size   int
}

// Normalize подставляет значения по умолчанию
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pagination метаданные страницы в ответе
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

func NewPagination(p Page, total int64) Pagination {
	p = p.Normalize()
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return Pagination{
		CurrentPage:  p.Number,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: p.Size,
		HasNextPage:  p.Number < pages,
		HasPrevPage:  p.Number > 1,
	}
}

// Paged страница результатов
type Paged[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
