package pagination

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	NextPage     *int `json:"nextPage"`
	PreviousPage *int `json:"previousPage"`
	Total        int  `json:"total"`
}

type PaginatedResponse[T any] struct {
	Results    []T        `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// NewPaginatedResponse slices data to the requested page. A page past the
// end has no results rather than failing.
func NewPaginatedResponse[T any](data []T, params ApiPaginationParams) PaginatedResponse[T] {
	results := make([]T, 0)
	p := Pagination{CurrentPage: params.PageIndex, Total: len(data)}

	if params.PageIndex > 0 {
		previous := params.PageIndex - 1
		p.PreviousPage = &previous
	}

	if params.PageSize <= 0 || params.PageIndex < 0 || params.PageIndex > len(data)/params.PageSize {
		return PaginatedResponse[T]{Results: results, Pagination: p}
	}

	start := params.PageIndex * params.PageSize
	end := start + params.PageSize
	if end > len(data) {
		end = len(data)
	}

	if start < end {
		results = append(results, data[start:end]...)
	}

	if end < len(data) {
		next := params.PageIndex + 1
		p.NextPage = &next
	}

	return PaginatedResponse[T]{Results: results, Pagination: p}
}
