package pagination

import (
	"errors"
	"strconv"

	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
)

const (
	pageIndexQueryParamName = "pageIndex"
	pageSizeQueryParamName  = "pageSize"

	defaultPageSize = 10
	maxPageSize     = 100
)

var (
	PageIndexQueryParam = router.QueryParam{Name: pageIndexQueryParamName, Required: false}
	PageSizeQueryParam  = router.QueryParam{Name: pageSizeQueryParamName, Required: false}
)

// ApiPaginationParams selects the zero based page PageIndex of PageSize items.
type ApiPaginationParams struct {
	PageIndex int
	PageSize  int
}

func (p ApiPaginationParams) Validate() error {
	if p.PageIndex < 0 {
		return exceptions.NewBadRequestException(errors.New("invalid pageIndex parameter. Must be 0 or greater"))
	}

	if p.PageSize < 1 {
		return exceptions.NewBadRequestException(errors.New("invalid pageSize parameter. Must be 1 or greater"))
	}

	if p.PageSize > maxPageSize {
		return exceptions.NewBadRequestException(errors.New("invalid pageSize parameter. Must be 100 or smaller"))
	}

	return nil
}

func NewApiPaginationParams(p router.RouteParams) (result ApiPaginationParams, err error) {
	result.PageSize = defaultPageSize

	if pageIndex, ok := p.Params[pageIndexQueryParamName]; ok {
		result.PageIndex, err = strconv.Atoi(pageIndex)
		if err != nil {
			err = exceptions.NewBadRequestException(err)
			return
		}
	}

	if pageSize, ok := p.Params[pageSizeQueryParamName]; ok {
		result.PageSize, err = strconv.Atoi(pageSize)
		if err != nil {
			err = exceptions.NewBadRequestException(err)
			return
		}
	}

	err = result.Validate()

	return
}
