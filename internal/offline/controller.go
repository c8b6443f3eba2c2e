package offline

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/egfanboy/mediapire-offline/pkg/types"
	"github.com/egfanboy/mediapire-offline/pkg/types/pagination"
	"github.com/rs/zerolog/log"
)

const (
	basePath   = "/offline"
	tracksPath = basePath + "/tracks"

	pathParamId     = "id"
	queryParamKind  = "kind"
	queryParamTerm  = "term"
	queryParamLimit = "limit"
	queryParamIndex = "pageIndex"
	queryParamSize  = "pageSize"

	defaultSearchLimit = 10
	defaultPageSize    = 10
)

var trackPath = fmt.Sprintf("%s/{%s}", tracksPath, pathParamId)

type offlineController struct {
	builders []func() router.RouteBuilder
	// resolved per request so that configuration is loaded before the
	// service is built
	service func() OfflineApi
}

func (c offlineController) GetApis() (routes []router.RouteBuilder) {
	for _, b := range c.builders {
		routes = append(routes, b())
	}

	return
}

func intQueryParam(p router.RouteParams, name string, fallback int) (int, error) {
	raw, ok := p.Params[name]
	if !ok || raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, exceptions.NewBadRequestException(fmt.Errorf("invalid %s parameter %q", name, raw))
	}

	return v, nil
}

func (c offlineController) SaveTrack() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodPost).
		SetPath(trackPath).
		SetReturnCode(http.StatusNoContent).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			var body types.SaveTrackRequest
			err := p.PopulateBody(&body)
			if err != nil {
				return nil, exceptions.NewBadRequestException(err)
			}

			return nil, toApiError(c.service().Save(request.Context(), p.Params[pathParamId], body))
		})
}

func (c offlineController) GetTrack() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(trackPath).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			track, err := c.service().Get(request.Context(), p.Params[pathParamId])
			if err != nil {
				return nil, toApiError(err)
			}

			return track, nil
		})
}

func (c offlineController) RemoveTrack() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodDelete).
		SetPath(trackPath).
		SetReturnCode(http.StatusNoContent).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return nil, toApiError(c.service().Remove(request.Context(), p.Params[pathParamId]))
		})
}

func (c offlineController) HasTrack() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(trackPath + "/exists").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			exists, err := c.service().Has(request.Context(), p.Params[pathParamId])
			if err != nil {
				return nil, toApiError(err)
			}

			return types.ExistsResponse{Exists: exists}, nil
		})
}

func (c offlineController) GetFilePath() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(trackPath + "/path").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			path, err := c.service().GetFilePath(request.Context(), p.Params[pathParamId])
			if err != nil {
				return nil, toApiError(err)
			}

			return types.FilePath{Path: path}, nil
		})
}

func (c offlineController) GetThumbnail() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(trackPath + "/thumbnail").
		SetDataType(router.DataTypeFile).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			b, err := c.service().GetThumbnail(request.Context(), p.Params[pathParamId])
			if err != nil {
				return nil, toApiError(err)
			}

			return b, nil
		})
}

func (c offlineController) GetCount() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/count").
		SetReturnCode(http.StatusOK).
		AddQueryParam(router.QueryParam{Name: queryParamKind, Required: true}).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			count, err := c.service().GetCount(request.Context(), p.Params[queryParamKind])
			if err != nil {
				return nil, toApiError(err)
			}

			return types.CountResponse{Count: count}, nil
		})
}

func (c offlineController) ClearAll() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodDelete).
		SetPath(basePath).
		SetReturnCode(http.StatusNoContent).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return nil, toApiError(c.service().ClearAll(request.Context()))
		})
}

func (c offlineController) GetPage() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/page").
		SetReturnCode(http.StatusOK).
		AddQueryParam(router.QueryParam{Name: queryParamKind, Required: true}).
		AddQueryParam(router.QueryParam{Name: queryParamIndex, Required: false}).
		AddQueryParam(router.QueryParam{Name: queryParamSize, Required: false}).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			pageIndex, err := intQueryParam(p, queryParamIndex, 0)
			if err != nil {
				return nil, err
			}

			pageSize, err := intQueryParam(p, queryParamSize, defaultPageSize)
			if err != nil {
				return nil, err
			}

			page, err := c.service().GetPage(request.Context(), p.Params[queryParamKind], pageIndex, pageSize)
			if err != nil {
				return nil, toApiError(err)
			}

			return page, nil
		})
}

func (c offlineController) Search() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/search").
		SetReturnCode(http.StatusOK).
		AddQueryParam(router.QueryParam{Name: queryParamTerm, Required: true}).
		AddQueryParam(router.QueryParam{Name: queryParamLimit, Required: false}).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			limit, err := intQueryParam(p, queryParamLimit, defaultSearchLimit)
			if err != nil {
				return nil, err
			}

			results, err := c.service().Search(request.Context(), p.Params[queryParamTerm], limit)
			if err != nil {
				return nil, toApiError(err)
			}

			return results, nil
		})
}

func (c offlineController) GetStats() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/stats").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			stats, err := c.service().GetStats(request.Context())
			if err != nil {
				return nil, toApiError(err)
			}

			return stats, nil
		})
}

func (c offlineController) AbortDownload() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodPost).
		SetPath(basePath + "/abort").
		SetReturnCode(http.StatusNoContent).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			var body types.AbortDownloadRequest

			// the body is optional, an empty one aborts whatever is running
			if request.ContentLength != 0 {
				err := p.PopulateBody(&body)
				if err != nil {
					return nil, exceptions.NewBadRequestException(err)
				}
			}

			return nil, toApiError(c.service().AbortDownload(request.Context(), body.SessionId))
		})
}

func (c offlineController) GetStoragePath() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/storage").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			path, err := c.service().StoragePath()
			if err != nil {
				return nil, toApiError(err)
			}

			return types.StoragePath{Path: path}, nil
		})
}

func (c offlineController) GetDownloads() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/downloads").
		SetReturnCode(http.StatusOK).
		AddQueryParam(pagination.PageIndexQueryParam).
		AddQueryParam(pagination.PageSizeQueryParam).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			params, err := pagination.NewApiPaginationParams(p)
			if err != nil {
				return nil, err
			}

			downloads, err := c.service().GetDownloads(request.Context(), params)
			if err != nil {
				return nil, toApiError(err)
			}

			return downloads, nil
		})
}

func (c offlineController) GetDownloadStatus() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath + "/downloads/active").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return c.service().DownloadStatus(request.Context()), nil
		})
}

func initController() offlineController {
	c := offlineController{service: GetService}

	c.builders = append(
		c.builders,
		c.SaveTrack,
		c.GetTrack,
		c.RemoveTrack,
		c.HasTrack,
		c.GetFilePath,
		c.GetThumbnail,
		c.GetCount,
		c.ClearAll,
		c.GetPage,
		c.Search,
		c.GetStats,
		c.AbortDownload,
		c.GetStoragePath,
		c.GetDownloads,
		c.GetDownloadStatus,
	)

	return c
}

func init() {
	log.Debug().Msg("Registering offline controller")

	app.GetApp().ControllerRegistry.Register(initController())
}
