package health

import (
	"net/http"
	"os"

	"github.com/egfanboy/mediapire-common/router"
	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/egfanboy/mediapire-offline/internal/mongo"
	"github.com/egfanboy/mediapire-offline/internal/rabbitmq"
	"github.com/egfanboy/mediapire-offline/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	basePath = "/health"

	statusOk       = "ok"
	statusDegraded = "degraded"
)

type healthController struct {
	builders []func() router.RouteBuilder
	// storageDir is read per request since configuration is applied after
	// controllers register
	storageDir func() string
}

func (c healthController) GetApis() (routes []router.RouteBuilder) {
	for _, b := range c.builders {
		routes = append(routes, b())
	}

	return
}

func (c healthController) check() types.HealthResponse {
	resp := types.HealthResponse{
		Status:   statusOk,
		Storage:  statusOk,
		RabbitMQ: rabbitmq.IsConnected(),
		MongoDB:  mongo.IsInitialized(),
	}

	// a missing storage directory is created on first save
	info, err := os.Stat(c.storageDir())
	if (err != nil && !os.IsNotExist(err)) || (err == nil && !info.IsDir()) {
		resp.Status = statusDegraded
		resp.Storage = "unavailable"
	}

	return resp
}

func (c healthController) GetHealth() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return c.check(), nil
		})
}

func initController() healthController {
	c := healthController{storageDir: func() string { return app.GetApp().Config.StorageDir }}

	c.builders = append(c.builders, c.GetHealth)

	return c
}

func init() {
	log.Debug().Msg("Registering health controller")

	app.GetApp().ControllerRegistry.Register(initController())
}
