package app

import (
	"sync"

	"github.com/egfanboy/mediapire-common/router"
)

type App struct {
	ControllerRegistry *router.ControllerRegistry
	Config
}

var a *App

var o = sync.Once{}

func initApp() {
	o.Do(func() {
		if a == nil {
			a = &App{ControllerRegistry: router.NewControllerRegistry(), Config: DefaultConfig()}
		}
	})
}

func GetApp() *App {
	initApp()

	return a
}

// Configure replaces the process configuration. It must run before any
// service is resolved, services read the config once when they are built.
func (a *App) Configure(cfg Config) {
	a.Config = cfg
}

func init() {
	initApp()
}
