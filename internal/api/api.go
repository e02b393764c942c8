package api

import (
	"net/http"

	"upgradewatch/internal/compression"
	"upgradewatch/internal/handlers/wizard"
	"upgradewatch/internal/interfaces"
	"upgradewatch/internal/middleware"
	"upgradewatch/internal/routing"
	pkgmiddleware "upgradewatch/pkg/http/middleware"
)

// API is the HTTP surface of the upgrade wizard.
type API struct {
	router        *routing.Router
	wizardHandler *wizard.Handler
	hub           *wizard.Hub
}

// Dependencies contains all the dependencies needed by the API.
type Dependencies struct {
	Config     interfaces.Config
	Logger     interfaces.Logger
	Controller wizard.Controller
	Hub        *wizard.Hub
}

func createRouterWithMiddleware(deps Dependencies) *routing.Router {
	middlewareChain := pkgmiddleware.New(
		middleware.LoggingMiddleware(deps.Logger),
		middleware.RequireRequestedBy(),
		compression.Middleware(deps.Config.GetServerConfig().Compression, deps.Logger),
	)

	return routing.NewRouter(middlewareChain)
}

// NewAPI builds the router and registers the wizard endpoints under /u/.
func NewAPI(deps Dependencies) *API {
	hub := deps.Hub
	if hub == nil {
		hub = wizard.NewHub(deps.Logger)
	}

	wizardHandler := wizard.NewHandler(wizard.Dependencies{
		Logger:     deps.Logger,
		Controller: deps.Controller,
		Hub:        hub,
	})

	router := createRouterWithMiddleware(deps)
	router.RegisterHandler(wizard.Prefix+"/", wizardHandler)

	return &API{
		router:        router,
		wizardHandler: wizardHandler,
		hub:           hub,
	}
}

// Hub returns the watch hub so it can be subscribed to state changes.
func (api *API) Hub() *wizard.Hub {
	return api.hub
}

// ServeHTTP implements the http.Handler interface.
func (api *API) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	api.router.ServeHTTP(writer, req)
}
