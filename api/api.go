package api

import (
	"context"
	"log"
	"net/http"

	"github.com/zlnvch/layerdeck/api/rest"
	"github.com/zlnvch/layerdeck/api/ws"
	"github.com/zlnvch/layerdeck/service"
)

type LayerdeckAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	uploadDir   string
	shutdownCtx context.Context
}

// NewLayerdeckAPI starts the session hub and returns the API over svc.
// Background workers are started by the caller.
func NewLayerdeckAPI(svc *service.Service, sessionOpts ws.SessionOptions, shutdownCtx context.Context) (*LayerdeckAPI, error) {
	wsHub := ws.NewHub(svc.Cache)
	err := wsHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &LayerdeckAPI{}, err
	}
	go wsHub.Run(shutdownCtx)

	return &LayerdeckAPI{
		restHandler: rest.NewHandler(svc),
		wsHandler:   ws.NewHandler(svc, wsHub, sessionOpts),
		uploadDir:   svc.UploadDir,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (layerdeckAPI *LayerdeckAPI) RegisterRoutes(mux *http.ServeMux, allowedOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	layerdeckAPI.restHandler.RegisterRoutes(mux, layerdeckAPI.uploadDir)

	wsUpgrader := layerdeckAPI.wsHandler.NewWsUpgrader(allowedOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		layerdeckAPI.wsHandler.ServeWS(wsUpgrader, w, r, layerdeckAPI.shutdownCtx)
	})
}
