package ws

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/zlnvch/layerdeck/scene"
	"github.com/zlnvch/layerdeck/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
	Options SessionOptions
	// AssetBaseURL is where sessions fetch asset images from
	AssetBaseURL string
}

func NewHandler(svc *service.Service, hub *Hub, opts SessionOptions) *Handler {
	return &Handler{
		Service:      svc,
		Hub:          hub,
		Options:      opts,
		AssetBaseURL: opts.Engine.AssetBaseURL,
	}
}

func (h *Handler) NewWsUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
		Subprotocols: []string{"layerdeck-v1"},
	}
}

// ServeWS handles websocket requests from the peer. The token travels as the
// second subprotocol: "layerdeck-v1, <jwt>".
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	owner, authErr := h.Service.AuthenticateToken(r.Context(), token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, owner)
	loader := scene.NewHTTPLoader(h.AssetBaseURL, h.Service.Cache)
	session := NewSession(client, h.Service, loader, h.Options)

	h.Hub.OpenCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
	go session.Run(shutdownCtx)
}
