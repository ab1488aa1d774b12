// Websocket entry point for the messaging hub.
//
// The bearer credential is presented during the handshake — an
// Authorization header for native clients, a token query parameter for
// browsers (the websocket API cannot set headers). Authentication
// completes before any event is accepted; any failure rejects the
// connection with no partial session.
package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"jobconnect/realtime-service/internal/identity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the Gateway in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections and hands them to the hub.
type Handler struct {
	hub      *Hub
	svc      *Service
	verifier identity.TokenVerifier
}

// NewHandler returns a configured Handler.
func NewHandler(hub *Hub, svc *Service, verifier identity.TokenVerifier) *Handler {
	return &Handler{hub: hub, svc: svc, verifier: verifier}
}

// RegisterRoutes mounts the websocket endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.serveWS)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r.Context(), bearerToken(r))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, identity.ErrInactiveAccount) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[realtime] websocket upgrade failed for user %s: %v", user.ID, err)
		return
	}

	client := newClient(h.hub, h.svc, conn, user)
	h.hub.Register(user.ID, client)
	log.Printf("[realtime] user %s (%s) connected", user.ID, user.Username)

	if frame, err := EncodeEvent(EvUserStatus, UserStatusPayload{
		UserID: user.ID, Status: "online",
	}); err == nil {
		h.hub.BroadcastAll(frame)
	}

	// The request context dies when this handler returns; the connection
	// outlives it, so the event loop runs on its own context.
	go client.run(context.Background())
}

// bearerToken extracts the handshake credential.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}
