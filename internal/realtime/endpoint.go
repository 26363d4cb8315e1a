package realtime

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers connect from the dashboard origin; adjust for prod
	},
}

// ServeWS upgrades the connection and runs the client pumps. When a viewer
// token secret is configured the token is required, either as a ?token=
// query parameter or a bearer Authorization header.
//
// test connection usage:
//
//	wscat -c "ws://localhost:8080/ws"
//	{"action":"subscribe","device_ids":["8018052b-45f8-46c3-b2fd-3ac2c15cd6f4"]}
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	userID := "anonymous"

	if jwtSecret != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := VerifyViewerToken(jwtSecret, token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID = claimString(claims, "sub")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warnw("upgrade error", "error", err)
		return
	}

	client := NewClient(conn, hub, userID)

	go client.WritePump()
	client.ReadPump()
}
