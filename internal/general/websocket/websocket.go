package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stoplight/internal/domain/user"
	"stoplight/internal/general/contracts"
	"stoplight/internal/general/jwt"
	"stoplight/internal/general/logger"
	"stoplight/internal/ports"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocket handles simulator and device-listener WebSocket connections with JWT auth.
type WebSocket struct {
	logger      *logger.Logger
	jwtMgr      *jwt.Manager
	sessions    ports.SessionFactory
	broadcaster ports.Broadcaster
	writeLocks  sync.Map // key: *websocket.Conn -> *sync.Mutex
}

// NewWebSocket creates a WebSocket handler with JWT auth.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, sessions ports.SessionFactory, broadcaster ports.Broadcaster) *WebSocket {
	return &WebSocket{
		logger:      logger,
		jwtMgr:      jwtMgr,
		sessions:    sessions,
		broadcaster: broadcaster,
	}
}

// ConnectSimulator handles WebSocket connections from route simulators. The whole
// session is processed on this goroutine: frames are handled strictly in arrival
// order, and the deferred Close guarantees every activated group is deactivated
// exactly once even when the disconnect races an in-flight update.
func (ws *WebSocket) ConnectSimulator(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	// Teardown order (LIFO on return): close the socket last, forget the lock first
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	// 2) Authenticate on the first frame
	clientID, ok := ws.authenticate(conn, r, user.RoleSimulator, "client_id")
	if !ok {
		return
	}

	ctx := ws.logger.WithSessionID(r.Context(), clientID)
	ws.logger.Info(ctx, "ws_connected", "Simulator WebSocket connected",
		map[string]any{"client_id": clientID})

	// 3) Build the session: loads the precomputed working set and a fresh tracker
	session := ws.sessions.NewSession(ctx, clientID, &connMember{ws: ws, conn: conn})
	defer session.Close(ctx)

	// 4) Keepalive: read deadline refreshed by any frame or pong, pings every 30s
	ws.startKeepalive(ctx, conn)

	// 5) Read loop
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Error(ctx, "ws_unexpected_close", "Simulator connection closed unexpectedly", err, map[string]any{
					"client_id": clientID,
				})
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(ctx, "ws_connection_closed", "Simulator connection closed normally", map[string]any{
					"client_id": clientID,
				})
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}

		session.HandleFrame(ctx, payload)
	}
}

// ConnectDevice handles WebSocket connections from embedded device listeners. A
// device has no business logic on the server side: it joins the devices broadcast
// group and receives activation events verbatim until it disconnects.
func (ws *WebSocket) ConnectDevice(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	deviceID, ok := ws.authenticate(conn, r, user.RoleDevice, "device_id")
	if !ok {
		return
	}

	ctx := r.Context()
	ws.logger.Info(ctx, "ws_connected", "Device listener connected",
		map[string]any{"device_id": deviceID})

	// membership lasts exactly as long as the connection
	member := &connMember{ws: ws, conn: conn}
	ws.broadcaster.Join(contracts.BroadcastGroupDevices, member)
	defer ws.broadcaster.Leave(contracts.BroadcastGroupDevices, member)

	ws.startKeepalive(ctx, conn)

	// Devices only listen; inbound frames are drained and dropped so pings/pongs and
	// close frames keep flowing.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			ws.logger.Info(ctx, "ws_connection_closed", "Device listener disconnected", map[string]any{
				"device_id": deviceID,
			})
			ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			return
		}
	}
}

// authenticate runs the first-frame JWT handshake shared by both endpoints. The
// optional path parameter (client_id/device_id) must match the token subject.
func (ws *WebSocket) authenticate(conn *websocket.Conn, r *http.Request, role user.Role, idField string) (string, bool) {
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		ws.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		_ = ws.sendAuthError(conn, "internal server error")
		return "", false
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			ws.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			ws.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		_ = ws.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return "", false
	}

	if msgType != websocket.TextMessage {
		ws.logger.Error(r.Context(), "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		_ = ws.sendAuthError(conn, "auth message must be in text format")
		return "", false
	}

	res, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, role)
	if err != nil {
		ws.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = ws.sendAuthError(conn, "authentication failed: invalid token")
		return "", false
	}

	// path param must match the subject in claims
	if pathID := r.PathValue(idField); pathID != "" && pathID != res.Claims.Subject {
		ws.logger.Error(r.Context(), "ws_auth_failed", "Path ID mismatch", nil, map[string]any{
			"path_id":       pathID,
			"token_subject": res.Claims.Subject,
		})
		_ = ws.sendAuthError(conn, idField+" mismatch")
		return "", false
	}

	if err := ws.sendAuthSuccess(conn, idField, res.Claims.Subject); err != nil {
		ws.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return "", false
	}

	return res.Claims.Subject, true
}

// startKeepalive resets the read deadline on pongs and pings every 30s using the
// per-connection writer lock. A failed ping closes the socket, which unblocks the
// reader and lets the connection goroutine run its teardown.
func (ws *WebSocket) startKeepalive(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu := ws.lockOf(conn)
				mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
				mu.Unlock()
				if err != nil {
					// Close socket to unblock reader; goroutine exits.
					_ = conn.Close()
					return
				}
			}
		}
	}()
}
