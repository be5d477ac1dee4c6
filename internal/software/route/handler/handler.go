package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/user"
	"stoplight/internal/general/jwt"
	"stoplight/internal/general/logger"
	"stoplight/internal/general/websocket"
	"stoplight/internal/ports"
	"stoplight/internal/software/route/service"
)

// RouteHTTPHandler adapts HTTP requests to the RouteService.
type RouteHTTPHandler struct {
	svc       ports.RouteService
	logger    *logger.Logger
	auth      *jwt.Manager
	websocket *websocket.WebSocket
}

// NewRouteHTTPHandler wires an HTTP handler around the RouteService.
func NewRouteHTTPHandler(
	svc ports.RouteService,
	logger *logger.Logger,
	auth *jwt.Manager,
	ws *websocket.WebSocket,
) *RouteHTTPHandler {
	return &RouteHTTPHandler{svc: svc, logger: logger, auth: auth, websocket: ws}
}

// RegisterRoutes mounts route/stoplight endpoints on the provided mux.
func (handler *RouteHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /route",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleSimulator)(handler.handleCreateRoute),
	)
	mux.HandleFunc("GET /stoplights",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleSimulator)(handler.handleListStoplights),
	)

	// WebSocket endpoints authenticate on the first frame, not via middleware
	mux.HandleFunc("GET /ws/simulation/{client_id}", handler.websocket.ConnectSimulator)
	mux.HandleFunc("GET /ws/devices", handler.websocket.ConnectDevice)

	mux.HandleFunc("GET /health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- route precompute -----

// RouteRequest carries the planned route as [lat, lng] pairs, the shape route
// planners export.
type RouteRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type RouteResponse struct {
	Success bool `json:"success"`
	Groups  int  `json:"groups"`
}

// handleCreateRoute computes and stores the caller's working set.
func (handler *RouteHTTPHandler) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	route := make([]geo.Coordinate, 0, len(req.Coordinates))
	for i, pair := range req.Coordinates {
		if len(pair) != 2 {
			handler.httpError(ctx, w, http.StatusBadRequest,
				fmt.Sprintf("coordinate %d must be a [lat, lng] pair", i), nil)
			return
		}
		route = append(route, geo.Coordinate{Latitude: pair[0], Longitude: pair[1]})
	}

	workingSet, err := handler.svc.ComputeWorkingSet(ctx, claims.Subject, route)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrEmptyRoute) || errors.Is(err, geo.ErrInvalidLatitude) || errors.Is(err, geo.ErrInvalidLongitude) {
			status = http.StatusBadRequest
		}
		handler.httpError(ctx, w, status, err.Error(), err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, RouteResponse{Success: true, Groups: workingSet.Len()})
}

// ----- working-set inspection -----

type StoplightView struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Direction string  `json:"direction,omitempty"`
}

type GroupView struct {
	ID        int64          `json:"id"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Nearest   *StoplightView `json:"nearest,omitempty"`
}

type StoplightsResponse struct {
	Groups []GroupView `json:"groups"`
}

// handleListStoplights returns the caller's working set: the matched groups in
// route order, each with its resolved nearest stoplight.
func (handler *RouteHTTPHandler) handleListStoplights(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	workingSet, ok := handler.svc.WorkingSetFor(claims.Subject)
	if !ok {
		handler.httpError(ctx, w, http.StatusNotFound, "no route posted yet", nil)
		return
	}

	resp := StoplightsResponse{Groups: make([]GroupView, 0, workingSet.Len())}
	for _, group := range workingSet.Groups() {
		view := GroupView{
			ID:        group.ID,
			Latitude:  group.Location.Latitude,
			Longitude: group.Location.Longitude,
		}
		if nearest, ok := workingSet.Nearest(group.ID); ok {
			view.Nearest = &StoplightView{
				ID:        nearest.ID,
				Latitude:  nearest.Location.Latitude,
				Longitude: nearest.Location.Longitude,
				Direction: nearest.Direction,
			}
		}
		resp.Groups = append(resp.Groups, view)
	}

	handler.jsonResponse(ctx, w, http.StatusOK, resp)
}

// ----- health -----

func (handler *RouteHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- token issuing (development helper) -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// handleCreateToken generates JWT tokens for testing
func (handler *RouteHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	response := TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, response)
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *RouteHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *RouteHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *RouteHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
