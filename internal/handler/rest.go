package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/board"
	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// maxBodyBytes caps member form payloads.
const maxBodyBytes = 1 << 16

// RESTHandler serves the board navigation routes and the member API.
type RESTHandler struct {
	board     *board.Board
	publicURL *url.URL
	logger    *zap.Logger
	ready     atomic.Bool
}

// NewRESTHandler creates a new RESTHandler. publicURL supplies the scheme
// and host of every board address; request paths and queries are resolved
// against it.
func NewRESTHandler(b *board.Board, publicURL *url.URL, logger *zap.Logger) *RESTHandler {
	if publicURL == nil {
		publicURL = &url.URL{}
	}
	h := &RESTHandler{
		board:     b,
		publicURL: publicURL,
		logger:    logger,
	}
	h.ready.Store(true)
	return h
}

// SetReady toggles the readiness probe.
func (h *RESTHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterRoutes registers the public routes: probes, board view,
// navigation and share.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
	router.HandleFunc("/board", h.ViewBoard).Methods(http.MethodGet)
	router.HandleFunc("/board/next", h.NextPage).Methods(http.MethodPost)
	router.HandleFunc("/board/previous", h.PreviousPage).Methods(http.MethodPost)
	router.HandleFunc("/board/pages/{page}", h.GoToPage).Methods(http.MethodPost)
	router.HandleFunc("/board/share", h.Share).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/members", h.ListMembers).Methods(http.MethodGet)
}

// RegisterMemberRoutes registers the routes that change the roster. The
// caller decides whether router is guarded by authentication.
func (h *RESTHandler) RegisterMemberRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/members", h.CreateMember).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/members/{id}", h.UpdateMember).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/members/{id}", h.DeleteMember).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	writeData(w, h.logger, http.StatusOK, response)
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeData(w, h.logger, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}
	snap := h.board.Snapshot()
	writeData(w, h.logger, http.StatusOK, ReadyResponse{Status: "ready", Members: snap.TotalItems})
}

// ViewBoard handles GET /board requests. An address whose page is missing,
// malformed or out of range is answered with a redirect to the settled
// address.
func (h *RESTHandler) ViewBoard(w http.ResponseWriter, r *http.Request) {
	snap, replaced := h.board.Open(h.address(r))
	if replaced {
		w.Header().Set("Location", snap.Address)
		writeData(w, h.logger, http.StatusFound, snap)
		return
	}
	writeData(w, h.logger, http.StatusOK, snap)
}

// NextPage handles POST /board/next requests.
func (h *RESTHandler) NextPage(w http.ResponseWriter, _ *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.board.Next())
}

// PreviousPage handles POST /board/previous requests.
func (h *RESTHandler) PreviousPage(w http.ResponseWriter, _ *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.board.Previous())
}

// GoToPage handles POST /board/pages/{page} requests.
func (h *RESTHandler) GoToPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid page number", nil)
		return
	}
	writeData(w, h.logger, http.StatusOK, h.board.GoTo(page))
}

// Share handles POST /board/share requests.
func (h *RESTHandler) Share(w http.ResponseWriter, r *http.Request) {
	link, err := h.board.Share(r.Context())
	if err != nil {
		h.handleBoardError(w, err, "share")
		return
	}
	writeData(w, h.logger, http.StatusOK, model.ShareResponse{URL: link})
}

// ListMembers handles GET /api/v1/members requests.
func (h *RESTHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.board.Members(r.Context()))
}

// memberResponse is returned by member mutations.
type memberResponse struct {
	Member *model.Member  `json:"member,omitempty"`
	Board  board.Snapshot `json:"board"`
}

// CreateMember handles POST /api/v1/members requests.
func (h *RESTHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	member, snap, err := h.board.Add(r.Context(), fields)
	if err != nil {
		h.handleBoardError(w, err, "create member")
		return
	}

	writeData(w, h.logger, http.StatusCreated, memberResponse{Member: &member, Board: snap})
}

// UpdateMember handles PUT /api/v1/members/{id} requests.
func (h *RESTHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}

	snap, err := h.board.Update(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		h.handleBoardError(w, err, "update member")
		return
	}

	writeData(w, h.logger, http.StatusOK, memberResponse{Board: snap})
}

// DeleteMember handles DELETE /api/v1/members/{id} requests.
func (h *RESTHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	removed, snap, err := h.board.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleBoardError(w, err, "delete member")
		return
	}

	writeData(w, h.logger, http.StatusOK, memberResponse{Member: &removed, Board: snap})
}

func (h *RESTHandler) decodeFields(w http.ResponseWriter, r *http.Request) (model.MemberFields, bool) {
	var fields model.MemberFields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return model.MemberFields{}, false
	}
	return fields, true
}

// handleBoardError maps board errors to HTTP responses.
func (h *RESTHandler) handleBoardError(w http.ResponseWriter, err error, operation string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Warn("validation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, board.ErrMemberNotFound):
		writeError(w, h.logger, http.StatusNotFound, "member not found", nil)
	case errors.Is(err, board.ErrShareDisabled):
		writeError(w, h.logger, http.StatusConflict, "board is empty", nil)
	default:
		h.logger.Error("board operation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", nil)
	}
}

// address resolves the request path and query against the public URL.
func (h *RESTHandler) address(r *http.Request) *url.URL {
	addr := *h.publicURL
	addr.Path = h.publicURL.Path + r.URL.Path
	addr.RawPath = ""
	addr.RawQuery = r.URL.RawQuery
	addr.Fragment = ""
	return &addr
}
