// Package httphandler is the JSON API driving adapter: session, auth, message
// feed and the live message socket.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/ericfisherdev/firechat/internal/application"
	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 64 << 10

// PickerFunc builds the image picker for an upload request.
type PickerFunc func(r *http.Request) driven.ImagePicker

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	auth      *application.AuthService
	boot      *application.Bootstrapper
	router    *application.SessionRouter
	pickerFor PickerFunc
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	auth *application.AuthService,
	boot *application.Bootstrapper,
	router *application.SessionRouter,
	pickerFor PickerFunc,
	limiter *RateLimiter,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:      auth,
		boot:      boot,
		router:    router,
		pickerFor: pickerFor,
		limiter:   limiter,
		logger:    logger,
	}
}

// RegisterAPIRoutes registers all /api/v1 routes on mux. Write endpoints go
// through the per-client rate limiter.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("POST /api/v1/login", h.limiter.Limit(h.Login))
	mux.HandleFunc("POST /api/v1/register", h.limiter.Limit(h.Register))
	mux.HandleFunc("POST /api/v1/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/messages", h.ListMessages)
	mux.HandleFunc("POST /api/v1/messages", h.limiter.Limit(h.SendText))
	mux.HandleFunc("POST /api/v1/messages/image", h.limiter.Limit(h.SendImage))
	mux.HandleFunc("GET /api/v1/messages/live", h.Live)
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Session returns the bootstrap state and the identity in use.
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	state, identity := h.boot.State()
	resp := SessionResponse{
		State:        string(state),
		Initializing: h.boot.Initializing(),
	}
	if identity != nil {
		resp.Email = identity.Email
		resp.UID = identity.UID
		resp.Offline = identity.Offline
	}
	if feed := h.router.Current(); feed != nil {
		resp.Uploading = feed.Uploading()
		if synced := feed.LastSync(); !synced.IsZero() {
			resp.LastSync = synced.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Login signs in and saves the credentials for offline re-login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.auth.Login)
}

// Register creates an account, signs it in and saves the credentials.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.auth.Register)
}

type authFunc func(ctx context.Context, email, password string) (*model.Session, error)

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, fn authFunc) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := fn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrMissingCredentials) {
			writeError(w, http.StatusBadRequest, "Fill in email and password!")
			return
		}
		h.logger.Warn("authentication failed", "path", r.URL.Path, "email", req.Email, "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{UID: session.UID, Email: session.Email})
}

// Logout clears the stored credentials, then signs out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	// SignOut always drops the session; a failed local cleanup is only logged.
	if err := h.auth.SignOut(r.Context()); err != nil {
		h.logger.Error("sign out cleanup failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages returns the displayed list in received order.
func (h *Handler) ListMessages(w http.ResponseWriter, _ *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		writeError(w, http.StatusUnauthorized, model.ErrFeedNotMounted.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(feed.Messages(), feed.Identity().DisplayName()))
}

// SendText submits a text message. The message is not echoed in the
// response; it appears in the list once the live feed reports it.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		writeError(w, http.StatusUnauthorized, model.ErrFeedNotMounted.Error())
		return
	}

	var req SendTextRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := feed.SendText(r.Context(), req.Text); err != nil {
		if errors.Is(err, model.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("send message failed", "error", err)
		writeError(w, http.StatusBadGateway, "send failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SendImage picks the uploaded image and submits it.
func (h *Handler) SendImage(w http.ResponseWriter, r *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		writeError(w, http.StatusUnauthorized, model.ErrFeedNotMounted.Error())
		return
	}

	err := feed.SendImage(r.Context(), h.pickerFor(r))
	if err == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var notice *model.Notice
	switch {
	case errors.Is(err, model.ErrUploadInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notice):
		writeNotice(w, http.StatusBadGateway, notice)
	default:
		h.logger.Error("send image failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeCredentials accepts a JSON body or a form post.
func decodeCredentials(r *http.Request) (CredentialsRequest, error) {
	var req CredentialsRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody)).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Email = r.PostForm.Get("email")
	req.Password = r.PostForm.Get("password")
	return req, nil
}
