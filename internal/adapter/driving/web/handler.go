// Package web implements the HTML GUI driving adapter: one page that shows
// the login form or the chat view depending on the routed session.
package web

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/firechat/internal/application"
	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// Handler is the web GUI driving adapter that serves HTML via html/template.
type Handler struct {
	auth   *application.AuthService
	boot   *application.Bootstrapper
	router *application.SessionRouter
	tmpl   *template.Template
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. It fails if
// the embedded templates do not parse.
func NewHandler(
	auth *application.AuthService,
	boot *application.Bootstrapper,
	router *application.SessionRouter,
	logger *slog.Logger,
) (*Handler, error) {
	tmpl, err := template.ParseFS(TemplateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		auth:   auth,
		boot:   boot,
		router: router,
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

// Page renders the chat page for the current session.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	vm := h.pageViewModel(ensureCSRFToken(w, r))
	h.render(w, http.StatusOK, vm)
}

// Login handles the login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	_, err := h.auth.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		h.authFailed(w, r, "Login failed", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Register handles the registration form.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	_, err := h.auth.Register(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
	if err != nil {
		h.authFailed(w, r, "Registration failed", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout clears stored credentials, then signs out.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		h.logger.Error("sign out failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Send handles the text send form.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := feed.SendText(r.Context(), r.PostFormValue("text")); err != nil {
		if errors.Is(err, model.ErrEmptyMessage) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.logger.Error("send message failed", "error", err)
		h.renderNotice(w, r, http.StatusBadGateway, "Send failed", "Connection problem, message not sent.")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SendImage handles the image upload form.
func (h *Handler) SendImage(w http.ResponseWriter, r *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	err := feed.SendImage(r.Context(), NewMultipartPicker(r))
	var notice *model.Notice
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, model.ErrUploadInProgress):
		h.renderNotice(w, r, http.StatusConflict, "Please wait", "An image is still uploading.")
	case errors.As(err, &notice):
		h.renderNotice(w, r, http.StatusBadGateway, notice.Title, notice.Message)
	default:
		h.logger.Error("send image failed", "error", err)
		h.renderNotice(w, r, http.StatusInternalServerError, "Failed", err.Error())
	}
}

func (h *Handler) authFailed(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, model.ErrMissingCredentials) {
		h.renderNotice(w, r, http.StatusBadRequest, "Error", "Fill in email and password!")
		return
	}
	h.logger.Warn("authentication failed", "path", r.URL.Path, "error", err)
	h.renderNotice(w, r, http.StatusUnauthorized, title, err.Error())
}

func (h *Handler) renderNotice(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	vm := h.pageViewModel(ensureCSRFToken(w, r))
	vm.Notice = toNoticeViewModel(title, message)
	h.render(w, status, vm)
}

// pageViewModel picks the view from the routed state. A session that is
// signed in or out but not yet routed renders the loading view.
func (h *Handler) pageViewModel(csrf string) PageViewModel {
	vm := PageViewModel{Title: "firechat", CSRFToken: csrf, View: viewLogin}

	state, identity := h.boot.State()
	feed := h.router.Current()
	signedIn := h.auth.Current() != nil

	switch {
	case h.boot.Initializing():
		vm.View = viewLoading
	case feed == nil && signedIn:
		vm.View = viewLoading
	case feed != nil && state.HasIdentity() && identity != nil:
		vm.View = viewChat
		vm.Email = identity.DisplayName()
		vm.Offline = identity.Offline
		vm.Uploading = feed.Uploading()
		vm.Messages = toMessageViewModels(feed.Messages(), feed.Identity().DisplayName())
	}
	return vm
}

func (h *Handler) render(w http.ResponseWriter, status int, vm PageViewModel) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, "page.html", vm); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}
