package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/view"
)

// DefaultLanding is where a successful login goes when no safe next path is given.
const DefaultLanding = "/app"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/unauthorized", h.showUnauthorized)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
	Next   string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if p := ProviderFromContext(r.Context()); p != nil && p.State() == StateAuthenticated {
		http.Redirect(w, r, SafeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Next: r.URL.Query().Get("next")})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	provider := ProviderFromContext(r.Context())
	if provider == nil {
		h.logger.Error("identity provider missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Form: form, Errors: make(map[string]string), Next: r.PostFormValue("next")}
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				data.Errors[fieldErr.Field()] = loginFieldMessage(fieldErr)
			}
		}
		h.renderLogin(w, r, http.StatusBadRequest, data)
		return
	}

	identity, err := provider.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			data.Errors["general"] = shared.UserSafeMessage(err)
			h.renderLogin(w, r, http.StatusUnauthorized, data)
		case errors.Is(err, ErrLoginInProgress):
			data.Errors["general"] = "A sign-in is already in progress"
			h.renderLogin(w, r, http.StatusConflict, data)
		case errors.Is(err, r.Context().Err()):
			h.logger.Info("login abandoned", slog.String("email", form.Email))
		default:
			h.logger.Error("login", slog.Any("error", err))
			data.Errors["general"] = shared.UserSafeMessage(err)
			h.renderLogin(w, r, http.StatusInternalServerError, data)
		}
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Renew(sess)
		h.csrfManager.Rotate(sess)
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + identity.User.FirstName})
	}
	h.logger.Info("user signed in", slog.String("user_id", identity.User.ID), slog.String("role", identity.Role.Name))
	http.Redirect(w, r, SafeNext(data.Next), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if provider := ProviderFromContext(r.Context()); provider != nil {
		provider.Logout()
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Renew(sess)
		h.csrfManager.Rotate(sess)
		sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "You have been signed out"})
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) showUnauthorized(w http.ResponseWriter, r *http.Request) {
	data := view.TemplateData{Title: "Access denied", Data: map[string]any{"Home": DefaultLanding}}
	if err := h.templates.RenderPage(w, r, http.StatusForbidden, "pages/unauthorized.html", data); err != nil {
		h.logger.Error("render unauthorized", slog.Any("error", err))
	}
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	data.Form.Password = ""
	viewData := view.TemplateData{Title: "Sign in", Data: data}
	if err := h.templates.RenderPage(w, r, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func loginFieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Enter a valid email address"
	default:
		return fe.Error()
	}
}

// SafeNext returns next when it is a local absolute path, DefaultLanding otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return DefaultLanding
	}
	return next
}
