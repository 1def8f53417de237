// ABOUTME: HTTP surface of the portal: session cookie, auth API, guarded pages
// ABOUTME: Binds each request to its browser session and applies guard decisions

package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/academa/academa-portal/internal/identity"
	"github.com/academa/academa-portal/internal/profile"
	"github.com/academa/academa-portal/internal/session"
)

// sessionCookie carries the signed browser-session token.
const sessionCookie = "academa_session"

// Server is the portal HTTP surface: the auth/profile API and the guarded
// page routes.
type Server struct {
	registry *Registry
	tokens   *SessionTokens
	apps     ApplicationService
	logger   *slog.Logger
}

// NewServer wires the HTTP surface over the session registry.
func NewServer(registry *Registry, tokens *SessionTokens, apps ApplicationService) *Server {
	return &Server{
		registry: registry,
		tokens:   tokens,
		apps:     apps,
		logger:   slog.Default().With("component", "portal"),
	}
}

// Router builds the chi router. Everything except the health check runs
// behind the browser-session middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.withBrowserSession)

		r.Route("/api", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/login/{kind}", s.handleLoginWithProvider)
			r.Post("/logout", s.handleLogout)
			r.Post("/reset-password", s.handleResetPassword)
			r.Get("/session", s.handleSession)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handlePutProfile)
			r.Post("/admissions", s.handleAdmission)
			r.Post("/reviews", s.handleReview)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.guarded)
			r.Get("/", s.page("Academa"))
			r.Get("/login", s.page("Sign in"))
			r.Get("/register", s.page("Create account"))
			r.Get("/profile", s.page("Your profile"))
			r.Get("/my-college", s.page("My college"))
			r.Get("/colleges/{id}", s.page("College"))
		})
	})

	return r
}

// withBrowserSession resolves the request's browser session from the cookie,
// opening a fresh one when the cookie is missing, expired, or refers to a
// swept entry.
func (s *Server) withBrowserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			if sid, err := s.tokens.Verify(cookie.Value); err == nil {
				if bs, ok := s.registry.Lookup(sid); ok {
					next.ServeHTTP(w, r.WithContext(WithBrowserSession(r.Context(), bs)))
					return
				}
			}
		}

		bs, err := s.registry.Open(r.Context())
		if err != nil {
			s.logger.Error("failed to open browser session", "error", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		token, err := s.tokens.Issue(bs.ID)
		if err != nil {
			s.logger.Error("failed to issue session token", "error", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.tokens.ttl.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithBrowserSession(r.Context(), bs)))
	})
}

// guarded applies the per-browser-session guard to page routes.
func (s *Server) guarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs := MustFromContext(r.Context())
		mw := bs.Guard.Middleware(func(*http.Request) session.Session {
			return bs.Manager.Current()
		})
		mw(next).ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

// handleRegister runs the registration chain: create the account, set the
// display name, create the ProfileStore record. Each step short-circuits the
// chain and names itself in the response.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerPayload
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password != req.ConfirmPassword {
		writeValidation(w, "passwords do not match")
		return
	}
	if !req.AcceptTerms {
		writeValidation(w, "terms must be accepted")
		return
	}

	bs := MustFromContext(r.Context())
	ctx := r.Context()

	id, err := bs.Manager.Register(ctx, req.Email, req.Password)
	if err != nil {
		writeStepError(w, "register", err)
		return
	}
	if err := bs.Manager.UpdateDisplayIdentity(ctx, req.Name, ""); err != nil {
		writeStepError(w, "display-name", err)
		return
	}
	if err := bs.Profiles.CreateRecord(ctx, profile.Seeded(id.Email, req.Name)); err != nil {
		writeStepError(w, "profile-record", err)
		return
	}

	writeJSON(w, http.StatusCreated, identityPayload(bs.Manager.Current().Identity))
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsPayload
	if !decodeBody(w, r, &req) {
		return
	}

	bs := MustFromContext(r.Context())
	id, err := bs.Manager.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(id))
}

func (s *Server) handleLoginWithProvider(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	bs := MustFromContext(r.Context())
	id, err := bs.Manager.SignInWithProvider(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(id))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	bs := MustFromContext(r.Context())
	if err := bs.Manager.SignOut(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed-out"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	bs := MustFromContext(r.Context())
	if err := bs.Manager.ResetPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset-email-sent"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	bs := MustFromContext(r.Context())
	snap := bs.Manager.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   snap.Status.String(),
		"identity": identityPayload(snap.Identity),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	bs, id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	p, err := bs.Profiles.LoadProfile(r.Context(), id.Email, id.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type putProfilePayload struct {
	Name       string `json:"name"`
	University string `json:"university"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	AvatarURL  string `json:"avatarUrl"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	bs, id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req putProfilePayload
	if !decodeBody(w, r, &req) {
		return
	}

	p := profile.Profile{
		Email:      id.Email,
		Name:       req.Name,
		University: req.University,
		Address:    req.Address,
		Phone:      req.Phone,
	}
	if err := bs.Profiles.SaveProfile(r.Context(), p, req.AvatarURL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdmission(w http.ResponseWriter, r *http.Request) {
	_, id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		CollegeID string `json:"collegeId"`
		Program   string `json:"program"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	admissionID, err := s.apps.SubmitAdmission(r.Context(), Admission{
		Email:     id.Email,
		CollegeID: req.CollegeID,
		Program:   req.Program,
	})
	if err != nil {
		writeValidation(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": admissionID})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	_, id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		CollegeID string `json:"collegeId"`
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	reviewID, err := s.apps.SubmitReview(r.Context(), Review{
		Email:     id.Email,
		CollegeID: req.CollegeID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeValidation(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": reviewID})
}

// page renders a minimal placeholder body. Real page content is out of
// scope; these exist so the guard has destinations to gate.
func (s *Server) page(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html>\n<html><head><title>%s</title></head><body><h1>%s</h1></body></html>\n", title, title)
	}
}

// requireIdentity rejects the request unless the browser session has a
// resolved, signed-in identity.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*BrowserSession, *identity.Identity, bool) {
	bs := MustFromContext(r.Context())
	snap := bs.Manager.Current()
	if !snap.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return nil, nil, false
	}
	return bs, snap.Identity, true
}

func identityPayload(id *identity.Identity) map[string]string {
	if id == nil {
		return nil
	}
	return map[string]string{
		"accountId":   id.AccountID,
		"email":       id.Email,
		"displayName": id.DisplayName,
		"avatarUrl":   id.AvatarURL,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":   msg,
		"kind":    session.FailureValidation.String(),
		"message": session.FailureValidation.Message(),
	})
}

// writeError maps the failure taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var partial *profile.PartialSaveError
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":      partial.Error(),
			"kind":       session.FailurePartialSave.String(),
			"message":    session.FailurePartialSave.Message(),
			"failedSide": string(partial.FailedSide),
		})
		return
	}

	var f *session.Failure
	if errors.As(err, &f) {
		writeJSON(w, statusFor(f.Kind), map[string]string{
			"error":   f.Error(),
			"kind":    f.Kind.String(),
			"message": f.Kind.Message(),
		})
		return
	}

	writeJSON(w, http.StatusBadGateway, map[string]string{
		"error":   err.Error(),
		"kind":    session.FailureNetworkOrProvider.String(),
		"message": session.FailureNetworkOrProvider.Message(),
	})
}

// writeStepError is writeError plus the registration-chain step that failed.
func writeStepError(w http.ResponseWriter, step string, err error) {
	status := http.StatusBadGateway
	kind := session.FailureNetworkOrProvider

	var f *session.Failure
	if errors.As(err, &f) {
		status = statusFor(f.Kind)
		kind = f.Kind
	}

	writeJSON(w, status, map[string]string{
		"error":   err.Error(),
		"kind":    kind.String(),
		"message": kind.Message(),
		"step":    step,
	})
}

func statusFor(kind session.FailureKind) int {
	switch kind {
	case session.FailureValidation:
		return http.StatusBadRequest
	case session.FailureCredential:
		return http.StatusUnauthorized
	case session.FailureInteractiveCancelled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
