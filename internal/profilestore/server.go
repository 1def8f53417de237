// ABOUTME: HTTP surface of the ProfileStore service
// ABOUTME: Serves the /users REST contract consumed by the portal's client

package profilestore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server exposes a Store over the /users REST contract:
//
//	POST  /users          create, 409 on duplicate
//	GET   /users/{email}  fetch, 404 {"message": ...} when absent
//	PATCH /users/{email}  partial update of the named fields
type Server struct {
	store  Store
	logger *slog.Logger
}

// NewServer wraps a store with the HTTP surface.
func NewServer(store Store) *Server {
	return &Server{
		store:  store,
		logger: slog.Default().With("component", "profilestore-http"),
	}
}

// Router builds the chi router for the service.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/users", s.handleCreate)
	r.Get("/users/{email}", s.handleGet)
	r.Patch("/users/{email}", s.handlePatch)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// userPayload is the wire form of a user record.
type userPayload struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	University string `json:"university"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

// patchPayload distinguishes absent fields from empty ones.
type patchPayload struct {
	Name       *string `json:"name"`
	University *string `json:"university"`
	Address    *string `json:"address"`
	Phone      *string `json:"phone"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body userPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Email == "" {
		writeMessage(w, http.StatusBadRequest, "email is required")
		return
	}

	rec := &UserRecord{
		Email:      body.Email,
		Name:       body.Name,
		University: body.University,
		Address:    body.Address,
		Phone:      body.Phone,
	}
	err := s.store.CreateUser(r.Context(), rec)
	if errors.Is(err, ErrDuplicate) {
		writeMessage(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		s.logger.Error("creating user failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"insertedId": rec.ID})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	rec, err := s.store.GetUser(r.Context(), email)
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("fetching user failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toPayload(rec))
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var body patchPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.store.UpdateUser(r.Context(), email, UserPatch{
		Name:       body.Name,
		University: body.University,
		Address:    body.Address,
		Phone:      body.Phone,
	})
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("updating user failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toPayload(rec))
}

func toPayload(rec *UserRecord) userPayload {
	return userPayload{
		Email:      rec.Email,
		Name:       rec.Name,
		University: rec.University,
		Address:    rec.Address,
		Phone:      rec.Phone,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
