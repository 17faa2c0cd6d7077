// Package admin serves operator actions on accounts over HTTP.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/model"
)

// Kicker ends the live connection of an account.
type Kicker interface {
	Kick(ctx context.Context, accountName string) bool
}

// Handler serves the admin routes. Every request needs the bearer token.
type Handler struct {
	kicker   Kicker
	accounts model.AccountBanner
	token    []byte
	logger   *logger.Logger
}

// NewHandler creates a new admin Handler.
func NewHandler(kicker Kicker, accounts model.AccountBanner, token string, logger *logger.Logger) *Handler {
	return &Handler{
		kicker:   kicker,
		accounts: accounts,
		token:    []byte(token),
		logger:   logger,
	}
}

// Register mounts the admin routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /admin/accounts/{name}/kick", h.authorize(http.HandlerFunc(h.kick)))
	mux.Handle("POST /admin/accounts/{name}/ban", h.authorize(http.HandlerFunc(h.ban)))
	mux.Handle("DELETE /admin/accounts/{name}/ban", h.authorize(http.HandlerFunc(h.unban)))
}

type actionResponse struct {
	Account string `json:"account"`
	Kicked  bool   `json:"kicked"`
	Banned  *bool  `json:"banned,omitempty"`
}

func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if len(h.token) == 0 || subtle.ConstantTimeCompare([]byte(token), h.token) != 1 {
			h.logger.Warn("Admin handler: unauthorized request", "path", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) kick(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !model.IsAllowedAccountName(name) {
		http.Error(w, "invalid account name", http.StatusBadRequest)
		return
	}

	kicked := h.kicker.Kick(r.Context(), name)
	if !kicked {
		http.Error(w, "account has no connection", http.StatusNotFound)
		return
	}
	h.write(w, actionResponse{Account: name, Kicked: true})
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

func (h *Handler) unban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

// setBanned changes the ban flag; a ban also ends the account's connection.
func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	name := r.PathValue("name")
	if !model.IsAllowedAccountName(name) {
		http.Error(w, "invalid account name", http.StatusBadRequest)
		return
	}

	err := h.accounts.SetBanned(r.Context(), name, banned)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Admin handler: failed to change ban flag",
			"account", name,
			"error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var kicked bool
	if banned {
		kicked = h.kicker.Kick(r.Context(), name)
	}
	h.logger.Info("Admin handler: ban flag changed",
		"account", name,
		"banned", banned,
		"kicked", kicked)
	h.write(w, actionResponse{Account: name, Kicked: kicked, Banned: &banned})
}

func (h *Handler) write(w http.ResponseWriter, resp actionResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Admin handler: failed to write response", "error", err.Error())
	}
}
