package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/blackjack-backend/internal/repository"
)

type handlers struct {
	logger *slog.Logger
	lobby  repository.LobbyRepository
}

func newHandlers(logger *slog.Logger, lobby repository.LobbyRepository) *handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		lobby:  lobby,
	}
}

type createTableRequest struct {
	Dealer string `json:"dealer"`
}

type joinTableRequest struct {
	Code string `json:"code"`
}

type tableResponse struct {
	Success bool                `json:"success"`
	Table   *repository.Table   `json:"table,omitempty"`
	Tables  []*repository.Table `json:"tables,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func (that *handlers) ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// tables - GET lists joinable tables, POST registers a new one under a
// fresh six digit code.
func (that *handlers) tables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		that.listTables(w, r)
	case http.MethodPost:
		that.createTable(w, r)
	default:
		that.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (that *handlers) listTables(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "listTables")

	tables, err := that.lobby.ListOpen(r.Context())
	if err != nil {
		log.Error("failed to list tables", "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}

	that.writeJSON(w, http.StatusOK, tableResponse{Success: true, Tables: tables})
}

func (that *handlers) createTable(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "createTable")

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Dealer == "" {
		req.Dealer = "Dealer"
	}

	code := generateTableCode()
	table, err := that.lobby.Create(r.Context(), code, req.Dealer)
	if err != nil {
		log.Error("failed to create table", "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to create table")
		return
	}

	log.Info("table created", "code", table.Code, "dealer", table.Dealer)

	that.writeJSON(w, http.StatusCreated, tableResponse{Success: true, Table: table})
}

func (that *handlers) joinTable(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "joinTable")

	if r.Method != http.MethodPost {
		that.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req joinTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		that.writeError(w, http.StatusBadRequest, "table code is required")
		return
	}

	table, err := that.lobby.GetByCode(r.Context(), req.Code)
	if errors.Is(err, repository.ErrTableNotFound) {
		that.writeError(w, http.StatusNotFound, "table not found")
		return
	}
	if err != nil {
		log.Error("failed to get table", "code", req.Code, "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to get table")
		return
	}

	if !table.HasOpenSeat() {
		that.writeError(w, http.StatusConflict, "table has no open seats")
		return
	}

	table, err = that.lobby.IncrementSeats(r.Context(), req.Code)
	if err != nil {
		log.Error("failed to take a seat", "code", req.Code, "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to take a seat")
		return
	}

	that.writeJSON(w, http.StatusOK, tableResponse{Success: true, Table: table})
}

func (that *handlers) leaveTable(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "leaveTable")

	if r.Method != http.MethodPost {
		that.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req joinTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		that.writeError(w, http.StatusBadRequest, "table code is required")
		return
	}

	table, err := that.lobby.DecrementSeats(r.Context(), req.Code)
	if errors.Is(err, repository.ErrTableNotFound) {
		that.writeError(w, http.StatusNotFound, "table not found")
		return
	}
	if err != nil {
		log.Error("failed to release a seat", "code", req.Code, "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to release a seat")
		return
	}

	that.writeJSON(w, http.StatusOK, tableResponse{Success: true, Table: table})
}

func (that *handlers) getTable(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "getTable")

	if r.Method != http.MethodGet {
		that.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	code := strings.TrimPrefix(r.URL.Path, "/tables/")
	if code == "" {
		that.writeError(w, http.StatusBadRequest, "table code is required")
		return
	}

	table, err := that.lobby.GetByCode(r.Context(), code)
	if errors.Is(err, repository.ErrTableNotFound) {
		that.writeError(w, http.StatusNotFound, "table not found")
		return
	}
	if err != nil {
		log.Error("failed to get table", "code", code, "error", err)
		that.writeError(w, http.StatusInternalServerError, "failed to get table")
		return
	}

	that.writeJSON(w, http.StatusOK, tableResponse{Success: true, Table: table})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body tableResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

func (that *handlers) writeError(w http.ResponseWriter, status int, text string) {
	that.writeJSON(w, status, tableResponse{Success: false, Error: text})
}

// generateTableCode - six digit room codes, matching what dealers read
// out to players at the table.
func generateTableCode() string {
	return fmt.Sprintf("%06d", 100000+rand.Intn(900000)) //nolint: gosec // not security sensitive
}
