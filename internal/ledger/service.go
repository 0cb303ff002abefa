// Package ledger provides the trade-execution and portfolio engine: it
// validates orders against quoted prices, applies cash, holdings, and the
// append-only trade log as one atomic unit, and feeds outcomes to the
// achievement engine.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/achievement"
	"github.com/papertrade/ledger-engine/internal/leaderboard"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/quote"
	"github.com/papertrade/ledger-engine/internal/store"
)

// Service handles ledger operations over HTTP. Orders on the same
// (user, asset) pair are serialized through a keyed lock; everything else
// runs concurrently.
type Service struct {
	store        store.Store
	quotes       quote.Provider
	achievements *achievement.Engine
	locks        *keyLock
	wsHub        *WSHub // optional WebSocket hub for trade broadcasts
}

// NewService creates a new ledger service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, quotes quote.Provider, hub *WSHub) *Service {
	return &Service{
		store:        st,
		quotes:       quotes,
		achievements: achievement.NewEngine(st),
		locks:        newKeyLock(),
		wsHub:        hub,
	}
}

// Routes mounts all ledger endpoints on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/users", s.CreateUser)
	r.Get("/users/{userID}/history", s.GetHistory)
	r.Get("/users/{userID}/badges", s.GetUserBadges)
	r.Post("/users/{userID}/reset", s.ResetUser)
	r.Get("/portfolio/{userID}", s.GetPortfolio)
	r.Post("/trade", s.Trade)
	r.Post("/quote", s.Quote)
	r.Post("/unwatch", s.Unwatch)
	r.Get("/search", s.Search)
	r.Get("/badges", s.GetBadgeCatalog)
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Post("/reset", s.ResetAll)
}

// --- Request types ---

// CreateUserRequest is the JSON body for POST /users.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// WatchRequest is the JSON body for POST /quote and POST /unwatch.
type WatchRequest struct {
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
}

// --- HTTP handlers ---

// CreateUser handles POST /api/v1/users.
// Registers a user with the default starting cash.
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Cash:      model.DefaultCash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	slog.Info("user created", "id", user.ID, "name", user.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Trade handles POST /api/v1/trade.
func (s *Service) Trade(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.ExecuteOrder(r.Context(), req)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetPortfolio handles GET /api/v1/portfolio/{userID}.
// Returns cash, holdings marked at last price, and the total.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	holdings, err := s.store.GetUserHoldings(ctx, userID)
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []model.HoldingView{}
	}

	assetValue := decimal.Zero
	for _, h := range holdings {
		assetValue = assetValue.Add(h.Value)
	}

	portfolio := model.Portfolio{
		UserID:     user.ID,
		Name:       user.Name,
		Cash:       user.Cash,
		Holdings:   holdings,
		AssetValue: assetValue,
		Total:      user.Cash.Add(assetValue),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolio)
}

// Quote handles POST /api/v1/quote.
// Looks up a symbol, refreshes the asset catalog, and adds a zero-qty
// watch row for the user if none exists.
func (s *Service) Quote(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, "user_id and symbol are required", http.StatusBadRequest)
		return
	}
	symbol, err := quote.Normalize(req.Symbol)
	if err != nil {
		writeError(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		writeError(w, "symbol not found", http.StatusNotFound)
		return
	}

	asset, err := s.store.UpsertAsset(ctx, &model.Asset{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Name:      q.Name,
		LastPrice: q.Price,
	})
	if err != nil {
		writeError(w, "failed to store asset", http.StatusInternalServerError)
		return
	}

	// Watch: record the zero-qty row. The insert must never touch an
	// existing row — a trade may create the holding at any moment, and its
	// quantity has to survive this.
	h := &model.Holding{UserID: req.UserID, AssetID: asset.ID}
	if err := s.store.CreateHoldingIfAbsent(ctx, h); err != nil {
		writeError(w, "failed to watch asset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// Unwatch handles POST /api/v1/unwatch.
// Removes a watch row; refuses while shares are still held.
func (s *Service) Unwatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, "user_id and symbol are required", http.StatusBadRequest)
		return
	}
	symbol, err := quote.Normalize(req.Symbol)
	if err != nil {
		writeError(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	asset, err := s.store.GetAssetBySymbol(ctx, symbol)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "symbol not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	holding, err := s.store.GetHolding(ctx, req.UserID, asset.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "not watching this asset", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load holding", http.StatusInternalServerError)
		return
	}
	if !holding.Qty.IsZero() {
		writeError(w, ErrPositionNotEmpty.Error(), http.StatusConflict)
		return
	}

	if err := s.store.DeleteHolding(ctx, req.UserID, asset.ID); err != nil {
		writeError(w, "failed to unwatch", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /api/v1/users/{userID}/history.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	trades, err := s.store.GetTradeHistory(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeView{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// Search handles GET /api/v1/search?q=.
// Returns the single best asset match by symbol or name.
func (s *Service) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, "q is required", http.StatusBadRequest)
		return
	}

	asset, err := s.store.SearchAsset(r.Context(), q)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no match", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset)
}

// GetBadgeCatalog handles GET /api/v1/badges.
func (s *Service) GetBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(achievement.Catalog)
}

// GetUserBadges handles GET /api/v1/users/{userID}/badges.
func (s *Service) GetUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	owned, err := s.store.BadgeIDs(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load badges", http.StatusInternalServerError)
		return
	}

	earned := []model.Skull{}
	for _, skull := range achievement.Catalog {
		if owned[skull.ID] {
			earned = append(earned, skull)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(earned)
}

// GetLeaderboard handles GET /api/v1/leaderboard.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := leaderboard.Rank(r.Context(), s.store)
	if err != nil {
		writeError(w, "failed to rank", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ResetUser handles POST /api/v1/users/{userID}/reset.
func (s *Service) ResetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	err := s.store.ResetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "reset failed", http.StatusInternalServerError)
		return
	}

	slog.Info("user reset", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// ResetAll handles POST /api/v1/reset.
func (s *Service) ResetAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAll(r.Context()); err != nil {
		writeError(w, "reset failed", http.StatusInternalServerError)
		return
	}

	slog.Info("ledger reset for all users")
	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps order failures to HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSymbolNotFound), errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidKind):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrNoPosition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
