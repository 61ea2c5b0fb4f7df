package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/cartsync/internal/domain"
	"github.com/utafrali/storefront/services/cartsync/internal/manager"
	"github.com/utafrali/storefront/services/cartsync/internal/session"
)

// Sessions resolves the cart manager of a session.
type Sessions interface {
	Get(sessionID string) (*manager.Manager, bool, error)
	Lookup(sessionID string) (*manager.Manager, bool)
	Dispose(sessionID string) bool
}

// CredentialStore persists the credential a session logs in with.
type CredentialStore interface {
	Put(ctx context.Context, c session.Credential) error
	Delete(ctx context.Context, sessionID string) error
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions Sessions
	store    CredentialStore
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(sessions Sessions, store CredentialStore, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// GetCart handles GET /api/v1/cart. The first request of a session runs the
// initial sync; its failure is reported inside the returned state.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	if m.Snapshot().Status == domain.StatusUninitialized {
		if err := m.Initialize(r.Context()); errors.Is(err, manager.ErrClosed) {
			h.writeError(w, r, err)
			return
		}
	}

	httputil.WriteData(w, http.StatusOK, newCartView(m.Snapshot()))
}

// Refresh handles POST /api/v1/cart/refresh.
func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	if err := m.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartView(m.Snapshot()))
}

// AddItem handles POST /api/v1/cart/items by adding through the cart API.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	added, err := m.AddRemote(r.Context(), domain.AddRequest{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, AddResultView{Added: added, Cart: newCartView(m.Snapshot())})
}

// AddLine handles POST /api/v1/cart/lines by adding to the local state only.
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	state := m.AddLocal(req.Product.toDomain(), req.Quantity, req.Size, req.Color)
	httputil.WriteData(w, http.StatusOK, newCartView(state))
}

// UpdateLine handles PUT /api/v1/cart/lines/{key}.
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	key, ok := lineKeyParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	state := m.UpdateQuantityLocal(key, *req.Quantity)
	httputil.WriteData(w, http.StatusOK, newCartView(state))
}

// RemoveLine handles DELETE /api/v1/cart/lines/{key}. Removing a missing
// line is not an error.
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	key, ok := lineKeyParam(w, r)
	if !ok {
		return
	}

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartView(m.RemoveLocal(key)))
}

// ClearCart handles DELETE /api/v1/cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, newCartView(m.ClearLocal()))
}

// AdjustBadge handles POST /api/v1/cart/badge.
func (h *CartHandler) AdjustBadge(w http.ResponseWriter, r *http.Request) {
	var req BadgeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	var state domain.State
	if req.Delta > 0 {
		state = m.IncreaseCount(req.Delta)
	} else {
		state = m.DecreaseCount(-req.Delta)
	}
	httputil.WriteData(w, http.StatusOK, newCartView(state))
}

// SaveSession handles PUT /api/v1/cart/session. The Authorization header of
// the request is stored so later requests of the session need only the
// session id. The session id itself is taken on trust, so the route is only
// safe behind the gateway's authentication.
func (h *CartHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	creds := middleware.CredentialsFromContext(r.Context())
	if !creds.HasToken() {
		httputil.WriteError(w, r, apperrors.Unauthorized("AUTHENTICATION_REQUIRED", "authorization header is required"), h.logger)
		return
	}

	err := h.store.Put(r.Context(), session.Credential{
		SessionID: creds.SessionID,
		Token:     creds.Token,
		TokenType: creds.Scheme,
	})
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession handles DELETE /api/v1/cart/session (logout). The session's
// state is reset, its manager disposed and its stored credential removed.
func (h *CartHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.CredentialsFromContext(r.Context()).SessionID

	if m, ok := h.sessions.Lookup(sessionID); ok {
		m.Reset()
	}
	h.sessions.Dispose(sessionID)

	if err := h.store.Delete(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	logger.FromContext(r.Context()).InfoContext(r.Context(), "cart session ended")
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *CartHandler) manager(w http.ResponseWriter, r *http.Request) (*manager.Manager, bool) {
	sessionID := middleware.CredentialsFromContext(r.Context()).SessionID

	m, _, err := h.sessions.Get(sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return m, true
}

func lineKeyParam(w http.ResponseWriter, r *http.Request) (domain.LineKey, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("malformed line key"), nil)
		return domain.LineKey{}, false
	}
	key, err := domain.ParseLineKey(raw)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), nil)
		return domain.LineKey{}, false
	}
	return key, true
}

// writeError renders a sync failure. Auth failures become 401 so clients can
// prompt for login; transport failures 502; server rejections 422 with the
// server's reason as the code.
func (h *CartHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, syncError(err), h.logger)
}

func syncError(err error) error {
	if errors.Is(err, manager.ErrClosed) {
		return apperrors.Conflict("cart session closed, retry the request")
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		return apperrors.Internal(err)
	}

	switch de.Kind {
	case domain.KindAuthRequired:
		return apperrors.Unauthorized("AUTHENTICATION_REQUIRED", de.Message)
	case domain.KindNetworkFailure:
		return apperrors.BadGateway("NETWORK_FAILURE", "cart service unavailable", de)
	case domain.KindServerRejected:
		return apperrors.Rejected(de.Reason, de.Message)
	case domain.KindMalformedResponse:
		return apperrors.BadGateway("MALFORMED_RESPONSE", "cart service returned an unreadable response", de)
	default:
		return apperrors.Internal(err)
	}
}
