package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/normalize"
)

// WalletLookup is implemented by *ledger.Ledger.
type WalletLookup interface {
	Lookup(address string) (domain.WalletStats, bool)
}

// WalletHandler serves wallet profiles from the in-memory ledger, falling
// back to the last persisted snapshot.
type WalletHandler struct {
	ledger WalletLookup
	store  domain.WalletStore
	logger *slog.Logger
}

// NewWalletHandler creates a WalletHandler. store may be nil.
func NewWalletHandler(l WalletLookup, store domain.WalletStore, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{ledger: l, store: store, logger: logger.With(slog.String("handler", "wallets"))}
}

// GetWallet returns one wallet's statistics.
// GET /api/wallets/{address}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := normalize.Address(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	if stats, ok := h.ledger.Lookup(addr); ok {
		writeJSON(w, http.StatusOK, map[string]any{"wallet": stats, "source": "ledger"})
		return
	}
	if h.store != nil {
		stats, err := h.store.Get(r.Context(), addr)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"wallet": stats, "source": "store"})
			return
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.ErrorContext(r.Context(), "wallet lookup failed",
				slog.String("address", addr),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to load wallet")
			return
		}
	}
	writeError(w, http.StatusNotFound, "wallet not found")
}
