package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AlexZinkM/walletlink/internal/controller"
	"github.com/AlexZinkM/walletlink/internal/model"
	"github.com/AlexZinkM/walletlink/wallet"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// WalletHandler serves the wallet connection API
type WalletHandler struct {
	ctrl     *controller.Controller
	sessions wallet.SessionStore
	chain    wallet.BalanceReader
	prices   wallet.PriceReader // nil disables price lookup
	currency string
	upgrader websocket.Upgrader
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(ctrl *controller.Controller, sessions wallet.SessionStore, chain wallet.BalanceReader, prices wallet.PriceReader, currency string) *WalletHandler {
	return &WalletHandler{
		ctrl:     ctrl,
		sessions: sessions,
		chain:    chain,
		prices:   prices,
		currency: currency,
		upgrader: websocket.Upgrader{
			// The API is consumed by the local app shell
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.ErrorResponse{Error: err.Error(), Code: model.ErrorCode(err)})
}

// statusFor maps an error to the HTTP status of its response
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrUnknownWallet), errors.Is(err, model.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConnectInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrWalletNotInstalled):
		return http.StatusFailedDependency
	case errors.Is(err, model.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *WalletHandler) provider(w http.ResponseWriter, r *http.Request) (model.WalletType, bool) {
	t, ok := model.ParseWalletType(r.PathValue("provider"))
	if !ok {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "unknown wallet provider"})
		return "", false
	}
	return t, true
}

// Connect handles POST /wallet/{provider}/connect
// @Summary      Connect wallet
// @Description  Opens the wallet app with a connect request. The wallet answers on the callback URL.
// @Tags         wallet
// @Produce      json
// @Param        provider  path      string  true  "phantom, solflare or backpack"
// @Success      202       {object}  model.ConnectResponse
// @Failure      409       {object}  model.ErrorResponse
// @Failure      424       {object}  model.ErrorResponse
// @Router       /wallet/{provider}/connect [post]
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	t, ok := h.provider(w, r)
	if !ok {
		return
	}

	resp, err := h.ctrl.Connect(r.Context(), t)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// ConnectQR handles GET /wallet/{provider}/connect/qr
// @Summary      Connect request as QR code
// @Description  PNG QR code of the last connect URL, for opening the wallet on a phone
// @Tags         wallet
// @Produce      png
// @Param        provider  path      string  true   "phantom, solflare or backpack"
// @Param        size      query     int     false  "Image size in pixels (default 256)"
// @Success      200
// @Failure      404       {object}  model.ErrorResponse
// @Router       /wallet/{provider}/connect/qr [get]
func (h *WalletHandler) ConnectQR(w http.ResponseWriter, r *http.Request) {
	t, ok := h.provider(w, r)
	if !ok {
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxQRSize {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "size must be between 1 and 1024"})
			return
		}
		size = n
	}

	a, err := h.ctrl.Adapter(t)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	connectURL := a.ConnectURL()
	if connectURL == "" {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "no connect request in progress"})
		return
	}

	png, err := qrcode.Encode(connectURL, qrcode.Medium, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Callback handles GET /callback/{provider}
// @Summary      Wallet redirect target
// @Description  Receives the wallet's connect response and hands it to the connection controller
// @Tags         wallet
// @Produce      plain
// @Param        provider  path  string  true  "phantom, solflare or backpack"
// @Success      202
// @Router       /callback/{provider} [get]
func (h *WalletHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.provider(w, r); !ok {
		return
	}

	if err := h.ctrl.Deliver(requestURL(r)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Wallet response received. You can return to the app.\n"))
}

// requestURL rebuilds the absolute URL the wallet redirected to
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// State handles GET /wallet/{provider}/state
// @Summary      Connection state
// @Tags         wallet
// @Produce      json
// @Param        provider  path      string  true  "phantom, solflare or backpack"
// @Success      200       {object}  model.WalletConnectionState
// @Router       /wallet/{provider}/state [get]
func (h *WalletHandler) State(w http.ResponseWriter, r *http.Request) {
	t, ok := h.provider(w, r)
	if !ok {
		return
	}

	st, err := h.ctrl.State(t)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Disconnect handles POST /wallet/{provider}/disconnect
// @Summary      Disconnect wallet
// @Description  Clears the session, the auth state and any pending keypair
// @Tags         wallet
// @Produce      json
// @Param        provider  path      string  true  "phantom, solflare or backpack"
// @Success      200       {object}  model.WalletConnectionState
// @Router       /wallet/{provider}/disconnect [post]
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	t, ok := h.provider(w, r)
	if !ok {
		return
	}

	if err := h.ctrl.Disconnect(r.Context(), t); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	st, err := h.ctrl.State(t)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Session handles GET /wallet/session
// @Summary      Current wallet session
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletSession
// @Failure      404  {object}  model.ErrorResponse
// @Router       /wallet/session [get]
func (h *WalletHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, model.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GetBalance handles GET /wallet/balance
// @Summary      Connected wallet balance
// @Description  SOL and USDC balance of the connected wallet, with the SOL price when available
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.BalanceResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := wallet.GetBalance(r.Context(), h.sessions, h.chain, h.prices, h.currency)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
