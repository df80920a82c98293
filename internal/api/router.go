package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"

	"github.com/AlexZinkM/walletlink/internal/handler"

	log "github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(walletHandler *handler.WalletHandler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Wallet endpoints
	mux.HandleFunc("POST /wallet/{provider}/connect", walletHandler.Connect)
	mux.HandleFunc("GET /wallet/{provider}/connect/qr", walletHandler.ConnectQR)
	mux.HandleFunc("GET /wallet/{provider}/state", walletHandler.State)
	mux.HandleFunc("POST /wallet/{provider}/disconnect", walletHandler.Disconnect)
	mux.HandleFunc("GET /wallet/session", walletHandler.Session)
	mux.HandleFunc("GET /wallet/balance", walletHandler.GetBalance)
	mux.HandleFunc("GET /wallet/events", walletHandler.Events)

	// Wallet redirect target (WALLET_REDIRECT_BASE)
	mux.HandleFunc("GET /callback/{provider}", walletHandler.Callback)

	return logRequests(mux)
}

// logRequests logs method, path and status of every request at debug level
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sw.status,
		}).Debug("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets the websocket upgrade take over the connection
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
