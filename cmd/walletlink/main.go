// walletlink serves the wallet connection API and receives the wallets' deep-link redirects.
// Usage: go run ./cmd/walletlink [initial-url]
//
// An initial URL, when the OS launched the app from a wallet redirect, is handed
// to the connection controller before anything else.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/AlexZinkM/walletlink/docs"
	"github.com/AlexZinkM/walletlink/internal/api"
	"github.com/AlexZinkM/walletlink/internal/client"
	"github.com/AlexZinkM/walletlink/internal/config"
	"github.com/AlexZinkM/walletlink/internal/controller"
	"github.com/AlexZinkM/walletlink/internal/deeplink"
	"github.com/AlexZinkM/walletlink/internal/handler"
	"github.com/AlexZinkM/walletlink/internal/model"
	"github.com/AlexZinkM/walletlink/internal/session"
	"github.com/AlexZinkM/walletlink/internal/storage"
	"github.com/AlexZinkM/walletlink/wallet"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("walletlink stopped")
	}
}

func run() error {
	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	var passphrase []byte
	if cfg.StoreEncrypt {
		if err := config.PromptForPassphrase(); err != nil {
			return err
		}
		if passphrase, err = config.GetStorePassphraseBytes(); err != nil {
			return err
		}
		defer clear(passphrase)
	}

	store, err := storage.Open(storage.Options{
		Backend:    cfg.StoreBackend,
		Path:       cfg.StorePath,
		Passphrase: passphrase,
		Logger:     log.StandardLogger(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	sessions := session.New(store, store)
	ctrl := controller.New(controller.WithPollInterval(cfg.PollInterval))
	defer ctrl.Close()

	cluster := model.Cluster(cfg.Cluster)
	settings := wallet.Settings{
		Cluster:      cluster,
		AppURL:       cfg.AppURL,
		RedirectBase: cfg.RedirectBase,
	}
	deps := wallet.Deps{
		Keys:     store,
		Sessions: sessions,
		Opener:   deeplink.SystemOpener{},
	}
	for _, t := range wallet.SupportedWallets() {
		a, err := wallet.NewForType(t, settings, deps,
			wallet.WithDuplicateWindow(cfg.DuplicateWindow),
			wallet.WithStateListener(ctrl.Notify),
		)
		if err != nil {
			return err
		}
		ctrl.Register(a)
	}

	var initialURL string
	if len(os.Args) > 1 {
		initialURL = os.Args[1]
	}
	if err := ctrl.Start(initialURL); err != nil {
		return err
	}

	chain, err := client.NewSolanaClient(cfg.SolanaRPCURL, cluster)
	if err != nil {
		return err
	}
	var prices wallet.PriceReader
	if cfg.PriceCurrency != "" {
		prices = client.NewCoinGeckoClient(cfg.PriceAPIURL)
	}

	walletHandler := handler.NewWalletHandler(ctrl, sessions, chain, prices, cfg.PriceCurrency)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.SetupRouter(walletHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"cluster": cluster,
			"store":   cfg.StoreBackend,
		}).Info("walletlink listening")
		errCh <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigs:
		log.WithField("signal", sig).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
