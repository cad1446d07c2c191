package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openlancer/escrowd/internal/config"
	"github.com/openlancer/escrowd/internal/core/application"
	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/openlancer/escrowd/internal/infrastructure/anchor"
	"github.com/openlancer/escrowd/internal/infrastructure/db"
	"github.com/openlancer/escrowd/internal/infrastructure/ledger"
	"github.com/openlancer/escrowd/internal/infrastructure/notifier/webhook"
	scheduler "github.com/openlancer/escrowd/internal/infrastructure/scheduler/gocron"
	"github.com/openlancer/escrowd/internal/infrastructure/wallet"
	"github.com/openlancer/escrowd/internal/interface/web"
	log "github.com/sirupsen/logrus"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	log.Info("starting escrowd...")

	dbSvc, err := db.NewService(db.ServiceConfig{
		DbType:   cfg.DbType,
		DbConfig: []any{cfg.Datadir, nil},
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	var walletSvc ports.WalletSigner
	if cfg.WalletMnemonic != "" {
		walletSvc, err = wallet.NewServiceFromMnemonic(cfg.WalletMnemonic, nil)
	} else {
		walletSvc, err = wallet.NewServiceFromKey(cfg.WalletPrivateKey, nil)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to init wallet")
	}

	if cfg.LedgerURL == "" {
		log.Fatal("LEDGER_URL must be set")
	}
	ledgerSvc := ledger.NewHTTPService(cfg.LedgerURL, time.Duration(cfg.TxTimeout)*time.Second)

	anchorSvc := anchor.NewClient()

	schedulerSvc := scheduler.NewScheduler()
	schedulerSvc.Start()

	var notifierSvc ports.NotificationSink
	if cfg.WebhookURL != "" {
		notifierSvc = webhook.NewService(cfg.WebhookURL)
	}

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	appSvc := application.NewService(
		buildInfo, dbSvc, walletSvc, ledgerSvc, anchorSvc, schedulerSvc, notifierSvc,
		application.SettlementAsset{Code: cfg.AssetCode, Issuer: cfg.AssetIssuer},
		time.Duration(cfg.PollInterval)*time.Second,
	)

	srv := web.NewServer(appSvc, cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("http server exited")
		}
	case sig := <-sigCh:
		log.Infof("received signal %s, shutting down...", sig)
	}

	srv.Stop()
	appSvc.Stop()
	log.Info("shutdown complete")
}
