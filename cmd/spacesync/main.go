package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/syncspace/spacesync/internal/config"
	"github.com/syncspace/spacesync/internal/crypto"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/internal/registry"
	"github.com/syncspace/spacesync/internal/service"
	"github.com/syncspace/spacesync/internal/store"
	"github.com/syncspace/spacesync/internal/transport"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("spacesync")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	keys := crypto.NewKeyChain()
	provisioner := store.NewProvisioner(cfg.App.DataDir, log)
	reg := registry.New(cfg.App.RegistryFile, keys, provisioner, log)

	// Secrets travel through the environment only, never flags: the raw
	// passphrase, or a cached derived key from a prior DeriveKey call.
	creds := registry.Credentials{
		Passphrase: os.Getenv("SPACESYNC_PASSPHRASE"),
		DerivedKey: os.Getenv("SPACESYNC_DERIVED_KEY"),
	}

	if !reg.Exists() {
		if creds.Passphrase == "" {
			log.Fatal().Msg("no registry found; set SPACESYNC_PASSPHRASE to create one")
		}
		if _, err := reg.Create(creds.Passphrase); err != nil {
			log.Fatal().Err(err).Msg("create registry")
		}
	}

	_, payload, err := reg.Load(creds)
	if err != nil {
		log.Fatal().Err(err).Msg("unlock registry")
	}
	if len(payload.Spaces) == 0 {
		log.Info().Msg("no spaces registered, nothing to sync")
		return
	}
	if cfg.Remote.URL == "" {
		log.Info().Msg("no remote host configured, nothing to sync")
		return
	}

	dial := func(ctx context.Context) (service.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.Remote.DialTimeout)
		defer cancel()

		conn, err := transport.Dial(dialCtx, cfg.Remote.URL, log)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	manager := service.NewManager(service.ManagerConfig{
		DeviceToken:  cfg.Device.Token,
		DeviceType:   cfg.Device.Type,
		TickInterval: cfg.Workers.TickInterval,
		ReaskAfter:   cfg.Workers.ReaskAfter,
	}, provisioner, dial, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, entry := range payload.Spaces {
		if err := manager.StartSpace(ctx, entry); err != nil {
			log.Error().Err(err).Str("space", entry.Name).Msg("start space sync")
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	manager.StopAll()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
