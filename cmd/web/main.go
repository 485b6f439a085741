// Command web serves the project postings portal.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nickoftime/keyvault-spo/internal/portal"
	"github.com/nickoftime/keyvault-spo/internal/sharepoint"
	"github.com/nickoftime/keyvault-spo/internal/shutdown"
	"github.com/nickoftime/keyvault-spo/internal/vault"
	"github.com/nickoftime/keyvault-spo/internal/web"
	"github.com/nickoftime/keyvault-spo/pkg/config"
	"github.com/nickoftime/keyvault-spo/pkg/logger"
	"github.com/nickoftime/keyvault-spo/web/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.FromConfig(cfg.LogLevel, cfg.LogFormat)

	log.Info("starting portal",
		"version", health.WebVersion,
		"keyvault", cfg.KeyVaultEndpoint,
		"site", cfg.SiteURL,
		"list", cfg.ListName,
	)

	resolver, err := vault.NewManagedIdentityResolver(cfg.KeyVaultEndpoint, cfg.ManagedIdentityClientID,
		log.WithComponent("vault").Logger)
	if err != nil {
		log.Error("failed to create key vault resolver", "error", err)
		os.Exit(1)
	}

	connector, err := sharepoint.NewConnector(sharepoint.Config{
		SiteURL:  cfg.SiteURL,
		ClientID: cfg.ClientID,
		Tenant:   cfg.Tenant,
	}, nil, log.WithComponent("sharepoint").Logger)
	if err != nil {
		log.Error("failed to create sharepoint connector", "error", err)
		os.Exit(1)
	}

	service := portal.NewService(resolver, portal.SharePointConnector(connector), portal.Config{
		SecretName: cfg.SecretName,
		ListName:   cfg.ListName,
	}, log.WithComponent("portal").Logger)

	checker := health.NewChecker(health.WebVersion, log.WithComponent("health").Logger)
	checker.SetTimeout(5 * time.Second)
	checker.AddCheck("keyvault_identity", resolver.CheckIdentity)

	server := web.NewServer(cfg, service, checker, log.WithComponent("web").Logger)

	coord := shutdown.New(server,
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	os.Exit(coord.Run(server.ListenAndServe))
}
