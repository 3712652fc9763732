// Command scimserver runs the SCIM 2.0 provisioning server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pranems/scimserver/auth"
	"github.com/pranems/scimserver/config"
	"github.com/pranems/scimserver/internal/endpoint"
	"github.com/pranems/scimserver/internal/logging"
	"github.com/pranems/scimserver/internal/requestlog"
	"github.com/pranems/scimserver/internal/storage"
	"github.com/pranems/scimserver/resource"
	"github.com/pranems/scimserver/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer store.Close()

	logger := logging.New(500)
	logCfg := logging.DefaultConfig()
	logCfg.GlobalLevel = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = logging.Format(cfg.LogFormat)
	logCfg.IncludePayloads = cfg.LogIncludePayloads
	logCfg.IncludeStackTraces = cfg.LogIncludeStacks
	logCfg.MaxPayloadSize = cfg.LogMaxPayloadSize
	for cat, lvl := range cfg.LogCategoryLevels {
		logCfg.CategoryLevels[logging.Category(cat)] = logging.ParseLevel(lvl)
	}
	logger.Reconfigure(logCfg)

	reqlogBuffer := requestlog.New(store)
	reqlogBuffer.Start()
	defer reqlogBuffer.Stop()

	authenticator := auth.NewSCIMAuthenticator(cfg.SharedSecret, cfg.JWTSecret)
	endpoints := endpoint.New(store)
	users := resource.NewUserService(store)
	groups := resource.NewGroupService(store)

	pipeline := server.NewPipeline(authenticator, endpoints, logger, reqlogBuffer, cfg.CORSOrigins)
	admin := server.NewAdmin(endpoints, logger, store, cfg.DatabaseURL)
	router := server.NewRouter(pipeline, cfg.BaseURL, users, groups, endpoints, admin)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("scimserver listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	reqlogBuffer.Flush()
}
