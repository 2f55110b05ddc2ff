// Command mediastage runs the staging API over a single S3-compatible bucket.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/renderstack/mediastage/internal/config"
	"github.com/renderstack/mediastage/internal/imaging"
	"github.com/renderstack/mediastage/internal/logger"
	"github.com/renderstack/mediastage/internal/objstore"
	"github.com/renderstack/mediastage/internal/objstore/minio"
	"github.com/renderstack/mediastage/internal/server"
	"github.com/renderstack/mediastage/internal/staging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logger.SetGlobal(log)
	log.Info("starting mediastage")

	host, secure, err := objstore.ParseEndpoint(cfg.Store.EndpointURL)
	if err != nil {
		log.Fatalf("invalid store endpoint: %v", err)
	}

	ctx := context.Background()
	store, err := minio.New(ctx, &objstore.Config{
		Provider:        objstore.ProviderMinIO,
		Endpoint:        host,
		AccessKey:       cfg.Store.AccessKey,
		SecretKey:       cfg.Store.SecretKey,
		UseSSL:          secure,
		Region:          cfg.Store.Region,
		Bucket:          cfg.Store.Bucket,
		AddressingStyle: cfg.Store.AddressingStyle,
	})
	if err != nil {
		log.Fatalf("failed to connect to object store: %v", err)
	}
	defer store.Close()
	log.InfoWith("object store connected", map[string]interface{}{
		"endpoint": host,
		"bucket":   cfg.Store.Bucket,
	})

	stager := staging.New(store, log, staging.Config{
		InputPrefix: cfg.Staging.InputPrefix,
		OutputRoot:  cfg.Staging.OutputRoot,
		ListLimit:   cfg.Staging.ListLimit,
	})

	// Missing folders are recreated on demand during saves, so a failed
	// provisioning pass is not fatal.
	if err := stager.Provision(ctx); err != nil {
		log.WarnWith("staging folder provisioning incomplete", err, map[string]interface{}{
			"input":  cfg.Staging.InputPrefix,
			"output": cfg.Staging.OutputRoot,
		})
	}

	saver := imaging.NewSaver(stager, log)
	api := server.New(store, stager, saver, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown error: %v", err)
	}
	log.Info("server stopped")
}
