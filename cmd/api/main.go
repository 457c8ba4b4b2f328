package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"grimoire/api/internal/app"
	"grimoire/api/internal/config"
	"grimoire/api/internal/docstore"
	"grimoire/api/internal/feature"
	"grimoire/api/internal/legacy"
	"grimoire/api/internal/migrate"
	"grimoire/api/internal/monster"
	"grimoire/api/internal/search"
	"grimoire/api/internal/session"
	"grimoire/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	users := store.NewPostgresStore(db)
	docs := docstore.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	// The legacy bucket only matters for users who have not been migrated yet.
	var legacyStore migrate.LegacyStore
	if strings.TrimSpace(cfg.LegacyEndpoint) != "" {
		client, err := minio.New(cfg.LegacyEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.LegacyAccessKey, cfg.LegacySecretKey, ""),
			Secure: cfg.LegacyUseSSL,
		})
		if err != nil {
			log.Fatalf("legacy store connection failed: %v", err)
		}
		legacyStore = legacy.NewStore(client, cfg.LegacyBucket)
	}

	monsters := monster.NewRepository(docs)
	features := feature.NewRepository(docs)
	rebuilder := feature.NewRebuilder(features)
	runner := migrate.NewRunner(users, legacyStore, monsters, features, rebuilder, log.Default())

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.New(cfg, users, redisStore, docs, runner, searchService)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		service = app.New(cfg, users, users, docs, runner, searchService)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Grimoire API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
