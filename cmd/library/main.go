package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mkravch/media_library/internal/config"
	"github.com/mkravch/media_library/internal/events"
	"github.com/mkravch/media_library/internal/handlers"
	"github.com/mkravch/media_library/internal/ledger"
	"github.com/mkravch/media_library/internal/logging"
	mwauth "github.com/mkravch/media_library/internal/middleware/auth"
	loggingmw "github.com/mkravch/media_library/internal/middleware/logging"
	"github.com/mkravch/media_library/internal/search"
	"github.com/mkravch/media_library/internal/session"
	"github.com/mkravch/media_library/internal/tokens"
	httpserver "github.com/mkravch/media_library/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	issuer := &tokens.Issuer{
		AccessSecret:  []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
		AccessTTL:     configuration.AccessTTL,
		RefreshTTL:    configuration.RefreshTTL,
	}
	revocations := &ledger.Ledger{DB: db}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer(configuration.KAFKA_ADDRESS)
	} else {
		logger.Warn("KAFKA_ADDRESS not set, domain events disabled")
	}

	esClient, err := search.NewClient(configuration)
	if err != nil {
		logger.Warn("elasticsearch unavailable, local search disabled", "error", err)
		esClient = nil
	}

	svc := &session.Service{
		DB:       db,
		Issuer:   issuer,
		Ledger:   revocations,
		Producer: producer,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Auth: &handlers.AuthHandler{Svc: svc},
		Books: &handlers.BookHandler{
			DB:             db,
			ES:             esClient,
			Index:          search.BookIndex,
			Producer:       producer,
			GoogleBooksURL: configuration.GOOGLE_BOOKS_URL,
			GoogleAPIKey:   configuration.GOOGLE_API_KEY,
		},
		Admin: &handlers.AdminHandler{DB: db, ES: esClient, Index: search.BookIndex},
		Guard: &mwauth.Middleware{Issuer: issuer, Ledger: revocations},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("library server started", "port", configuration.PORT)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
