package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/services"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		panic(err)
	}

	// The local SQLite default is ephemeral here; point STORE_URL at Turso,
	// Redis or Postgres.
	store, err := repository.Open(context.Background(), cfg.StoreURL, cfg.RedisKeyPrefix)
	if err != nil {
		panic(err)
	}

	mux = handler.NewRouter(cfg, services.NewRedirectService(store), services.NewResolver(store))
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
