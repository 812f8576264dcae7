package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Mascaro101/Echo-backend/internal/auth"
	"github.com/Mascaro101/Echo-backend/internal/chat"
	"github.com/Mascaro101/Echo-backend/internal/config"
	"github.com/Mascaro101/Echo-backend/internal/directory"
	"github.com/Mascaro101/Echo-backend/internal/handlers"
	"github.com/Mascaro101/Echo-backend/internal/store"
	"github.com/Mascaro101/Echo-backend/internal/ws"
)

func main() {
	// Load configuration from environment
	cfg := config.Load()

	// Connect the store: MongoDB when configured, in-memory otherwise
	st := openStore(cfg)

	// Initialize services
	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.BcryptCost, cfg.TokenTTL)
	dir := directory.New(st)
	relay := chat.NewRelay(st, chat.NewSessions(), chat.NewRooms())

	// Connection gateway
	gateway := ws.NewGateway(authSvc, relay, dir, cfg.CORSOrigins)

	// Set up router with middleware
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	log.Printf("CORS allowed origins: %v", cfg.CORSOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", handlers.HealthCheck)

	// WebSocket endpoint; the bearer token rides the handshake query string
	r.Get("/ws", gateway.ServeWS)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Echo relay starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

// openStore connects MongoDB when a URI is configured and falls back to the
// in-memory store otherwise, so the relay can run without a database in
// development.
func openStore(cfg *config.Config) store.Store {
	if cfg.MongoURI == "" {
		log.Println("Using in-memory store")
		return store.NewMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Connecting to MongoDB: %v", err)
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Ensuring indexes: %v", err)
	}
	log.Println("Connected to MongoDB")
	return st
}
