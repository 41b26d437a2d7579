package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/clientecho/backend/internal/ai"
	"github.com/clientecho/backend/internal/handlers"
	"github.com/clientecho/backend/internal/mailer"
	"github.com/clientecho/backend/internal/middleware"
	"github.com/clientecho/backend/internal/quotecard"
	"github.com/clientecho/backend/internal/social"
	"github.com/clientecho/backend/internal/workers"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Get database URL from environment
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Run migrations on startup
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to init migration driver: %v", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Database migration failed: %v", err)
	}
	log.Println("Database is up-to-date")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// Optional collaborators degrade to logged 503s on the endpoints that
	// need them, so a dev box runs without every credential configured.
	var cipher *social.TokenCipher
	if c, err := social.NewTokenCipherFromEnv(); err != nil {
		log.Printf("[Startup] token cipher disabled: %v", err)
	} else {
		cipher = c
	}

	var cards *quotecard.Renderer
	if qr, err := quotecard.NewRendererFromEnv(); err != nil {
		log.Printf("[Startup] quote cards disabled: %v", err)
	} else {
		cards = qr
	}

	// Initialize handlers
	h := handlers.New(db, handlers.Options{
		AI:           ai.NewClientFromEnv(),
		Cipher:       cipher,
		Mailer:       mailer.NewFromEnv(),
		QuoteCards:   cards,
		JWTSecret:    []byte(jwtSecret),
		PublicOrigin: os.Getenv("PUBLIC_ORIGIN"),
	})

	// Setup router
	r := mux.NewRouter()
	handlers.RegisterRoutes(h, r)

	// Credit pre-check in front of story generation
	credits := middleware.NewCreditEnforcer(db, []byte(jwtSecret))
	r.Use(credits.Middleware)

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + port,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Handle graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background: expired token cleanup + interview session sweep
	{
		enabled := os.Getenv("TOKEN_CLEANUP_ENABLED")
		if enabled == "" || enabled == "true" {
			intervalMs := 0
			if v := os.Getenv("TOKEN_CLEANUP_INTERVAL_SECONDS"); v != "" {
				var secs int
				if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
					intervalMs = secs * 1000
				}
			}
			w := &workers.TokenCleanupWorker{
				DB:              db,
				CheckIntervalMs: intervalMs,
				SweepSessions:   func() { h.SweepSessions() },
			}
			go w.Start(rootCtx)
		} else {
			log.Printf("[TokenCleanupWorker] disabled via TOKEN_CLEANUP_ENABLED=%q", enabled)
		}
	}

	go func() {
		<-stop
		log.Println("Shutting down server...")
		cancel()
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
