package main

import (
	"context"
	"hos-dispatch-service/internal/adapters/repositories"
	"hos-dispatch-service/internal/config"
	"hos-dispatch-service/internal/platform/db"
	"hos-dispatch-service/internal/platform/logging"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dbtool prepares the Postgres schema for the plan store and routing caches.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
	logger := logging.New("hos-dbtool", config.Get("LOG_LEVEL", "info"))

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, databaseURL, db.DefaultOptions())
	if err != nil {
		logger.Error("connect", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		logger.Error("schema initialization failed", "err", err)
		os.Exit(1)
	}
	logger.Info("schema ready")
}
