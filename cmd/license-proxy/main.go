package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"freelanceflow/internal/licenseproxy"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := licenseproxy.ConfigFromEnv()
	if cfg.InternalAPIKey == "" {
		logger.Warn("INTERNAL_API_KEY is not set; every request will be rejected")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           licenseproxy.NewRouter(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("license proxy listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
