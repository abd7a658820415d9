package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"evening/internal/app"
	"evening/internal/storage/ch"
	"evening/migrations"
)

const devPassword = "devpassword"

func main() {
	ctx := context.Background()

	// Token and allowed users usually come from .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	log.Println("Starting ClickHouse testcontainer...")

	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(devPassword),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	mapped, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		log.Fatalf("Invalid container port %q: %v", mapped.Port(), err)
	}

	log.Printf("ClickHouse started at %s:%d", host, port)

	// A fresh container has no tables yet
	db := ch.OpenSQL(ch.Options(host, port, "default", "default", devPassword, false))
	if err := migrations.Up(db); err != nil {
		db.Close()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	db.Close()

	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", mapped.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", devPassword)
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("WEBHOOK_MODE", "false")
	os.Setenv("DEBUG", "true")

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" || os.Getenv("ALLOWED_USER_IDS") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN and ALLOWED_USER_IDS must be set in .env or the environment.")
	}

	log.Println("Starting application with ClickHouse backend...")

	application, err := app.New()
	if err != nil {
		log.Printf("Failed to create application: %v", err)
		return
	}

	// Run blocks until SIGINT or SIGTERM, then the deferred cleanup runs
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
