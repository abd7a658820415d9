package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"evening/internal/config"
	"evening/internal/storage/ch"
	"evening/migrations"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	// Get command from arguments (default to "up")
	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	// New migration files are written to the source tree, not the embedded FS
	if command == "create" {
		if len(args) < 1 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		if err := goose.Create(nil, "./migrations", args[0], "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("Created migration: %s", args[0])
		return
	}

	cfg, err := config.LoadClickHouseFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db := ch.OpenSQL(ch.Options(cfg.ClickHouseHost, cfg.ClickHousePort, cfg.ClickHouseDatabase,
		cfg.ClickHouseUser, cfg.ClickHousePassword, cfg.ClickHouseUseTLS))
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to ClickHouse successfully")

	log.Printf("Running migrations: %s", command)
	switch command {
	case "up", "down", "status", "version":
		if err := migrations.Run(db, command, args...); err != nil {
			log.Fatalf("Migration command failed: %v", err)
		}
		log.Printf("Migration command %s completed", command)
	default:
		log.Fatalf("Unknown command: %s. Available commands: up, down, status, version, create", command)
	}
}
