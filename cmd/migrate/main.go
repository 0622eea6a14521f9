package main

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/config"
	"github.com/iliyamo/podium-scheduler/internal/database"
)

// migrate applies the schema and exits. Safe to run on every deploy.
func main() {
	cfg := config.Load()
	db, err := database.Open(database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.Fatalf("store: open: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("store: %v", err)
	}
	log.Printf("store: schema up to date (%d statements)", len(database.Statements()))
}
