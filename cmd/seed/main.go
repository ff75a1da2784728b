package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/atelierops/api/internal/domain"
	"github.com/atelierops/api/internal/store/postgres"
)

// starterCatalog is the price list a new workshop usually starts from.
var starterCatalog = []struct {
	name string
	cost string
}{
	{"Shirt", "50.00"},
	{"Trousers", "30.00"},
	{"Kaba", "200.00"},
	{"Smock", "80.00"},
	{"Dress", "120.00"},
}

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	slug := envOrDefault("SEED_ORG_SLUG", "local-atelier")
	name := envOrDefault("SEED_ORG_NAME", "Local Atelier")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	var orgID uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO organizations (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, slug, name).Scan(&orgID)
	if err != nil {
		log.Fatalf("upsert organization: %v", err)
	}

	services := make([]domain.Service, 0, len(starterCatalog))
	for _, item := range starterCatalog {
		services = append(services, domain.Service{
			OrganizationID: orgID,
			Name:           item.name,
			UnitCost:       decimal.RequireFromString(item.cost),
		})
	}
	stored, err := postgres.New(pool).UpsertServices(ctx, orgID, services)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}

	fmt.Printf("seeded organization %s (%s) with %d services\n", slug, orgID, len(stored))
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
