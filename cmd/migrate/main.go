package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/atelierops/api/migrations"
)

func main() {
	_ = godotenv.Load()

	down := flag.Bool("down", false, "roll back the latest migration instead of applying pending ones")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if *down {
		err = migrations.Down(db)
	} else {
		err = migrations.Up(db)
	}
	if err != nil {
		log.Fatal(err)
	}
}
