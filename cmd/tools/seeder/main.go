package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/container-tracker/internal/store"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

func main() {
	endpointBase := flag.String("endpoint-base", "http://localhost:8080/mock", "base URL for the seeded provider endpoints")
	schedules := flag.Int("schedules", 25, "number of demo schedules to insert")
	email := flag.String("email", "ops@example.com", "recipient for demo schedules")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := store.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	log.Println("Migrations applied")
	if *migrateOnly {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := store.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	seedEndpoints(ctx, pool, *endpointBase)
	seedSchedules(ctx, pool, *schedules, *email)

	log.Println("Seeding completed successfully!")
}

func seedEndpoints(ctx context.Context, pool *pgxpool.Pool, base string) {
	fmt.Println("Seeding provider endpoints...")
	endpoints := map[string]string{}
	for _, v := range tracking.DefaultVariants() {
		id := v.Descriptor().ID
		endpoints[id] = fmt.Sprintf("%s/%s/%s", base, id, tracking.ContainerPlaceholder)
	}
	ids := make([]string, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`INSERT INTO tracking_endpoints (menu_id, endpoint_url, enabled)
			VALUES ($1, $2, true)
			ON CONFLICT (menu_id) DO UPDATE SET endpoint_url = EXCLUDED.endpoint_url, updated_at = now()`, id, endpoints[id])
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatalf("Failed to seed endpoints: %v", err)
	}
	for _, id := range ids {
		fmt.Printf("  %s -> %s\n", id, endpoints[id])
	}
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, n int, email string) {
	fmt.Printf("Seeding %d schedules...\n", n)
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []any{fmt.Sprintf("DEMO%07d", i+1), email, true})
	}
	copied, err := pool.CopyFrom(ctx,
		pgx.Identifier{"schedules"},
		[]string{"container_no", "email_to", "active"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatalf("Failed to seed schedules: %v", err)
	}
	fmt.Printf("  inserted %d rows\n", copied)
}
