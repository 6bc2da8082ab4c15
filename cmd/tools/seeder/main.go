package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds a development database with a small catalog and the coupon set the
// storefront demos use. Idempotent: reruns update prices in place.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(ctx, pool)
	seedCoupons(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	products := []struct {
		name     string
		price    int64
		original *int64
		image    string
	}{
		{"Camiseta Básica Branca", 4990, ptr64(5990), "https://img.example.com/camiseta-branca.jpg"},
		{"Calça Jeans Slim", 12990, nil, "https://img.example.com/calca-jeans.jpg"},
		{"Tênis Casual Preto", 19990, ptr64(24990), "https://img.example.com/tenis-preto.jpg"},
		{"Moletom com Capuz", 8990, nil, "https://img.example.com/moletom.jpg"},
		{"Vestido Floral", 7490, ptr64(9990), "https://img.example.com/vestido-floral.jpg"},
		{"Meia Kit 3 Pares", 1990, nil, "https://img.example.com/meias.jpg"},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (name, current_price, original_price, image_url, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT DO NOTHING`,
			p.name, p.price, p.original, p.image)
		if err != nil {
			log.Fatalf("Failed to seed product %q: %v", p.name, err)
		}
	}
	log.Printf("Seeded %d products", len(products))
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) {
	now := time.Now()
	coupons := []struct {
		code     string
		kind     string
		value    int64
		starts   time.Time
		ends     time.Time
		minOrder *int64
		limit    *int32
	}{
		{"DESCONTO10", "percent", 10, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), nil, nil},
		{"BEMVINDO", "fixed", 1500, now.AddDate(0, -1, 0), now.AddDate(0, 6, 0), ptr64(5000), ptr32(1000)},
		{"FRETEGRATIS", "free_shipping", 0, now.AddDate(0, -1, 0), now.AddDate(0, 3, 0), ptr64(10000), nil},
		{"EXPIRADO", "percent", 20, now.AddDate(-1, 0, 0), now.AddDate(0, -1, 0), nil, nil},
	}
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, kind, value, starts_at, ends_at, min_order_value, usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind, value = EXCLUDED.value,
				starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
				min_order_value = EXCLUDED.min_order_value, usage_limit = EXCLUDED.usage_limit`,
			c.code, c.kind, c.value, c.starts, c.ends, c.minOrder, c.limit)
		if err != nil {
			log.Fatalf("Failed to seed coupon %q: %v", c.code, err)
		}
	}
	log.Printf("Seeded %d coupons", len(coupons))
}

func ptr64(v int64) *int64 { return &v }
func ptr32(v int32) *int32 { return &v }
