// seed inserts a handful of campaigns into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nexusmsg/campaign-engine/internal/infrastructure/postgres"
)

const seedUserID = "seed-user"

type campaignSpec struct {
	title        string
	scheduleType string
	groups       []string
	variants     string
	interval     int
	times        string
	delaySec     int
}

var campaigns = []campaignSpec{
	// One-shot, three targets, single variant
	{
		title:        "Launch announcement",
		scheduleType: "once",
		groups:       []string{"group-100", "group-101", "group-102"},
		variants:     `[{"text":"We are live! Check out the new release."}]`,
	},

	// Interval campaign with two rotating variants and a send delay
	{
		title:        "Hourly promo",
		scheduleType: "interval",
		groups:       []string{"group-200", "group-201", "group-202", "group-203"},
		variants:     `[{"text":"Flash sale, 20% off for the next hour"},{"text":"Last chance: 20% off ends soon"}]`,
		interval:     1,
		delaySec:     5,
	},

	// Daily digest at two fixed times
	{
		title:        "Daily digest",
		scheduleType: "specific_times",
		groups:       []string{"group-300", "group-301"},
		variants:     `[{"text":"Good morning! Here is today's digest."}]`,
		times:        `[{"hour":9,"minute":0},{"hour":18,"minute":30}]`,
	},
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	scheduledAt := time.Now().Add(time.Minute)

	var ids []string
	for _, spec := range campaigns {
		var scheduled *time.Time
		var interval *int
		var times *string
		switch spec.scheduleType {
		case "once":
			scheduled = &scheduledAt
		case "interval":
			interval = &spec.interval
		case "specific_times":
			times = &spec.times
		}

		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO campaigns (
				user_id, title, connection_id, group_ids, variants,
				schedule_type, scheduled_at, interval_hours, specific_times,
				delay_seconds, status, total_count
			) VALUES ($1, $2, 'seed-connection', $3, $4, $5, $6, $7, $8, $9, 'paused', $10)
			RETURNING id`,
			seedUserID, spec.title, spec.groups, spec.variants,
			spec.scheduleType, scheduled, interval, times,
			spec.delaySec, len(spec.groups),
		).Scan(&id)
		if err != nil {
			log.Fatalf("insert campaign %q: %v", spec.title, err)
		}
		ids = append(ids, id)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User ID:           %s\n", seedUserID)
	fmt.Printf("  Campaigns created: %d (all paused)\n", len(ids))
	for i, id := range ids {
		fmt.Printf("    %-24s %s\n", campaigns[i].title, id)
	}
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — mint a JWT for the seed user (HS256, sub=seed-user) with your JWT_SECRET.")
	fmt.Println()
	fmt.Println("  Step 2 — list the campaigns:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/campaigns -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 3 — start one (requires the gateway connection to be connected):")
	fmt.Println()
	fmt.Println("    curl -s -X POST http://localhost:8080/campaigns/CAMPAIGN_ID/start \\")
	fmt.Println("      -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Then watch the outcomes:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/campaigns/CAMPAIGN_ID/outcomes -H \"Authorization: Bearer $JWT\"")
}
