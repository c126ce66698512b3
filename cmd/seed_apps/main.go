package main

import (
	"fmt"
	"log"

	"salome-be/internal/config"
	"salome-be/internal/database"
)

type seedApp struct {
	id              string
	name            string
	category        string
	basePrice       int64
	maxGroupMembers int
	adminFeePct     int
	popular         bool
}

var apps = []seedApp{
	{"netflix", "Netflix Premium", "streaming", 186000, 4, 0, true},
	{"disney_plus", "Disney+ Hotstar", "streaming", 199000, 4, 0, true},
	{"spotify", "Spotify Family", "music", 119000, 6, 0, true},
	{"youtube_premium", "YouTube Premium Family", "streaming", 139000, 6, 0, true},
	{"apple_music", "Apple Music Family", "music", 89000, 6, 0, false},
	{"canva", "Canva for Teams", "productivity", 250000, 5, 5, false},
	{"adobe_creative", "Adobe Creative Cloud", "productivity", 852000, 2, 5, false},
	{"office_365", "Microsoft 365 Family", "productivity", 129000, 6, 0, false},
	{"calm", "Calm Premium", "wellness", 160000, 6, 0, false},
	{"headspace", "Headspace Family", "wellness", 140000, 6, 0, false},
}

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	for _, app := range apps {
		result, err := db.Exec(`
			INSERT INTO apps (id, name, category, base_price, max_group_members, admin_fee_percentage, is_popular, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				base_price = EXCLUDED.base_price,
				max_group_members = EXCLUDED.max_group_members,
				admin_fee_percentage = EXCLUDED.admin_fee_percentage,
				is_popular = EXCLUDED.is_popular,
				updated_at = NOW()
		`, app.id, app.name, app.category, app.basePrice, app.maxGroupMembers, app.adminFeePct, app.popular)
		if err != nil {
			log.Printf("Error seeding %s: %v", app.id, err)
			continue
		}
		rows, _ := result.RowsAffected()
		fmt.Printf("Seeded %s: base_price=%d, rows_affected=%d\n", app.id, app.basePrice, rows)
	}

	fmt.Println("App catalog seeding completed")
}
