package main

import (
	"log"
	"os"

	"ai-command-arbiter/internal/model"
	"ai-command-arbiter/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: gen_random_uuid() comes from pgcrypto on older Postgres
	log.Println("Step 1: Setting up Extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
	}

	// 4. AutoMigrate
	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.TurnLog{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: per-session summary view for dashboards
	log.Println("Step 3: Creating Views...")
	postMigrationSQL := []string{
		`CREATE OR REPLACE VIEW arbiter_session_summary AS
		 SELECT session_id, user_id,
		        COUNT(*) AS turns,
		        COUNT(*) FILTER (WHERE action = 'execute') AS executed,
		        COUNT(*) FILTER (WHERE action = 'clarify') AS clarified,
		        SUM(llm_calls) AS llm_calls,
		        MAX(created_at) AS last_turn_at
		 FROM arbiter_turn_logs
		 GROUP BY session_id, user_id;`,
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
