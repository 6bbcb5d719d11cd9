package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"wedding-chat/config"
	"wedding-chat/internal/repository"
	"wedding-chat/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Wedding Chat - Database CLI Tool

Usage:
  migrate [flags] [command]

Commands:
  up          Create or update the conversation and message tables
  down        Drop the conversation and message tables (DANGEROUS)
  status      Show database connection status and table sizes
  reset       Drop and recreate the tables (DANGEROUS)

Flags:
  -yes        Skip the confirmation for down and reset

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  DB_DRIVER=sqlite go run cmd/migrate/main.go -yes reset
`

func main() {
	yes := flag.Bool("yes", false, "Skip confirmation for destructive commands")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		runUp(db)
	case "down":
		confirm(*yes, "drop all chat tables")
		runDown(db)
	case "status":
		showStatus(db)
	case "reset":
		confirm(*yes, "drop and recreate all chat tables")
		runDown(db)
		runUp(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runUp(db *gorm.DB) {
	log.Println("Running migrations UP...")
	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func runDown(db *gorm.DB) {
	log.Println("Dropping tables...")
	if err := repository.DropSchema(db); err != nil {
		log.Fatalf("Drop failed: %v", err)
	}
	log.Println("Tables dropped")
}

func showStatus(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Database handle unavailable: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, model := range repository.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("Cannot inspect %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(model) {
			log.Printf("Table %-15s does not exist", table)
			continue
		}
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			log.Printf("Table %-15s exists (count failed: %v)", table, err)
			continue
		}
		log.Printf("Table %-15s exists (%d rows)", table, count)
	}
}

func confirm(skip bool, action string) {
	if skip {
		return
	}
	fmt.Printf("About to %s. Type 'yes' to continue: ", action)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil || answer != "yes" {
		log.Fatal("Aborted")
	}
}
