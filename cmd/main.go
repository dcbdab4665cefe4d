package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nmoreira/consultorio-server/cmd/api"
	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/db"
	"github.com/nmoreira/consultorio-server/service/calendar"
	"github.com/nmoreira/consultorio-server/service/notification"
	"github.com/nmoreira/consultorio-server/service/scheduler"
	"github.com/nmoreira/consultorio-server/service/settings"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.Appointment{}:      "Appointment",
		&models.AvailabilityRule{}: "AvailabilityRule",
		&models.BlockedDate{}:      "BlockedDate",
		&models.Setting{}:          "Setting",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	// Partial unique index: one booked appointment per (date, time).
	// Cancelled rows keep their slot free for rebooking.
	if err := DB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_booked_slot
		ON appointments (date, time)
		WHERE status <> 'cancelado' AND deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("error creating booked slot index: %w", err)
	}
	log.Println("Booked slot unique index created/verified")

	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	loc := settings.PracticeLocation()
	store := settings.NewStore(DB)
	cal := calendar.NewService(store)
	mailer := notification.NewMailerFromEnv()
	dispatch := notification.NewDispatcher(64, 2)

	reminders := scheduler.NewReminderScheduler(scheduler.NewGormStore(DB, loc), mailer, loc)
	reminders.Initialize()
	reminders.StartDailyRescan()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB, store, cal, dispatch, reminders, mailer)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
	reminders.Stop()
	dispatch.Stop()
}
