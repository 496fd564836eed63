package main

import (
	"context"
	"log"

	"syllabus-calendar-be/internal/bootstrap"
	"syllabus-calendar-be/internal/config"
	"syllabus-calendar-be/internal/server"
	"syllabus-calendar-be/internal/tracer"
	"syllabus-calendar-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Progress Consumer...")
		if err := container.ProgressConsumer.Consume(context.Background()); err != nil {
			log.Printf("Background Progress Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
