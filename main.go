package main

import (
	"github.com/google/uuid"

	"github.com/wfunc/worldserver/bus"
	"github.com/wfunc/worldserver/config"
	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/persistence"
	"github.com/wfunc/worldserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize record store
	var db persistence.Database
	switch cfg.Database.Driver {
	case "gorm":
		db, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "postgres":
		db, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	case "memory":
		db = persistence.NewSeededMemory()
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to record store: %v", err)
	}
	logger.Log.Info("Record store ready.")

	// This instance's identity on the bus
	instanceID := uuid.New().String()

	// Initialize bus adapter
	b, err := bus.NewRedisBus(cfg.Redis, instanceID, func(err error) {
		logger.Log.Errorf("Bus error: %v", err)
	})
	if err != nil {
		logger.Log.Fatalf("Failed to create bus adapter: %v", err)
	}

	// Initialize game server
	gameServer := server.NewGameServer(cfg, instanceID, db, b)

	// Start server
	logger.Log.Infof("Starting instance %s on %s", instanceID, cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
