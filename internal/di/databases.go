package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/investbot/balancer/internal/config"
	"github.com/investbot/balancer/internal/database"
)

// InitializeDatabases opens config.db and client_data.db and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	configDB, err := openDatabase(filepath.Join(cfg.DataDir, "config.db"), database.ProfileStandard, "config")
	if err != nil {
		return nil, err
	}
	container.ConfigDB = configDB

	clientDataDB, err := openDatabase(filepath.Join(cfg.DataDir, "client_data.db"), database.ProfileCache, "client_data")
	if err != nil {
		configDB.Close()
		return nil, err
	}
	container.ClientDataDB = clientDataDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(path string, profile database.DatabaseProfile, name string) (*database.DB, error) {
	db, err := database.New(database.Config{Path: path, Profile: profile, Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
