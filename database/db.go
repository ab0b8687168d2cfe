package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"homeserve/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MongoClient is the global MongoDB client instance.
var MongoClient *mongo.Client

// PostgresDB is the global gorm handle when STORE_DRIVER=postgres.
var PostgresDB *gorm.DB

// InitDB initializes the MongoDB connection.
func InitDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.AppConfig.DatabaseURL)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("failed to ping MongoDB: %v", err)
	}
	MongoClient = client
	log.Println("Connected to MongoDB successfully!")
}

// MongoDatabase returns the configured application database.
func MongoDatabase() *mongo.Database {
	return MongoClient.Database(config.AppConfig.MongoDB)
}

// InitPostgres opens the gorm connection used by the Postgres booking store.
func InitPostgres() error {
	if config.AppConfig.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=postgres")
	}

	level := logger.Warn
	if !config.IsProduction() {
		level = logger.Info
	}
	gormLogger := logger.New(
		log.Default(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(config.AppConfig.PostgresDSN), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping Postgres: %w", err)
	}

	PostgresDB = db
	log.Println("Connected to Postgres successfully!")
	return nil
}
