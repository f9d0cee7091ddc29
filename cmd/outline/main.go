package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/openlearn/outline-service/internal/cache"
	"github.com/openlearn/outline-service/internal/config"
	"github.com/openlearn/outline-service/internal/logger"
	"github.com/openlearn/outline-service/internal/models"
	"github.com/openlearn/outline-service/internal/repositories"
	"github.com/openlearn/outline-service/internal/services"
)

// Prints the outline a given user sees for a course at a given time, with
// its schedule, as JSON on stdout.
func main() {
	courseKeyStr := flag.String("course", "", "serialized course key, e.g. course-v1:Org+Course+Run")
	userID := flag.Int("user", 0, "user ID (0 = anonymous)")
	username := flag.String("username", "", "username for logging purposes")
	staff := flag.Bool("staff", false, "compute the outline for a staff identity")
	atTimeStr := flag.String("at", "", "RFC3339 time to compute the outline for (default: now)")
	flag.Parse()

	if *courseKeyStr == "" {
		fmt.Fprintln(os.Stderr, "usage: outline -course <course-key> [-user <id>] [-staff] [-at <rfc3339>]")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	courseKey, err := models.ParseCourseKey(*courseKeyStr)
	if err != nil {
		logger.Logger.Fatal("Invalid course key", zap.String("courseKey", *courseKeyStr), zap.Error(err))
	}

	atTime := time.Now().UTC()
	if *atTimeStr != "" {
		atTime, err = time.Parse(time.RFC3339, *atTimeStr)
		if err != nil {
			logger.Logger.Fatal("Invalid -at time", zap.String("at", *atTimeStr), zap.Error(err))
		}
	}

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis if configured; the engine works without the cache
	var outlineCache services.OutlineCache
	if addr := cfg.RedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Logger.Warn("Redis unavailable, running without outline cache", zap.Error(err))
		} else {
			outlineCache = cache.NewRedisOutlineCache(rdb, logger.Logger)
		}
	}

	outlineRepo := repositories.NewOutlineRepository(db)
	datesRepo := repositories.NewCourseDatesRepository(db)
	outlineService := services.NewOutlineService(outlineRepo, datesRepo, outlineCache, logger.Logger)

	user := models.User{
		ID:       *userID,
		Username: *username,
		IsStaff:  *staff,
	}

	details, err := outlineService.GetUserCourseOutlineDetails(context.Background(), courseKey, user, atTime)
	if err != nil {
		logger.Logger.Fatal("Failed to get user course outline", zap.Error(err))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(details); err != nil {
		logger.Logger.Fatal("Failed to encode outline details", zap.Error(err))
	}
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
