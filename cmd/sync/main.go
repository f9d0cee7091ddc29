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

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlearn/outline-service/internal/config"
	"github.com/openlearn/outline-service/internal/logger"
	"github.com/openlearn/outline-service/internal/models"
	"github.com/openlearn/outline-service/internal/repositories"
	"github.com/openlearn/outline-service/internal/services"
)

// outlineDocument is the authored course outline export consumed by the sync
// tool. It is the authoring store's shape, not the canonical model: flat
// visibility flags per item instead of visibility sets.
type outlineDocument struct {
	CourseKey        string            `json:"courseKey"`
	Title            string            `json:"title"`
	PublishedAt      time.Time         `json:"publishedAt"`
	PublishedVersion string            `json:"publishedVersion"`
	Sections         []sectionDocument `json:"sections"`
}

type sectionDocument struct {
	UsageKey           string             `json:"usageKey"`
	Title              string             `json:"title"`
	HideFromTOC        bool               `json:"hideFromToc"`
	VisibleToStaffOnly bool               `json:"visibleToStaffOnly"`
	Sequences          []sequenceDocument `json:"sequences"`
}

type sequenceDocument struct {
	UsageKey           string `json:"usageKey"`
	Title              string `json:"title"`
	HideFromTOC        bool   `json:"hideFromToc"`
	VisibleToStaffOnly bool   `json:"visibleToStaffOnly"`
}

func main() {
	filePath := flag.String("file", "", "path to the course outline JSON document")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: sync -file <outline.json>")
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

	outline, err := loadOutlineDocument(*filePath)
	if err != nil {
		logger.Logger.Fatal("Failed to load outline document", zap.Error(err))
	}

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	outlineRepo := repositories.NewOutlineRepository(db)
	datesRepo := repositories.NewCourseDatesRepository(db)
	outlineService := services.NewOutlineService(outlineRepo, datesRepo, nil, logger.Logger)

	ctx := context.Background()
	if err := outlineService.ReplaceCourseOutline(ctx, outline); err != nil {
		logger.Logger.Fatal("Failed to replace course outline", zap.Error(err))
	}

	logger.Logger.Info("Course outline replaced",
		zap.String("courseKey", outline.CourseKey.String()),
		zap.String("publishedVersion", outline.PublishedVersion),
	)
}

// loadOutlineDocument reads and validates an authored outline document
func loadOutlineDocument(path string) (*models.CourseOutline, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outline document: %w", err)
	}

	var doc outlineDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse outline document: %w", err)
	}

	courseKey, err := models.ParseCourseKey(doc.CourseKey)
	if err != nil {
		return nil, err
	}

	publishedVersion := doc.PublishedVersion
	if publishedVersion == "" {
		publishedVersion = uuid.NewString()
	}

	sections := make([]models.CourseSection, 0, len(doc.Sections))
	sequences := make(map[models.UsageKey]models.LearningSequence)
	hideFromTOC := models.UsageKeySet{}
	visibleToStaffOnly := models.UsageKeySet{}

	for _, sectionDoc := range doc.Sections {
		sectionKey, err := models.ParseUsageKey(sectionDoc.UsageKey)
		if err != nil {
			return nil, err
		}
		if sectionDoc.HideFromTOC {
			hideFromTOC.Add(sectionKey)
		}
		if sectionDoc.VisibleToStaffOnly {
			visibleToStaffOnly.Add(sectionKey)
		}

		sectionSequences := make([]models.LearningSequence, 0, len(sectionDoc.Sequences))
		for _, seqDoc := range sectionDoc.Sequences {
			seqKey, err := models.ParseUsageKey(seqDoc.UsageKey)
			if err != nil {
				return nil, err
			}
			sequence := models.LearningSequence{
				UsageKey: seqKey,
				Title:    seqDoc.Title,
			}
			sectionSequences = append(sectionSequences, sequence)
			sequences[seqKey] = sequence
			if seqDoc.HideFromTOC {
				hideFromTOC.Add(seqKey)
			}
			if seqDoc.VisibleToStaffOnly {
				visibleToStaffOnly.Add(seqKey)
			}
		}

		sections = append(sections, models.CourseSection{
			UsageKey:  sectionKey,
			Title:     sectionDoc.Title,
			Sequences: sectionSequences,
		})
	}

	return models.NewCourseOutline(
		courseKey,
		doc.Title,
		doc.PublishedAt,
		publishedVersion,
		sections,
		sequences,
		models.CourseItemVisibility{
			HideFromTOC:        hideFromTOC,
			VisibleToStaffOnly: visibleToStaffOnly,
		},
	)
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

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "outline_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
