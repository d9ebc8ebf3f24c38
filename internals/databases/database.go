package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"crecheku_backend/internals/configs"
	"crecheku_backend/internals/features/presence/model"
	"crecheku_backend/internals/features/presence/roster"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	log.Println("🔌 Connecting to PostgreSQL...")

	// statement_timeout guards the scheduler: a stuck day must not hold a pool slot forever
	dsn := configs.DSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "options=-c%20statement_timeout=" + fmt.Sprint(configs.GetEnvInt("DB_STATEMENT_TIMEOUT_MS", 10000))

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // 👍 PgBouncer (transaction pooling) friendly
	}), &gorm.Config{
		Logger: configs.NewGormLogger(),
	})
	if err != nil {
		log.Fatalf("❌ DB connection failed: %v", err)
	}
	DB = db
	log.Println("✅ DB connected.")
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("[DB] pool tune err: %v", err)
		return
	}
	// ⚖️ keep room for backfill parallelism + ops listener
	sqlDB.SetMaxOpenConns(configs.GetEnvInt("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(configs.GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := Ping(context.Background()); err != nil {
			log.Printf("[DB] warm-up ping err: %v", err)
			return
		}
		// the two lookups every scheduler run starts with
		var n int64
		DB.Model(&roster.ChildModel{}).Where("child_is_active = ?", true).Count(&n)
		DB.Model(&model.PresenceSheetModel{}).Where("presence_sheet_date >= CURRENT_DATE - 1").Count(&n)
	}()
}

// Migrate creates or updates the presence tables (and the children table the roster reads).
func Migrate(db *gorm.DB) error {
	tables := append([]any{&roster.ChildModel{}}, model.Tables()...)
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("automigrate presence: %w", err)
	}
	// justification lookups by sheet go through records; this keeps the unresolved count cheap
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_presence_records_sheet_absent
		ON presence_records (presence_record_sheet_id) WHERE presence_record_present = false`).Error; err != nil {
		return fmt.Errorf("create partial index: %w", err)
	}
	log.Println("✅ Presence tables migrated.")
	return nil
}

func Ping(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
