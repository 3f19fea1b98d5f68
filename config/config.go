package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config adalah konfigurasi aplikasi, dibaca dari environment (+ file .env bila ada).
type Config struct {
	AppPort   string `env:"APP_PORT" envDefault:"8080"`
	AppMode   string `env:"APP_MODE" envDefault:"development"`
	JWTSecret string `env:"JWT_SECRET"`

	Postgres    PostgresConfig    `envPrefix:"DB_"`
	Mongo       MongoConfig       `envPrefix:"MONGO_"`
	RedisAddr   string            `env:"REDIS_ADDR"`
	Oracle      OracleConfig      `envPrefix:"ORACLE_"`
	Vision      VisionConfig      `envPrefix:"VISION_"`
	Leaderboard LeaderboardConfig `envPrefix:"LEADERBOARD_"`
	Streak      StreakConfig      `envPrefix:"STREAK_"`
	Awards      AwardConfig       `envPrefix:"AWARD_"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

type PostgresConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"credential_engagement"`
	Port     string `env:"PORT" envDefault:"5432"`
	TimeZone string `env:"TIMEZONE" envDefault:"UTC"`
}

// DSN membentuk connection string untuk gorm.io/driver/postgres.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.TimeZone)
}

type MongoConfig struct {
	URI    string `env:"URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"DB_NAME" envDefault:"credential_engagement"`
}

// OracleConfig: layanan eksternal ekstraksi teks + penilaian keaslian sertifikat.
type OracleConfig struct {
	URL         string        `env:"URL"`
	APIKey      string        `env:"API_KEY"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"2"`
	// ConfidenceScale: skala confidence yang dikirim oracle, tetap untuk satu deployment.
	ConfidenceScale string `env:"CONFIDENCE_SCALE" envDefault:"fraction"`
}

const (
	ConfidenceScaleFraction = "fraction" // 0-1
	ConfidenceScalePercent  = "percent"  // 0-100
)

type VisionConfig struct {
	Enabled         bool   `env:"ENABLED" envDefault:"false"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
}

type LeaderboardConfig struct {
	// Store: mongo | redis | memory
	Store      string        `env:"STORE" envDefault:"mongo"`
	StaleAfter time.Duration `env:"STALE_AFTER" envDefault:"1h"`
	TopN       int           `env:"TOP_N" envDefault:"100"`
}

type StreakConfig struct {
	TimeZone string `env:"TIMEZONE" envDefault:"UTC"`
}

// AwardConfig adalah tabel poin per aksi (bisa dioverride lewat env AWARD_*).
type AwardConfig struct {
	CertificateCreated  int `env:"CERTIFICATE_CREATED" envDefault:"10"`
	CertificateVerified int `env:"CERTIFICATE_VERIFIED" envDefault:"25"`
	SkillAdded          int `env:"SKILL_ADDED" envDefault:"5"`
	DailyLogin          int `env:"DAILY_LOGIN" envDefault:"2"`
	Streak7             int `env:"STREAK_7" envDefault:"50"`
	Streak30            int `env:"STREAK_30" envDefault:"200"`
}

// Load membaca .env (opsional) lalu mem-parse environment ke Config.
// loaded=false berarti .env tidak ditemukan dan hanya environment proses yang dipakai.
func Load() (cfg Config, loaded bool, err error) {
	loaded = godotenv.Load() == nil
	if err := env.Parse(&cfg); err != nil {
		return Config{}, loaded, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Leaderboard.TopN <= 0 {
		return Config{}, loaded, fmt.Errorf("LEADERBOARD_TOP_N harus > 0")
	}
	switch cfg.Oracle.ConfidenceScale {
	case ConfidenceScaleFraction, ConfidenceScalePercent:
	default:
		return Config{}, loaded, fmt.Errorf("ORACLE_CONFIDENCE_SCALE harus fraction atau percent, got %q", cfg.Oracle.ConfidenceScale)
	}
	if _, err := time.LoadLocation(cfg.Streak.TimeZone); err != nil {
		return Config{}, loaded, fmt.Errorf("STREAK_TIMEZONE tidak valid: %w", err)
	}
	return cfg, loaded, nil
}
