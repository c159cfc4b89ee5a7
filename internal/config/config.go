package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBDSN           string
	LogFile         string
	ViewDedupWindow time.Duration
	HeatHalfLife    time.Duration
	ViewWeight      float64
	CommentWeight   float64
	ExpirySweep     time.Duration
}

func Load() Config {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "dealdrop.db" // sqlite file in project root
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./dealdrop.log"
	}

	cfg := Config{
		Port:            port,
		DBDSN:           dsn,
		LogFile:         logFile,
		ViewDedupWindow: minutes("VIEW_DEDUP_MINUTES", 30),
		HeatHalfLife:    hours("HEAT_HALF_LIFE_HOURS", 12),
		ViewWeight:      float("HEAT_VIEW_WEIGHT", 0.1),
		CommentWeight:   float("HEAT_COMMENT_WEIGHT", 0.02),
		ExpirySweep:     seconds("EXPIRY_SWEEP_SECONDS", 60),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s dedup=%s half_life=%s sweep=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.ViewDedupWindow, cfg.HeatHalfLife, cfg.ExpirySweep)
	return cfg
}

func minutes(key string, def int) time.Duration {
	return time.Duration(intval(key, def)) * time.Minute
}

func hours(key string, def int) time.Duration {
	return time.Duration(intval(key, def)) * time.Hour
}

func seconds(key string, def int) time.Duration {
	return time.Duration(intval(key, def)) * time.Second
}

func intval(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
		log.Printf("[config] ignoring bad %s=%s", key, os.Getenv(key))
	}
	return def
}

func float(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			return f
		}
		log.Printf("[config] ignoring bad %s=%s", key, os.Getenv(key))
	}
	return def
}
