package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/detailbook/libs/config"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/events"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
)

type settings struct {
	Service  string
	Port     string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PriceCacheTTL time.Duration

	KafkaBrokers      string
	KafkaTopic        string
	KafkaPricingTopic string
	KafkaGroupID      string

	Hours           availability.BusinessHours
	IntervalMinutes int
	Location        *time.Location
	FailureMode     selection.FailureMode
	LookupTimeout   time.Duration
	SessionIdleTTL  time.Duration
	MaxSessions     int

	RateLimitPerMinute int
	RateLimitFailOpen  bool
	CORSOrigins        []string
	BodyLimitBytes     int64
	RequestTimeout     time.Duration
}

func loadSettings() (settings, error) {
	var s settings
	var err error

	s.Service = config.String("SERVICE_NAME", "availability-service")
	s.LogLevel = config.String("LOG_LEVEL", "info")
	if s.Port, err = config.Port("PORT", "8080"); err != nil {
		return s, err
	}
	if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}

	s.RedisAddr = config.String("REDIS_ADDR", "")
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	if s.RedisDB, err = config.Int("REDIS_DB", 0, 0, 15); err != nil {
		return s, err
	}
	if s.PriceCacheTTL, err = config.Duration("PRICE_CACHE_TTL", 5*time.Minute); err != nil {
		return s, err
	}

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.KafkaTopic = config.String("KAFKA_AVAILABILITY_TOPIC", events.DefaultTopic)
	s.KafkaPricingTopic = config.String("KAFKA_PRICING_TOPIC", events.DefaultPricingTopic)
	s.KafkaGroupID = config.String("KAFKA_GROUP_ID", s.Service)

	if s.Hours.StartHour, err = config.Int("BUSINESS_HOURS_START", 8, 0, 23); err != nil {
		return s, err
	}
	if s.Hours.EndHour, err = config.Int("BUSINESS_HOURS_END", 18, 1, 24); err != nil {
		return s, err
	}
	if err := s.Hours.Validate(); err != nil {
		return s, err
	}
	if s.IntervalMinutes, err = config.Int("SLOT_INTERVAL_MINUTES", 30, 1, 60); err != nil {
		return s, err
	}
	tz := config.String("TIMEZONE", "Local")
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("TIMEZONE: %w", err)
	}
	if s.FailureMode, err = selection.ParseFailureMode(config.String("BOOKING_FETCH_FAILURE_MODE", "open")); err != nil {
		return s, err
	}
	if s.LookupTimeout, err = config.Duration("LOOKUP_TIMEOUT", 5*time.Second); err != nil {
		return s, err
	}
	if s.SessionIdleTTL, err = config.Duration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return s, err
	}
	if s.MaxSessions, err = config.Int("MAX_SESSIONS", 10000, 1, 1000000); err != nil {
		return s, err
	}

	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120, 1, 100000); err != nil {
		return s, err
	}
	s.RateLimitFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	s.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS")
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<16, 1, 1<<24)
	if err != nil {
		return s, err
	}
	s.BodyLimitBytes = int64(bodyLimit)
	if s.RequestTimeout, err = config.Duration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return s, err
	}
	return s, nil
}
