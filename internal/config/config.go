package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Subject maps a token found in a raw course title to the canonical short
// name used in reports. Matching is done on whole words, first entry wins.
type Subject struct {
	Token     string
	ShortName string
}

// DefaultSubjects is the built-in graded-subject table. Courses whose titles
// contain none of these tokens are administrative (advisory, counseling) and
// are excluded from scoring entirely.
var DefaultSubjects = []Subject{
	{Token: "History", ShortName: "History"},
	{Token: "Spanish", ShortName: "Spanish"},
	{Token: "Chemistry", ShortName: "Chemistry"},
	{Token: "Algebra", ShortName: "Algebra"},
	{Token: "Geometry", ShortName: "Geometry"},
	{Token: "Geo/Trig", ShortName: "Geo/Trig"},
	{Token: "English", ShortName: "English"},
	{Token: "Theology", ShortName: "Theology"},
	{Token: "Biology", ShortName: "Biology"},
	{Token: "Physics", ShortName: "Physics"},
	{Token: "Computer", ShortName: "Computer"},
	{Token: "Government", ShortName: "Government"},
	{Token: "Financing", ShortName: "Financing"},
	{Token: "Law", ShortName: "Law"},
	{Token: "Politics", ShortName: "Politics"},
	{Token: "Ceramics", ShortName: "Ceramics"},
	{Token: "Wellness", ShortName: "Wellness"},
	{Token: "PE", ShortName: "PE"},
	{Token: "Support", ShortName: "Support"},
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName        string
	AppEnv         string
	AppPort        string
	CanvasBaseURL  string
	CanvasToken    string
	CanvasUserID   int64
	StudentName    string
	Term           string
	Timezone       string
	RedisURL       string
	NATSURL        string
	NATSSubject    string
	JWTSecret      string
	ReportCacheTTL time.Duration
	FetchTimeout   time.Duration
	LoadWorkers    int
	Subjects       []Subject
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeWatch API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("timezone", "America/Los_Angeles")
	v.SetDefault("report.cache_ttl", "5m")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("load.workers", 4)
	v.SetDefault("nats.subject", "gradewatch.reports")

	ttlString := v.GetString("report.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid report cache ttl: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(v.GetString("fetch.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid fetch timeout: %w", err)
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		AppPort:        v.GetString("app.port"),
		CanvasBaseURL:  v.GetString("canvas.base_url"),
		CanvasToken:    v.GetString("canvas.token"),
		CanvasUserID:   v.GetInt64("canvas.user_id"),
		StudentName:    v.GetString("student.name"),
		Term:           strings.ReplaceAll(v.GetString("canvas.term"), "_", " "),
		Timezone:       v.GetString("timezone"),
		RedisURL:       v.GetString("redis.url"),
		NATSURL:        v.GetString("nats.url"),
		NATSSubject:    v.GetString("nats.subject"),
		JWTSecret:      v.GetString("jwt.secret"),
		ReportCacheTTL: ttl,
		FetchTimeout:   fetchTimeout,
		LoadWorkers:    v.GetInt("load.workers"),
		Subjects:       DefaultSubjects,
	}

	if subjects := v.GetStringSlice("subjects"); len(subjects) > 0 {
		parsed, err := ParseSubjects(subjects)
		if err != nil {
			return Config{}, err
		}
		cfg.Subjects = parsed
	}

	if cfg.CanvasBaseURL == "" {
		return Config{}, fmt.Errorf("canvas base url must be provided")
	}

	if cfg.CanvasToken == "" {
		return Config{}, fmt.Errorf("canvas token must be provided")
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.LoadWorkers <= 0 {
		cfg.LoadWorkers = 4
	}

	return cfg, nil
}

// ParseSubjects converts "token=short name" entries into a subject table.
// A bare token maps to itself.
func ParseSubjects(entries []string) ([]Subject, error) {
	subjects := make([]Subject, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		token, short, found := strings.Cut(entry, "=")
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("invalid subject entry %q", entry)
		}
		if !found || strings.TrimSpace(short) == "" {
			short = token
		}

		subjects = append(subjects, Subject{Token: token, ShortName: strings.TrimSpace(short)})
	}

	return subjects, nil
}
