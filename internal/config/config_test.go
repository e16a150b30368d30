package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPAddress(t *testing.T) {
	require.Equal(t, ":8080", Config{AppPort: "8080"}.HTTPAddress())
	require.Equal(t, ":9000", Config{AppPort: ":9000"}.HTTPAddress())
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GRADEWATCH_CANVAS_BASE_URL", "https://lms.example.com")
	t.Setenv("GRADEWATCH_CANVAS_TOKEN", "token-123")
	t.Setenv("GRADEWATCH_JWT_SECRET", "jwt-secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "GradeWatch API", cfg.AppName)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, "America/Los_Angeles", cfg.Timezone)
	require.Equal(t, 5*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout)
	require.Equal(t, 4, cfg.LoadWorkers)
	require.Equal(t, "gradewatch.reports", cfg.NATSSubject)
	require.Equal(t, DefaultSubjects, cfg.Subjects)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GRADEWATCH_CANVAS_BASE_URL", "https://lms.example.com")
	t.Setenv("GRADEWATCH_CANVAS_TOKEN", "token-123")
	t.Setenv("GRADEWATCH_JWT_SECRET", "jwt-secret")
	t.Setenv("GRADEWATCH_CANVAS_TERM", "Spring_2026")
	t.Setenv("GRADEWATCH_CANVAS_USER_ID", "12345")
	t.Setenv("GRADEWATCH_REPORT_CACHE_TTL", "90s")
	t.Setenv("GRADEWATCH_LOAD_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	// Underscores stand in for spaces in term names.
	require.Equal(t, "Spring 2026", cfg.Term)
	require.Equal(t, int64(12345), cfg.CanvasUserID)
	require.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
	require.Equal(t, 8, cfg.LoadWorkers)
}

func TestLoadRequiresCanvasCredentials(t *testing.T) {
	t.Setenv("GRADEWATCH_CANVAS_BASE_URL", "")
	t.Setenv("GRADEWATCH_CANVAS_TOKEN", "")
	t.Setenv("GRADEWATCH_JWT_SECRET", "jwt-secret")

	_, err := Load()
	require.ErrorContains(t, err, "canvas base url")

	t.Setenv("GRADEWATCH_CANVAS_BASE_URL", "https://lms.example.com")
	_, err = Load()
	require.ErrorContains(t, err, "canvas token")
}

func TestLoadRejectsBadCacheTTL(t *testing.T) {
	t.Setenv("GRADEWATCH_CANVAS_BASE_URL", "https://lms.example.com")
	t.Setenv("GRADEWATCH_CANVAS_TOKEN", "token-123")
	t.Setenv("GRADEWATCH_JWT_SECRET", "jwt-secret")
	t.Setenv("GRADEWATCH_REPORT_CACHE_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "cache ttl")
}

func TestParseSubjects(t *testing.T) {
	subjects, err := ParseSubjects([]string{"Honors Chemistry=Chemistry", "PE", " ", "Algebra = Algebra 1"})
	require.NoError(t, err)
	require.Equal(t, []Subject{
		{Token: "Honors Chemistry", ShortName: "Chemistry"},
		{Token: "PE", ShortName: "PE"},
		{Token: "Algebra", ShortName: "Algebra 1"},
	}, subjects)

	_, err = ParseSubjects([]string{"=Chemistry"})
	require.Error(t, err)
}
