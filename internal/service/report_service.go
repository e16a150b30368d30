package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gradewatch/gradewatch-api/internal/dto"
	"github.com/gradewatch/gradewatch-api/internal/models"
	"github.com/gradewatch/gradewatch-api/internal/observability"
	"github.com/gradewatch/gradewatch-api/internal/report"
)

// ErrAssignmentNotFound indicates the requested assignment is not in the
// loaded set.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ReportService produces the report payloads served over HTTP. The boolean
// return reports whether the payload came from cache.
type ReportService interface {
	Today(ctx context.Context, date time.Time) (dto.TodayReport, bool, error)
	Week(ctx context.Context, date time.Time) (dto.WeekReport, bool, error)
	Attention(ctx context.Context, minGain int) (dto.AttentionReport, bool, error)
	Scores(ctx context.Context) (dto.ScoresReport, bool, error)
	Assignment(ctx context.Context, id int64) (dto.AssignmentDetail, error)
	ServiceHours(ctx context.Context) (dto.ServiceHoursReport, error)
}

// ReporterFactory builds a fresh Reporter for one report invocation. A
// Reporter is never shared across runs; its lazy comment cache is not safe
// for concurrent passes.
type ReporterFactory func() *report.Reporter

// AttentionEvent is published after an attention report run so downstream
// notifiers can nudge the student.
type AttentionEvent struct {
	GeneratedAt time.Time `json:"generated_at"`
	Missing     int       `json:"missing"`
	LowScore    int       `json:"low_score"`
	BeingMarked int       `json:"being_marked"`
	HasComment  int       `json:"has_comment"`
}

type reportService struct {
	newReporter ReporterFactory
	cache       *redis.Client
	cacheTTL    time.Duration
	events      *nats.Conn
	subject     string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService wires the report orchestration with its cache and event
// publisher. Both cache and events may be nil; the service then always
// recomputes and never publishes.
func NewReportService(factory ReporterFactory, cache *redis.Client, cacheTTL time.Duration, events *nats.Conn, subject string, logger zerolog.Logger) ReportService {
	return &reportService{
		newReporter: factory,
		cache:       cache,
		cacheTTL:    cacheTTL,
		events:      events,
		subject:     subject,
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

func (s *reportService) Today(ctx context.Context, date time.Time) (dto.TodayReport, bool, error) {
	cacheKey := fmt.Sprintf("report:today:%s", date.Format("2006-01-02"))

	var cached dto.TodayReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		observability.ReportCacheHits().WithLabelValues("today").Inc()
		return cached, true, nil
	}

	ctx, span := s.startSpan(ctx, "report.today")
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.TodayReport{}, false, err
	}

	due, err := reporter.DailyReport(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "daily_report_failed")
		return dto.TodayReport{}, false, err
	}

	scores, err := reporter.CourseScores(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_scores_failed")
		return dto.TodayReport{}, false, err
	}

	result := dto.TodayReport{
		Date:   date.Format("2006-01-02"),
		Due:    due,
		Scores: scores,
	}

	s.cacheSet(ctx, cacheKey, result)
	s.recordStats(reporter.Stats())
	span.SetAttributes(attribute.Int("report.rows", len(due)))

	return result, false, nil
}

func (s *reportService) Week(ctx context.Context, date time.Time) (dto.WeekReport, bool, error) {
	cacheKey := fmt.Sprintf("report:week:%s", date.Format("2006-01-02"))

	var cached dto.WeekReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		observability.ReportCacheHits().WithLabelValues("week").Inc()
		return cached, true, nil
	}

	ctx, span := s.startSpan(ctx, "report.week")
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.WeekReport{}, false, err
	}

	items, start, end, err := reporter.CalendarReport(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calendar_report_failed")
		return dto.WeekReport{}, false, err
	}

	result := dto.WeekReport{Start: start, End: end, Items: items}

	s.cacheSet(ctx, cacheKey, result)
	s.recordStats(reporter.Stats())
	span.SetAttributes(attribute.Int("report.rows", len(items)))

	return result, false, nil
}

func (s *reportService) Attention(ctx context.Context, minGain int) (dto.AttentionReport, bool, error) {
	cacheKey := fmt.Sprintf("report:attention:%s:%d", s.now().Format("2006-01-02"), minGain)

	var cached dto.AttentionReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		observability.ReportCacheHits().WithLabelValues("attention").Inc()
		return cached, true, nil
	}

	ctx, span := s.startSpan(ctx, "report.attention")
	span.SetAttributes(attribute.Int("report.min_gain", minGain))
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.AttentionReport{}, false, err
	}

	result := dto.AttentionReport{MinGain: minGain}

	sections := []struct {
		filter models.SubmissionStatus
		rows   *[]dto.AssignmentStatus
	}{
		{models.StatusMissing, &result.Missing},
		{models.StatusLowScore, &result.LowScore},
		{models.StatusBeingMarked, &result.BeingMarked},
		{models.StatusHasComment, &result.HasComment},
	}

	var stats report.RunStats
	for _, section := range sections {
		rows, runStats, err := reporter.AssignmentReport(ctx, section.filter, minGain)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assignment_report_failed")
			return dto.AttentionReport{}, false, err
		}
		*section.rows = rows
		stats = runStats
	}
	result.CommentsLoaded = stats.CommentsLoaded

	s.cacheSet(ctx, cacheKey, result)
	s.recordStats(stats)
	s.publishAttention(result)

	return result, false, nil
}

func (s *reportService) Scores(ctx context.Context) (dto.ScoresReport, bool, error) {
	cacheKey := fmt.Sprintf("report:scores:%s", s.now().Format("2006-01-02"))

	var cached dto.ScoresReport
	if s.cacheGet(ctx, cacheKey, &cached) {
		observability.ReportCacheHits().WithLabelValues("scores").Inc()
		return cached, true, nil
	}

	ctx, span := s.startSpan(ctx, "report.scores")
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.ScoresReport{}, false, err
	}

	scores, err := reporter.CourseScores(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_scores_failed")
		return dto.ScoresReport{}, false, err
	}

	result := dto.ScoresReport{Courses: scores}
	s.cacheSet(ctx, cacheKey, result)

	return result, false, nil
}

func (s *reportService) Assignment(ctx context.Context, id int64) (dto.AssignmentDetail, error) {
	ctx, span := s.startSpan(ctx, "report.assignment")
	span.SetAttributes(attribute.Int64("assignment.id", id))
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.AssignmentDetail{}, err
	}

	detail, found, err := reporter.AssignmentDetail(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail_failed")
		return dto.AssignmentDetail{}, err
	}
	if !found {
		return dto.AssignmentDetail{}, ErrAssignmentNotFound
	}

	return detail, nil
}

func (s *reportService) ServiceHours(ctx context.Context) (dto.ServiceHoursReport, error) {
	ctx, span := s.startSpan(ctx, "report.service_hours")
	defer span.End()

	reporter, err := s.loadedReporter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_failed")
		return dto.ServiceHoursReport{}, err
	}

	remaining, err := reporter.RemainingServiceHours(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "service_hours_failed")
		return dto.ServiceHoursReport{}, err
	}

	return dto.ServiceHoursReport{RemainingHours: remaining}, nil
}

func (s *reportService) loadedReporter(ctx context.Context) (*report.Reporter, error) {
	reporter := s.newReporter()
	if err := reporter.Load(ctx); err != nil {
		return nil, err
	}

	return reporter, nil
}

func (s *reportService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}

	payload, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read report cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to decode cached report")
		return false
	}

	s.logger.Debug().Str("key", key).Msg("report cache hit")
	return true
}

func (s *reportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store report cache")
	}
}

func (s *reportService) publishAttention(result dto.AttentionReport) {
	if s.events == nil || s.subject == "" {
		return
	}

	event := AttentionEvent{
		GeneratedAt: s.now(),
		Missing:     len(result.Missing),
		LowScore:    len(result.LowScore),
		BeingMarked: len(result.BeingMarked),
		HasComment:  len(result.HasComment),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	if err := s.events.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.subject).Msg("failed to publish attention event")
	}
}

func (s *reportService) recordStats(stats report.RunStats) {
	observability.CommentsLoaded().Add(float64(stats.CommentsLoaded))
	s.logger.Info().
		Int("courses", stats.CoursesLoaded).
		Int("assignments", stats.AssignmentsLoaded).
		Int("comments_loaded", stats.CommentsLoaded).
		Msg("report run stats")
}

func (s *reportService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/gradewatch/gradewatch-api/internal/service")
	return tracer.Start(ctx, name)
}
