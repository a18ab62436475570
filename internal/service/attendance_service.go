package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/attendance-api/internal/dto"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/observability"
	"github.com/noah-isme/attendance-api/internal/repository"
)

var (
	// ErrAttendanceNotFound indicates the attendance record does not exist.
	ErrAttendanceNotFound = errors.New("attendance record not found")
	// ErrAttendanceConflict indicates the student already has a mark on the target date.
	ErrAttendanceConflict = errors.New("attendance already recorded for this student and date")
	// ErrInvalidDateRange indicates a range whose end precedes its start.
	ErrInvalidDateRange = errors.New("end date must not be before start date")
)

// orphanPolicy decides what enrichment does with a record whose student is gone.
type orphanPolicy int

const (
	orphanPlaceholder orphanPolicy = iota
	orphanFail
)

// AttendanceService marks attendance and derives views and statistics from it.
type AttendanceService interface {
	Mark(ctx context.Context, req dto.MarkAttendanceRequest, today models.Date) (dto.AttendanceResponse, error)
	Update(ctx context.Context, id uint, req dto.MarkAttendanceRequest) (dto.AttendanceResponse, error)
	Delete(ctx context.Context, id uint) error
	ListForDate(ctx context.Context, date models.Date) ([]dto.AttendanceResponse, error)
	ListForDatePaginated(ctx context.Context, date models.Date, page, pageSize int) (dto.AttendanceListResponse, error)
	ListForRange(ctx context.Context, dateRange models.DateRange) ([]dto.AttendanceResponse, error)
	ListByStatus(ctx context.Context, dateRange models.DateRange, status models.AttendanceStatus) ([]dto.AttendanceResponse, error)
	StudentHistory(ctx context.Context, rollNumber string, dateRange *models.DateRange) (dto.StudentAttendanceHistoryResponse, error)
	StudentStatistics(ctx context.Context, rollNumber string, dateRange *models.DateRange) (dto.AttendanceStatsResponse, error)
	DailySummary(ctx context.Context, date models.Date) (dto.DailySummaryResponse, error)
}

type attendanceService struct {
	students   repository.StudentRepository
	attendance repository.AttendanceRepository
	uow        repository.UnitOfWork
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewAttendanceService builds the attendance service. cache may be nil, in
// which case statistics are always computed from the store.
func NewAttendanceService(students repository.StudentRepository, attendance repository.AttendanceRepository, uow repository.UnitOfWork, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		students:   students,
		attendance: attendance,
		uow:        uow,
		cache:      cache,
		cacheTTL:   ttl,
		logger:     logger.With().Str("component", "attendance_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/attendance-api/internal/service/attendance"),
	}
}

// Mark records the status for the student on req.Date, or on today when the
// request carries no date. A second mark for the same day overwrites the first.
func (s *attendanceService) Mark(ctx context.Context, req dto.MarkAttendanceRequest, today models.Date) (dto.AttendanceResponse, error) {
	date := today
	if requested, ok := req.Date.Get(); ok && !requested.IsZero() {
		date = requested
	}
	status := req.AttendanceStatus()

	spanCtx, span := s.tracer.Start(ctx, "attendance.mark", trace.WithAttributes(
		attribute.String("attendance.roll_number", req.RollNumber),
		attribute.String("attendance.date", date.String()),
		attribute.String("attendance.status", string(status)),
	))
	defer span.End()

	var (
		student models.Student
		record  models.Attendance
	)
	err := s.uow.Do(spanCtx, func(repos repository.Repositories) error {
		found, err := repos.Students.GetByRollNumber(spanCtx, req.RollNumber)
		if err != nil {
			return mapStudentError(err)
		}
		student = found

		record = models.Attendance{StudentID: student.ID, Date: date, Status: status}
		if err := repos.Attendance.Upsert(spanCtx, &record); err != nil {
			return err
		}

		return recordActivity(spanCtx, repos.Activity, "attendance.marked", "attendance", record.ID, map[string]interface{}{
			"student_id": student.ID,
			"date":       date.String(),
			"status":     string(status),
		})
	})
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}

	s.invalidateStats(spanCtx, student.ID)
	observability.AttendanceMarks().WithLabelValues(string(status)).Inc()

	return dto.NewAttendanceResponse(record, &student), nil
}

// Update rewrites a record by id. The student is re-resolved from the roll
// number; the date only changes when the request supplies one.
func (s *attendanceService) Update(ctx context.Context, id uint, req dto.MarkAttendanceRequest) (dto.AttendanceResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "attendance.update", trace.WithAttributes(
		attribute.Int64("attendance.id", int64(id)),
	))
	defer span.End()

	var (
		student         models.Student
		record          models.Attendance
		previousStudent uint
	)
	err := s.uow.Do(spanCtx, func(repos repository.Repositories) error {
		existing, err := repos.Attendance.GetByID(spanCtx, id)
		if err != nil {
			return mapAttendanceError(err)
		}
		previousStudent = existing.StudentID

		found, err := repos.Students.GetByRollNumber(spanCtx, req.RollNumber)
		if err != nil {
			return mapStudentError(err)
		}
		student = found

		existing.StudentID = student.ID
		existing.Status = req.AttendanceStatus()
		if date, ok := req.Date.Get(); ok && !date.IsZero() {
			existing.Date = date
		}

		if err := repos.Attendance.Save(spanCtx, &existing); err != nil {
			return mapAttendanceError(err)
		}
		record = existing

		return recordActivity(spanCtx, repos.Activity, "attendance.updated", "attendance", id, map[string]interface{}{
			"student_id": student.ID,
			"date":       record.Date.String(),
			"status":     string(record.Status),
		})
	})
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}

	s.invalidateStats(spanCtx, previousStudent)
	if previousStudent != student.ID {
		s.invalidateStats(spanCtx, student.ID)
	}

	return dto.NewAttendanceResponse(record, &student), nil
}

func (s *attendanceService) Delete(ctx context.Context, id uint) error {
	var studentID uint
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Attendance.GetByID(ctx, id)
		if err != nil {
			return mapAttendanceError(err)
		}
		studentID = existing.StudentID

		if err := repos.Attendance.Delete(ctx, id); err != nil {
			return mapAttendanceError(err)
		}

		return recordActivity(ctx, repos.Activity, "attendance.deleted", "attendance", id, map[string]interface{}{
			"student_id": studentID,
			"date":       existing.Date.String(),
		})
	})
	if err != nil {
		return err
	}

	s.invalidateStats(ctx, studentID)
	return nil
}

func (s *attendanceService) ListForDate(ctx context.Context, date models.Date) ([]dto.AttendanceResponse, error) {
	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{Date: &date})
	if err != nil {
		return nil, err
	}

	return s.enrich(ctx, records, orphanPlaceholder)
}

func (s *attendanceService) ListForDatePaginated(ctx context.Context, date models.Date, page, pageSize int) (dto.AttendanceListResponse, error) {
	records, total, err := s.attendance.List(ctx, repository.AttendanceFilter{Date: &date, Page: page, PageSize: pageSize})
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	items, err := s.enrich(ctx, records, orphanPlaceholder)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	return dto.AttendanceListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *attendanceService) ListForRange(ctx context.Context, dateRange models.DateRange) ([]dto.AttendanceResponse, error) {
	if !dateRange.Valid() {
		return nil, ErrInvalidDateRange
	}

	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{Range: &dateRange})
	if err != nil {
		return nil, err
	}

	return s.enrich(ctx, records, orphanPlaceholder)
}

// ListByStatus fails with ErrStudentNotFound when a record points at a deleted
// student, unlike the date and range listings which substitute a placeholder.
func (s *attendanceService) ListByStatus(ctx context.Context, dateRange models.DateRange, status models.AttendanceStatus) ([]dto.AttendanceResponse, error) {
	if !dateRange.Valid() {
		return nil, ErrInvalidDateRange
	}

	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{Range: &dateRange, Status: status})
	if err != nil {
		return nil, err
	}

	return s.enrich(ctx, records, orphanFail)
}

func (s *attendanceService) StudentHistory(ctx context.Context, rollNumber string, dateRange *models.DateRange) (dto.StudentAttendanceHistoryResponse, error) {
	if dateRange != nil && !dateRange.Valid() {
		return dto.StudentAttendanceHistoryResponse{}, ErrInvalidDateRange
	}

	student, err := s.students.GetByRollNumber(ctx, strings.TrimSpace(rollNumber))
	if err != nil {
		return dto.StudentAttendanceHistoryResponse{}, mapStudentError(err)
	}

	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{
		StudentID:   &student.ID,
		Range:       dateRange,
		NewestFirst: true,
	})
	if err != nil {
		return dto.StudentAttendanceHistoryResponse{}, err
	}

	items := make([]dto.AttendanceResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewAttendanceResponse(record, &student))
	}

	stats, err := s.statistics(ctx, student.ID, dateRange)
	if err != nil {
		return dto.StudentAttendanceHistoryResponse{}, err
	}

	return dto.StudentAttendanceHistoryResponse{
		Student:    dto.NewStudentResponse(student),
		Attendance: items,
		Statistics: stats,
	}, nil
}

func (s *attendanceService) StudentStatistics(ctx context.Context, rollNumber string, dateRange *models.DateRange) (dto.AttendanceStatsResponse, error) {
	if dateRange != nil && !dateRange.Valid() {
		return dto.AttendanceStatsResponse{}, ErrInvalidDateRange
	}

	student, err := s.students.GetByRollNumber(ctx, strings.TrimSpace(rollNumber))
	if err != nil {
		return dto.AttendanceStatsResponse{}, mapStudentError(err)
	}

	return s.statistics(ctx, student.ID, dateRange)
}

func (s *attendanceService) DailySummary(ctx context.Context, date models.Date) (dto.DailySummaryResponse, error) {
	counts, err := s.attendance.CountStatusesOnDate(ctx, date)
	if err != nil {
		return dto.DailySummaryResponse{}, err
	}

	present := counts[models.AttendanceStatusPresent]
	absent := counts[models.AttendanceStatusAbsent]
	total := present + absent

	return dto.DailySummaryResponse{
		Date:                 date,
		Present:              present,
		Absent:               absent,
		Total:                total,
		AttendancePercentage: percentage(present, total),
	}, nil
}

func (s *attendanceService) statistics(ctx context.Context, studentID uint, dateRange *models.DateRange) (dto.AttendanceStatsResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "attendance.statistics", trace.WithAttributes(
		attribute.Int64("attendance.student_id", int64(studentID)),
	))
	defer span.End()

	field := statsCacheField(dateRange)
	version, cacheable := s.statsVersion(spanCtx, studentID)
	key := statsCacheKey(studentID, version)
	if cacheable {
		if cached, ok := s.cachedStats(spanCtx, key, field); ok {
			return cached, nil
		}
	}

	var (
		stats dto.AttendanceStatsResponse
		err   error
	)
	if dateRange != nil {
		stats, err = s.rangeStatistics(spanCtx, studentID, *dateRange)
	} else {
		stats, err = s.allTimeStatistics(spanCtx, studentID)
	}
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceStatsResponse{}, err
	}

	if cacheable {
		s.storeStats(spanCtx, key, field, stats)
	}
	return stats, nil
}

// rangeStatistics measures presence against every calendar day in the range,
// so days without a mark lower the percentage.
func (s *attendanceService) rangeStatistics(ctx context.Context, studentID uint, dateRange models.DateRange) (dto.AttendanceStatsResponse, error) {
	present, err := s.attendance.CountByStatus(ctx, studentID, dateRange, models.AttendanceStatusPresent)
	if err != nil {
		return dto.AttendanceStatsResponse{}, err
	}

	absent, err := s.attendance.CountByStatus(ctx, studentID, dateRange, models.AttendanceStatusAbsent)
	if err != nil {
		return dto.AttendanceStatsResponse{}, err
	}

	return dto.AttendanceStatsResponse{
		TotalDays:            present + absent,
		PresentDays:          present,
		AbsentDays:           absent,
		AttendancePercentage: percentage(present, int64(dateRange.Days())),
	}, nil
}

func (s *attendanceService) allTimeStatistics(ctx context.Context, studentID uint) (dto.AttendanceStatsResponse, error) {
	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{StudentID: &studentID})
	if err != nil {
		return dto.AttendanceStatsResponse{}, err
	}

	total := int64(len(records))
	var present int64
	for _, record := range records {
		if record.Status == models.AttendanceStatusPresent {
			present++
		}
	}

	return dto.AttendanceStatsResponse{
		TotalDays:            total,
		PresentDays:          present,
		AbsentDays:           total - present,
		AttendancePercentage: percentage(present, total),
	}, nil
}

func (s *attendanceService) enrich(ctx context.Context, records []models.Attendance, policy orphanPolicy) ([]dto.AttendanceResponse, error) {
	ids := make([]uint, 0, len(records))
	seen := make(map[uint]struct{}, len(records))
	for _, record := range records {
		if _, ok := seen[record.StudentID]; ok {
			continue
		}
		seen[record.StudentID] = struct{}{}
		ids = append(ids, record.StudentID)
	}

	students, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AttendanceResponse, 0, len(records))
	for _, record := range records {
		student, ok := students[record.StudentID]
		if !ok {
			if policy == orphanFail {
				return nil, fmt.Errorf("%w: id %d", ErrStudentNotFound, record.StudentID)
			}
			responses = append(responses, dto.NewAttendanceResponse(record, nil))
			continue
		}
		responses = append(responses, dto.NewAttendanceResponse(record, &student))
	}

	return responses, nil
}

// Statistics hashes are keyed by a per-student version. A write bumps the
// version after it commits, so a read that computed its numbers before the
// bump can only store them under a key no later read will look up.
func statsVersionKey(studentID uint) string {
	return fmt.Sprintf("attendance:stats:%d:version", studentID)
}

func statsCacheKey(studentID uint, version int64) string {
	return fmt.Sprintf("attendance:stats:%d:v%d", studentID, version)
}

func statsCacheField(dateRange *models.DateRange) string {
	if dateRange == nil {
		return "all"
	}
	return dateRange.Start.String() + ":" + dateRange.End.String()
}

// statsVersion reports the current cache version and whether the cache can be used.
func (s *attendanceService) statsVersion(ctx context.Context, studentID uint) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}

	version, err := s.cache.Get(ctx, statsVersionKey(studentID)).Int64()
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to read statistics cache version")
		return 0, false
	}
}

func (s *attendanceService) cachedStats(ctx context.Context, key, field string) (dto.AttendanceStatsResponse, bool) {
	cached, err := s.cache.HGet(ctx, key, field).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read statistics cache")
		}
		observability.StatsCache().WithLabelValues("miss").Inc()
		return dto.AttendanceStatsResponse{}, false
	}

	var stats dto.AttendanceStatsResponse
	if err := json.Unmarshal([]byte(cached), &stats); err != nil {
		observability.StatsCache().WithLabelValues("miss").Inc()
		return dto.AttendanceStatsResponse{}, false
	}

	observability.StatsCache().WithLabelValues("hit").Inc()
	s.logger.Debug().Str("key", key).Str("range", field).Msg("statistics cache hit")
	return stats, true
}

func (s *attendanceService) storeStats(ctx context.Context, key, field string, stats dto.AttendanceStatsResponse) {
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}

	_, err = s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, payload)
		pipe.Expire(ctx, key, s.cacheTTL)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to store statistics cache")
	}
}

func (s *attendanceService) invalidateStats(ctx context.Context, studentID uint) {
	if s.cache == nil || studentID == 0 {
		return
	}

	version, err := s.cache.Incr(ctx, statsVersionKey(studentID)).Result()
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate statistics cache")
		return
	}

	if err := s.cache.Del(ctx, statsCacheKey(studentID, version-1)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to drop stale statistics")
	}
}

// percentage returns part/whole as a percentage rounded half-up to two decimals.
func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return roundHalfUp(float64(part)*100/float64(whole), 2)
}

func roundHalfUp(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Floor(value*factor+0.5) / factor
}

func mapAttendanceError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrAttendanceNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAttendanceConflict
	default:
		return err
	}
}
