package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"attendancepro/internal/attendance"
)

const uniqueViolation = "23505"

const recordColumns = `id, user_id, timestamp, attendance_date, status, latitude, longitude, accuracy, qr_data`

// Filter narrows history queries to one user. Dates are inclusive calendar days.
type Filter struct {
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
	Status    *attendance.Status
	Limit     int32
	Offset    int32
}

type Stats struct {
	TotalDays   int64      `json:"total_days"`
	PresentDays int64      `json:"present_days"`
	LateDays    int64      `json:"late_days"`
	EarlyDays   int64      `json:"early_days"`
	FirstRecord *time.Time `json:"first_record"`
	LastRecord  *time.Time `json:"last_record"`
}

func (s *Store) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*attendance.Record, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE user_id = $1 AND attendance_date = $2`,
		userID, pgDate(date))
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Insert(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO attendance (id, user_id, timestamp, attendance_date, status, latitude, longitude, accuracy, qr_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+recordColumns,
		pgUUID(record.ID),
		record.UserID,
		pgTime(record.Timestamp),
		pgDate(record.Date),
		string(record.Status),
		record.Latitude,
		record.Longitude,
		pgFloat(record.Accuracy),
		record.QRPayload,
	)
	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.Record{}, attendance.ErrConflict
		}
		return attendance.Record{}, err
	}
	return created, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]attendance.Record, error) {
	where, args := filterClause(f, true)
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM attendance WHERE %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]attendance.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := filterClause(f, true)
	var total int64
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE `+where, args...).Scan(&total)
	return total, err
}

// Stats summarises the user's records within the date range; the status filter is ignored.
func (s *Store) Stats(ctx context.Context, f Filter) (Stats, error) {
	where, args := filterClause(f, false)
	var (
		stats       Stats
		first, last pgtype.Timestamptz
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Present'),
			COUNT(*) FILTER (WHERE status = 'Late'),
			COUNT(*) FILTER (WHERE status = 'Early'),
			MIN(timestamp),
			MAX(timestamp)
		FROM attendance WHERE `+where, args...).
		Scan(&stats.TotalDays, &stats.PresentDays, &stats.LateDays, &stats.EarlyDays, &first, &last)
	if err != nil {
		return Stats{}, err
	}
	stats.FirstRecord = timePtr(first)
	stats.LastRecord = timePtr(last)
	return stats, nil
}

type ReportPeriod string

const (
	ReportDaily   ReportPeriod = "daily"
	ReportWeekly  ReportPeriod = "weekly"
	ReportMonthly ReportPeriod = "monthly"
)

func ParseReportPeriod(value string) (ReportPeriod, error) {
	switch ReportPeriod(value) {
	case ReportDaily, ReportWeekly, ReportMonthly:
		return ReportPeriod(value), nil
	default:
		return "", fmt.Errorf("unknown report period %q", value)
	}
}

// truncUnit is the date_trunc field for the period. Weeks start on Monday.
func (p ReportPeriod) truncUnit() (string, error) {
	switch p {
	case ReportDaily:
		return "day", nil
	case ReportWeekly:
		return "week", nil
	case ReportMonthly:
		return "month", nil
	default:
		return "", fmt.Errorf("unknown report period %q", p)
	}
}

// ReportRow aggregates one day, week or month. PeriodStart is the first calendar day of the bucket.
type ReportRow struct {
	PeriodStart  time.Time
	TotalEntries int64
	Present      int64
	Late         int64
	Early        int64
	FirstCheckIn time.Time
	LastCheckIn  time.Time
}

// Report buckets the user's records in the date range by period, newest bucket first.
// The status filter is ignored.
func (s *Store) Report(ctx context.Context, f Filter, period ReportPeriod) ([]ReportRow, error) {
	unit, err := period.truncUnit()
	if err != nil {
		return nil, err
	}
	where, args := filterClause(f, false)
	query := fmt.Sprintf(`
		SELECT
			date_trunc('%s', attendance_date::timestamp)::date AS period_start,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Present'),
			COUNT(*) FILTER (WHERE status = 'Late'),
			COUNT(*) FILTER (WHERE status = 'Early'),
			MIN(timestamp),
			MAX(timestamp)
		FROM attendance WHERE %s
		GROUP BY period_start
		ORDER BY period_start DESC`, unit, where)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := make([]ReportRow, 0)
	for rows.Next() {
		var (
			row         ReportRow
			start       pgtype.Date
			first, last pgtype.Timestamptz
		)
		if err := rows.Scan(&start, &row.TotalEntries, &row.Present, &row.Late, &row.Early, &first, &last); err != nil {
			return nil, err
		}
		row.PeriodStart = start.Time
		row.FirstCheckIn = first.Time
		row.LastCheckIn = last.Time
		report = append(report, row)
	}
	return report, rows.Err()
}

func filterClause(f Filter, withStatus bool) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.StartDate != nil {
		args = append(args, pgDate(*f.StartDate))
		clauses = append(clauses, fmt.Sprintf("attendance_date >= $%d", len(args)))
	}
	if f.EndDate != nil {
		args = append(args, pgDate(*f.EndDate))
		clauses = append(clauses, fmt.Sprintf("attendance_date <= $%d", len(args)))
	}
	if withStatus && f.Status != nil {
		args = append(args, string(*f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var (
		id        pgtype.UUID
		record    attendance.Record
		timestamp pgtype.Timestamptz
		date      pgtype.Date
		status    string
		accuracy  pgtype.Float8
	)
	if err := row.Scan(&id, &record.UserID, &timestamp, &date, &status, &record.Latitude, &record.Longitude, &accuracy, &record.QRPayload); err != nil {
		return attendance.Record{}, err
	}
	record.ID = uuid.UUID(id.Bytes)
	record.Timestamp = timestamp.Time
	record.Date = date.Time
	record.Status = attendance.Status(status)
	if accuracy.Valid {
		value := accuracy.Float64
		record.Accuracy = &value
	}
	return record, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func pgDate(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func pgFloat(value *float64) pgtype.Float8 {
	if value == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *value, Valid: true}
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
