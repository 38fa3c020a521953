package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rowing.report/internal/rowing/rower"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session is one continuous piece of rowing between resets.
type Session struct {
	ID            string       `json:"session_id"`
	Profile       string       `json:"profile"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       *time.Time   `json:"ended_at,omitempty"`
	TotalStrokes  int          `json:"total_strokes"`
	TotalDistance float64      `json:"total_distance"`
	MovingTime    float64      `json:"moving_time"`
	DragFactor    rower.Metric `json:"drag_factor"`
}

// Stroke is a completed drive and recovery.
type Stroke struct {
	SessionID    string    `json:"session_id"`
	StrokeNumber int       `json:"stroke_number"`
	RecordedAt   time.Time `json:"recorded_at"`
	MovingTime   float64   `json:"moving_time"`
	Distance     float64   `json:"distance"`

	CycleDuration    rower.Metric `json:"cycle_duration"`
	CycleDistance    rower.Metric `json:"cycle_distance"`
	CycleVelocity    rower.Metric `json:"cycle_velocity"`
	CyclePower       rower.Metric `json:"cycle_power"`
	DriveDuration    rower.Metric `json:"drive_duration"`
	DriveLength      rower.Metric `json:"drive_length"`
	DriveDistance    rower.Metric `json:"drive_distance"`
	AverageForce     rower.Metric `json:"drive_average_force"`
	PeakForce        rower.Metric `json:"drive_peak_force"`
	RecoveryDuration rower.Metric `json:"recovery_duration"`
	RecoveryDistance rower.Metric `json:"recovery_distance"`
	DragFactor       rower.Metric `json:"drag_factor"`

	ForceCurve []float64 `json:"force_curve,omitempty"`
}

// StrokeFromSnapshot builds the stroke a completion snapshot describes. The
// completed stroke is the one before the drive that just started.
func StrokeFromSnapshot(sessionID string, at time.Time, s rower.Snapshot, curves *rower.Curves) Stroke {
	st := Stroke{
		SessionID:    sessionID,
		StrokeNumber: s.TotalNumberOfStrokes - 1,
		RecordedAt:   at,
		MovingTime:   s.TotalMovingTimeSinceStart,
		Distance:     s.TotalLinearDistanceSinceStart,

		CycleDuration:    s.CycleDuration,
		CycleDistance:    s.CycleLinearDistance,
		CycleVelocity:    s.CycleLinearVelocity,
		CyclePower:       s.CyclePower,
		DriveDuration:    s.DriveDuration,
		DriveLength:      s.DriveLength,
		DriveDistance:    s.DriveLinearDistance,
		AverageForce:     s.DriveAverageHandleForce,
		PeakForce:        s.DrivePeakHandleForce,
		RecoveryDuration: s.RecoveryDuration,
		RecoveryDistance: s.RecoveryLinearDistance,
		DragFactor:       s.RecoveryDragFactor,
	}
	if curves != nil {
		st.ForceCurve = curves.HandleForce
	}
	return st
}

func nullable(m rower.Metric) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.Valid}
}

func metric(n sql.NullFloat64) rower.Metric {
	return rower.Metric{Value: n.Float64, Valid: n.Valid}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}

// StartSession creates a session and returns its id.
func (db *DB) StartSession(profile string, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO sessions (session_id, profile, started_at) VALUES (?, ?, ?)`,
		id, profile, unixSeconds(at))
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// UpdateSessionTotals stores the running totals of a session.
func (db *DB) UpdateSessionTotals(id string, s rower.Snapshot) error {
	res, err := db.Exec(`UPDATE sessions
		SET total_strokes = ?, total_distance = ?, moving_time = ?, drag_factor = ?
		WHERE session_id = ?`,
		s.TotalNumberOfStrokes, s.TotalLinearDistanceSinceStart, s.TotalMovingTimeSinceStart,
		nullable(s.RecoveryDragFactor), id)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

// EndSession marks a session as finished.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, unixSeconds(at), id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// RecordStroke stores a completed stroke.
func (db *DB) RecordStroke(st Stroke) error {
	var curve sql.NullString
	if len(st.ForceCurve) > 0 {
		b, err := json.Marshal(st.ForceCurve)
		if err != nil {
			return err
		}
		curve = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.Exec(
		`INSERT INTO strokes (
			session_id, stroke_number, recorded_at, moving_time, distance,
			cycle_duration, cycle_distance, cycle_velocity, cycle_power,
			drive_duration, drive_length, drive_distance, drive_average_force, drive_peak_force,
			recovery_duration, recovery_distance, drag_factor, force_curve
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.SessionID, st.StrokeNumber, unixSeconds(st.RecordedAt), st.MovingTime, st.Distance,
		nullable(st.CycleDuration), nullable(st.CycleDistance), nullable(st.CycleVelocity), nullable(st.CyclePower),
		nullable(st.DriveDuration), nullable(st.DriveLength), nullable(st.DriveDistance),
		nullable(st.AverageForce), nullable(st.PeakForce),
		nullable(st.RecoveryDuration), nullable(st.RecoveryDistance), nullable(st.DragFactor), curve,
	)
	if err != nil {
		return fmt.Errorf("record stroke %d of %s: %w", st.StrokeNumber, st.SessionID, err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, profile, started_at, ended_at,
			total_strokes, total_distance, moving_time, drag_factor
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s         Session
			startedAt float64
			endedAt   sql.NullFloat64
			drag      sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.Profile, &startedAt, &endedAt,
			&s.TotalStrokes, &s.TotalDistance, &s.MovingTime, &drag); err != nil {
			return nil, err
		}
		s.StartedAt = fromUnixSeconds(startedAt)
		if endedAt.Valid {
			t := fromUnixSeconds(endedAt.Float64)
			s.EndedAt = &t
		}
		s.DragFactor = metric(drag)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Strokes returns the strokes of a session in order.
func (db *DB) Strokes(sessionID string) ([]Stroke, error) {
	rows, err := db.Query(`SELECT stroke_number, recorded_at, moving_time, distance,
			cycle_duration, cycle_distance, cycle_velocity, cycle_power,
			drive_duration, drive_length, drive_distance, drive_average_force, drive_peak_force,
			recovery_duration, recovery_distance, drag_factor, force_curve
		FROM strokes WHERE session_id = ? ORDER BY stroke_number`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strokes []Stroke
	for rows.Next() {
		var (
			st         = Stroke{SessionID: sessionID}
			recordedAt float64
			m          [12]sql.NullFloat64
			curve      sql.NullString
		)
		if err := rows.Scan(&st.StrokeNumber, &recordedAt, &st.MovingTime, &st.Distance,
			&m[0], &m[1], &m[2], &m[3], &m[4], &m[5], &m[6], &m[7], &m[8], &m[9], &m[10], &m[11],
			&curve); err != nil {
			return nil, err
		}
		st.RecordedAt = fromUnixSeconds(recordedAt)
		st.CycleDuration, st.CycleDistance, st.CycleVelocity, st.CyclePower = metric(m[0]), metric(m[1]), metric(m[2]), metric(m[3])
		st.DriveDuration, st.DriveLength, st.DriveDistance = metric(m[4]), metric(m[5]), metric(m[6])
		st.AverageForce, st.PeakForce = metric(m[7]), metric(m[8])
		st.RecoveryDuration, st.RecoveryDistance, st.DragFactor = metric(m[9]), metric(m[10]), metric(m[11])
		if curve.Valid {
			if err := json.Unmarshal([]byte(curve.String), &st.ForceCurve); err != nil {
				return nil, fmt.Errorf("stroke %d force curve: %w", st.StrokeNumber, err)
			}
		}
		strokes = append(strokes, st)
	}
	return strokes, rows.Err()
}
