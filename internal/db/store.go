package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/monitoring"
	"github.com/banshee-data/turret.aim/internal/resolve"
	"github.com/banshee-data/turret.aim/internal/telemetry"
)

// Session is one run of the aiming pipeline, normally process start to
// process exit.
type Session struct {
	ID        string    `json:"id"`
	TeamColor string    `json:"team_color"`
	StartedAt time.Time `json:"started_at"`
}

// NewSession creates and persists a session row.
func (db *DB) NewSession(teamColor string) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		TeamColor: teamColor,
		StartedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		"INSERT INTO sessions (id, team_color, started_at) VALUES (?, ?, ?)",
		s.ID, s.TeamColor, s.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// Detection is one persisted resolved target.
type Detection struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id"`
	Timestamp  history.Micros `json:"ts_us"`
	Confidence float64        `json:"confidence"`
	Color      string         `json:"color"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Z          float64        `json:"z"`
}

// RecordDetections persists a resolved batch under the given capture
// timestamp.
func (db *DB) RecordDetections(sessionID string, ts history.Micros, targets []resolve.TargetPosition) error {
	if len(targets) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin detections tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO detections
		(session_id, ts_us, confidence, color, world_x, world_y, world_z)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare detections insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range targets {
		p := t.Position
		if _, err := stmt.Exec(sessionID, int64(ts), t.Confidence, string(t.Color), p.X, p.Y, p.Z); err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// RecordDrop persists an aggregate count of detections dropped at one
// capture timestamp, with the reason.
func (db *DB) RecordDrop(sessionID string, ts history.Micros, reason string, count int) error {
	_, err := db.Exec(
		"INSERT INTO detection_drops (session_id, ts_us, reason, dropped) VALUES (?, ?, ?, ?)",
		sessionID, int64(ts), reason, count,
	)
	if err != nil {
		return fmt.Errorf("insert drop record: %w", err)
	}
	return nil
}

// RecentDetections returns the newest persisted detections, newest first.
func (db *DB) RecentDetections(limit int) ([]Detection, error) {
	rows, err := db.Query(`SELECT id, session_id, ts_us, confidence, color, world_x, world_y, world_z
		FROM detections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var d Detection
		var ts int64
		if err := rows.Scan(&d.ID, &d.SessionID, &ts, &d.Confidence, &d.Color, &d.X, &d.Y, &d.Z); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.Timestamp = history.Micros(ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDetections returns the number of detections persisted for a
// session.
func (db *DB) CountDetections(sessionID string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM detections WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return n, nil
}

// RecordTelemetry persists one telemetry message.
func (db *DB) RecordTelemetry(sessionID string, m telemetry.Message) error {
	var err error
	switch m.Kind {
	case telemetry.KindOdometry:
		t, q := m.Pose.Translation, m.Pose.Rotation
		_, err = db.Exec(`INSERT INTO telemetry_samples
			(session_id, ts_us, kind, x, y, z, qw, qx, qy, qz)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, int64(m.Timestamp), m.Kind.String(),
			t.X, t.Y, t.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
	default:
		_, err = db.Exec(`INSERT INTO telemetry_samples
			(session_id, ts_us, kind, angle) VALUES (?, ?, ?, ?)`,
			sessionID, int64(m.Timestamp), m.Kind.String(), float64(m.Angle))
	}
	if err != nil {
		return fmt.Errorf("insert telemetry sample: %w", err)
	}
	return nil
}

// TelemetrySample is one persisted joint-angle record, decoded for the
// plotting tools.
type TelemetrySample struct {
	Timestamp history.Micros
	Angle     float64
}

// AngleTrace returns a session's yaw or pitch trace in timestamp order.
func (db *DB) AngleTrace(sessionID, kind string) ([]TelemetrySample, error) {
	rows, err := db.Query(`SELECT ts_us, angle FROM telemetry_samples
		WHERE session_id = ? AND kind = ? ORDER BY ts_us`, sessionID, kind)
	if err != nil {
		return nil, fmt.Errorf("query angle trace: %w", err)
	}
	defer rows.Close()

	var out []TelemetrySample
	for rows.Next() {
		var s TelemetrySample
		var ts int64
		if err := rows.Scan(&ts, &s.Angle); err != nil {
			return nil, fmt.Errorf("scan telemetry sample: %w", err)
		}
		s.Timestamp = history.Micros(ts)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Sessions returns all recorded sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query("SELECT id, team_color, started_at FROM sessions ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var startedAt string
		if err := rows.Scan(&s.ID, &s.TeamColor, &startedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse session start time %q: %w", startedAt, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TelemetrySink returns an ingest sink persisting one telemetry message
// in every keepEvery. Full-rate telemetry at 1kHz would swamp SQLite on
// the robot's SD card; the decimated trace is enough for review.
func (db *DB) TelemetrySink(sessionID string, keepEvery int) func(telemetry.Message) {
	if keepEvery < 1 {
		keepEvery = 1
	}
	n := 0
	return func(m telemetry.Message) {
		n++
		if n%keepEvery != 0 {
			return
		}
		if err := db.RecordTelemetry(sessionID, m); err != nil {
			monitoring.Logf("[DB] %v", err)
		}
	}
}
