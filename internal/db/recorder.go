package db

import (
	"log"
	"time"

	"github.com/banshee-data/rowing.report/internal/session"
)

// Recorder is a session sink that stores completed strokes. A database
// session opens with the first completed stroke and ends on stop, reset or
// shutdown.
type Recorder struct {
	db      *DB
	profile string

	sessionID string
	lastSeen  time.Time
}

// NewRecorder records into db, labelling sessions with the machine profile.
func NewRecorder(db *DB, profile string) *Recorder {
	return &Recorder{db: db, profile: profile}
}

func (r *Recorder) Name() string { return "sqlite" }

// SessionID returns the open session, or "" when none is open.
func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) Consume(u session.Update) error {
	switch u.Event {
	case session.EventStrokeCompleted:
		if r.sessionID == "" {
			id, err := r.db.StartSession(r.profile, u.Time)
			if err != nil {
				return err
			}
			r.sessionID = id
			log.Printf("recording session %s", id)
		}
		r.lastSeen = u.Time
		if err := r.db.RecordStroke(StrokeFromSnapshot(r.sessionID, u.Time, u.Snapshot, u.Curves)); err != nil {
			return err
		}
		return r.db.UpdateSessionTotals(r.sessionID, u.Snapshot)

	case session.EventTick, session.EventStall:
		if r.sessionID == "" || u.TotalNumberOfStrokes == 0 {
			return nil
		}
		r.lastSeen = u.Time
		return r.db.UpdateSessionTotals(r.sessionID, u.Snapshot)

	case session.EventControl:
		switch u.Command {
		case session.Stop.String():
			if r.sessionID != "" {
				if err := r.db.UpdateSessionTotals(r.sessionID, u.Snapshot); err != nil {
					return err
				}
			}
			return r.end(u.Time)
		case session.Reset.String():
			// Totals were zeroed by the reset; keep the last stored ones.
			return r.end(u.Time)
		}
	}
	return nil
}

func (r *Recorder) end(at time.Time) error {
	if r.sessionID == "" {
		return nil
	}
	id := r.sessionID
	r.sessionID = ""
	return r.db.EndSession(id, at)
}

// Close ends the open session at the time of the last update it saw.
func (r *Recorder) Close() error {
	return r.end(r.lastSeen)
}
