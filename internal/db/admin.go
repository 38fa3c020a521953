package db

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/rowing.report/internal/httputil"
)

// AttachAdminRoutes mounts the recorder's debug routes under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("sessions", "Recent recorded sessions (JSON, ?limit=)", http.HandlerFunc(db.handleSessions))
	debug.Handle("strokes", "Strokes of a recorded session (JSON, ?session=)", http.HandlerFunc(db.handleStrokes))
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
}

func (db *DB) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	sessions, err := db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (db *DB) handleStrokes(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		httputil.BadRequest(w, "missing session parameter")
		return
	}
	strokes, err := db.Strokes(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(strokes) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no strokes for session %q", id))
		return
	}
	httputil.WriteJSONOK(w, strokes)
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("rowing-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	// close the backup file after sending it and remove it from the filesystem
	defer func() {
		if err := os.Remove(backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		log.Printf("Failed to write backup file: %v", err)
	}
}
