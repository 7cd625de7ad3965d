// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package persist implements the per-host flow log that lives under each
// host's subdirectory of general.data_directory (spec section 6,
// "Persisted state"). It records TCP/UDP socket lifecycle events —
// creation, state transitions, and closure — the way the teacher's
// internal/analytics store records flow summaries, adapted from aggregated
// byte/packet counters to individual socket lifecycle records.
package persist

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simtime"
)

// Record is one logged socket lifecycle event.
type Record struct {
	Time     simtime.EmulatedTime
	Pid      int32
	Fd       int32
	Protocol string
	Local    packet.SocketAddrV4
	Remote   packet.SocketAddrV4
	State    string
	BytesIn  int64
	BytesOut int64
}

// Store is a single host's flow log, backed by one sqlite file under that
// host's output subdirectory.
type Store struct {
	db *sql.DB
}

// Open opens or creates the flow log at <hostDir>/flows.db.
func Open(hostDir string) (*Store, error) {
	path := filepath.Join(hostDir, "flows.db")
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS flows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sim_time_ns INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		fd INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		local_addr TEXT NOT NULL,
		remote_addr TEXT NOT NULL,
		state TEXT NOT NULL,
		bytes_in INTEGER DEFAULT 0,
		bytes_out INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_flows_pid_fd ON flows(pid, fd);
	CREATE INDEX IF NOT EXISTS idx_flows_time ON flows(sim_time_ns);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordEvent appends one lifecycle record. Unlike the teacher's
// UPSERT-and-accumulate summaries, every call here is a fresh row: the log
// is a timeline of state transitions, not a rolling counter.
func (s *Store) RecordEvent(r Record) error {
	_, err := s.db.Exec(
		`INSERT INTO flows (sim_time_ns, pid, fd, protocol, local_addr, remote_addr, state, bytes_in, bytes_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(r.Time.Sub(simtime.SimulationStart)), r.Pid, r.Fd, r.Protocol,
		r.Local.String(), r.Remote.String(), r.State, r.BytesIn, r.BytesOut,
	)
	return err
}

// FlowHistory returns every recorded transition for one socket (pid, fd
// pair), in the order they occurred.
func (s *Store) FlowHistory(pid int32, fd int32) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT sim_time_ns, pid, fd, protocol, local_addr, remote_addr, state, bytes_in, bytes_out
		 FROM flows WHERE pid = ? AND fd = ? ORDER BY sim_time_ns ASC`, pid, fd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ActiveFlows returns every socket whose most recent recorded state is not
// "closed", as of the full log (used for an end-of-run summary).
func (s *Store) ActiveFlows() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT sim_time_ns, pid, fd, protocol, local_addr, remote_addr, state, bytes_in, bytes_out
		FROM flows f
		WHERE sim_time_ns = (SELECT MAX(sim_time_ns) FROM flows WHERE pid = f.pid AND fd = f.fd)
		AND state != 'closed'
		ORDER BY pid, fd`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var nanos int64
		var local, remote string
		if err := rows.Scan(&nanos, &r.Pid, &r.Fd, &r.Protocol, &local, &remote, &r.State, &r.BytesIn, &r.BytesOut); err != nil {
			return nil, err
		}
		r.Time = simtime.SimulationStart.Add(simtime.Duration(nanos))
		out = append(out, r)
	}
	return out, rows.Err()
}
