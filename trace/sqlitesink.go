package trace

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
)

// SQLiteSink persists access records to a SQLite database, batching inserts
// inside a transaction. Grounded on the reference's tracing.SQLiteTraceWriter:
// a lazily-opened *sql.DB, one prepared statement reused across a batch, and
// an explicit BEGIN/COMMIT wrapping each flush.
type SQLiteSink struct {
	db        *sql.DB
	statement *sql.Stmt

	path      string
	records   []Record
	batchSize int
}

// NewSQLiteSink returns a SQLiteSink writing to a database file at path. If
// path is empty, a unique name is generated on first use.
func NewSQLiteSink(path string) *SQLiteSink {
	return &SQLiteSink{
		path:      path,
		batchSize: 10000,
	}
}

func (s *SQLiteSink) ensureOpen() {
	if s.db != nil {
		return
	}

	if s.path == "" {
		s.path = "vmem_trace_" + xid.New().String() + ".sqlite"
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		panic(err)
	}
	s.db = db

	s.mustExec(`CREATE TABLE IF NOT EXISTS accesses (
		pid INTEGER, addr INTEGER, kind TEXT, paddr INTEGER
	)`)

	stmt, err := s.db.Prepare("INSERT INTO accesses (pid, addr, kind, paddr) VALUES (?, ?, ?, ?)")
	if err != nil {
		panic(err)
	}
	s.statement = stmt
}

func (s *SQLiteSink) mustExec(query string) {
	if _, err := s.db.Exec(query); err != nil {
		panic(err)
	}
}

// Write buffers record, flushing automatically once batchSize records have
// accumulated.
func (s *SQLiteSink) Write(record Record) {
	s.ensureOpen()

	s.records = append(s.records, record)
	if len(s.records) >= s.batchSize {
		s.Flush()
	}
}

// Flush inserts every buffered record inside one transaction.
func (s *SQLiteSink) Flush() {
	if s.db == nil || len(s.records) == 0 {
		return
	}

	s.mustExec("BEGIN TRANSACTION")
	for _, r := range s.records {
		if _, err := s.statement.Exec(r.PID, r.Access.Addr, r.Access.Kind.String(), r.PAddr); err != nil {
			panic(fmt.Errorf("trace: sqlite insert failed: %w", err))
		}
	}
	s.mustExec("COMMIT TRANSACTION")

	s.records = nil
}

// Close flushes, finalizes the prepared statement, and closes the database.
func (s *SQLiteSink) Close() {
	if s.db == nil {
		return
	}

	s.Flush()
	if err := s.statement.Close(); err != nil {
		panic(err)
	}
	if err := s.db.Close(); err != nil {
		panic(err)
	}
}
