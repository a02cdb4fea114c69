package audit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingConn is a stub driver connection that accepts every exec and
// records the bound arguments so tests can assert on what the repo sends.
type recordingConn struct {
	mu    sync.Mutex
	execs [][]driver.Value
}

type recordingDriver struct {
	conn *recordingConn
}

func (d *recordingDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	vals := make([]driver.Value, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.mu.Lock()
	c.execs = append(c.execs, vals)
	c.mu.Unlock()
	return driver.RowsAffected(1), nil
}

var recordedConn = &recordingConn{}

func init() {
	sql.Register("audit-recorder", &recordingDriver{conn: recordedConn})
}

// The audit_events.metadata column is JSONB NOT NULL; binding the empty
// string fails the insert, silently losing the audit row. Both service call
// sites pass no metadata, so the repo must coalesce to a JSON object.
func TestPostgresAppend_BindsValidJSONMetadata(t *testing.T) {
	db, err := sql.Open("audit-recorder", "")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	defer db.Close()

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), Event{
		ID:        "ev-1",
		Type:      EventTypeBalanceAdjustment,
		ClientID:  "client-1",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	recordedConn.mu.Lock()
	defer recordedConn.mu.Unlock()
	if len(recordedConn.execs) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(recordedConn.execs))
	}
	meta, ok := recordedConn.execs[0][8].(string) // $9 = metadata
	if !ok {
		t.Fatalf("metadata arg is %T, want string", recordedConn.execs[0][8])
	}
	if !json.Valid([]byte(meta)) {
		t.Fatalf("metadata %q is not valid JSON", meta)
	}
	if meta != "{}" {
		t.Fatalf("expected empty metadata to coalesce to {}, got %q", meta)
	}
}
