package source

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/gyaneshwarpardhi/flowlens/internal/event"
)

// ClickHouseConfig locates an events table. The table must expose the
// columns uuid, user_id, session_id, event_time, path, css, text and value.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Table    string
	Since    time.Time // zero means unbounded
	Until    time.Time // zero means unbounded
}

const defaultTable = "events"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseConfigFromEnv reads CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT,
// CLICKHOUSE_DB_NAME, CLICKHOUSE_USERNAME, CLICKHOUSE_PASSWORD and
// CLICKHOUSE_TABLE (default "events").
func ClickHouseConfigFromEnv() (ClickHouseConfig, error) {
	cfg := ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Database: os.Getenv("CLICKHOUSE_DB_NAME"),
		Username: os.Getenv("CLICKHOUSE_USERNAME"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Table:    os.Getenv("CLICKHOUSE_TABLE"),
	}
	portStr := os.Getenv("CLICKHOUSE_NATIVE_PORT")
	if cfg.Host == "" || portStr == "" || cfg.Database == "" {
		return cfg, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME environment variables are not set")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return cfg, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}
	cfg.Port = port
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	return cfg, cfg.Validate()
}

// Validate rejects table names that cannot be safely interpolated.
func (c ClickHouseConfig) Validate() error {
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid ClickHouse table name %q", c.Table)
	}
	if !c.Since.IsZero() && !c.Until.IsZero() && !c.Since.Before(c.Until) {
		return fmt.Errorf("ClickHouse window: since %s is not before until %s", c.Since, c.Until)
	}
	return nil
}

// Query builds the SELECT statement and its arguments. Every column is read
// as a string so the normalizer applies the same rules as for JSONL input.
func (c ClickHouseConfig) Query() (string, []any) {
	query := fmt.Sprintf(`
		SELECT
			toString(uuid), toString(user_id), toString(session_id), toString(event_time),
			ifNull(toString(path), ''), ifNull(toString(css), ''),
			ifNull(toString(text), ''), ifNull(toString(value), '')
		FROM %s`, c.Table)

	var (
		where string
		args  []any
	)
	if !c.Since.IsZero() {
		where = " WHERE event_time >= ?"
		args = append(args, c.Since)
	}
	if !c.Until.IsZero() {
		if where == "" {
			where = " WHERE event_time < ?"
		} else {
			where += " AND event_time < ?"
		}
		args = append(args, c.Until)
	}
	return query + where + " ORDER BY event_time ASC", args
}

// ClickHouse streams records from a ClickHouse table over the native protocol.
type ClickHouse struct {
	Conn clickhouse.Conn
	cfg  ClickHouseConfig
}

// OpenClickHouse connects and pings the server.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "flowlens", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("connect to ClickHouse: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping ClickHouse: %w", err)
	}
	slog.Info("connected to ClickHouse", "addr", options.Addr[0], "table", cfg.Table)
	return &ClickHouse{Conn: conn, cfg: cfg}, nil
}

// Stream returns a lazy reader over the configured table.
func (c *ClickHouse) Stream(ctx context.Context) Stream {
	return &clickHouseStream{ctx: ctx, conn: c.Conn, cfg: c.cfg}
}

// Close releases the connection.
func (c *ClickHouse) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

type clickHouseStream struct {
	ctx  context.Context
	conn clickhouse.Conn
	cfg  ClickHouseConfig
	err  error
}

func (s *clickHouseStream) Err() error { return s.err }

func (s *clickHouseStream) Records() iter.Seq[event.RawRecord] {
	return func(yield func(event.RawRecord) bool) {
		query, args := s.cfg.Query()
		rows, err := s.conn.Query(s.ctx, query, args...)
		if err != nil {
			s.err = fmt.Errorf("query %s: %w", s.cfg.Table, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var cols [8]string
			if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6], &cols[7]); err != nil {
				slog.Warn("skipping unreadable ClickHouse row", "err", err)
				if !yield(nil) {
					return
				}
				continue
			}
			if !yield(rowRecord(cols)) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			s.err = fmt.Errorf("read %s: %w", s.cfg.Table, err)
		}
	}
}

var rowFields = [8]string{
	event.FieldUUID, event.FieldUserID, event.FieldSessionID, event.FieldEventTime,
	event.FieldPath, event.FieldCSS, event.FieldText, event.FieldValue,
}

// rowRecord maps a scanned row onto a RawRecord. Empty columns are left out
// so they count as missing.
func rowRecord(cols [8]string) event.RawRecord {
	rec := make(event.RawRecord, len(cols))
	for i, v := range cols {
		if v == "" {
			continue
		}
		if rowFields[i] == event.FieldEventTime {
			v = clickHouseTime(v)
		}
		rec[rowFields[i]] = v
	}
	return rec
}

// clickHouseTime rewrites DateTime/DateTime64 text ("2024-05-01 10:00:00.123")
// as RFC 3339 in UTC. Values the normalizer cannot parse pass through and are
// rejected there.
func clickHouseTime(v string) string {
	t, err := event.ParseTime(v)
	if err != nil {
		return v
	}
	return t.Format(time.RFC3339Nano)
}
