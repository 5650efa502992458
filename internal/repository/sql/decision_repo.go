package sql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/audit"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DecisionRepository appends decision records to a relational table.
type DecisionRepository struct {
	db      *sql.DB
	dialect string
	table   string
}

// Open connects with the driver matching dialect and verifies the connection.
// MySQL DSNs need parseTime=true so created_at scans into time.Time.
func Open(ctx context.Context, dialect, dsn string) (*sql.DB, error) {
	if dialect != DialectMySQL && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewDecisionRepository(db *sql.DB, dialect, table string) (*DecisionRepository, error) {
	if dialect != DialectMySQL && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if table == "" {
		table = "decisions"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DecisionRepository{db: db, dialect: dialect, table: table}, nil
}

// EnsureSchema creates the table and its timestamp index when missing.
func (r *DecisionRepository) EnsureSchema(ctx context.Context) error {
	tsType := "TIMESTAMP(6)"
	if r.dialect == DialectPostgres {
		tsType = "TIMESTAMPTZ"
	}
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(36) PRIMARY KEY,
		payload TEXT NOT NULL,
		waf_verdict VARCHAR(16) NOT NULL,
		ml_verdict VARCHAR(16) NOT NULL,
		combined_verdict VARCHAR(16) NOT NULL,
		model_id VARCHAR(64) NOT NULL,
		dataset_id VARCHAR(64) NOT NULL,
		created_at %s NOT NULL
	)`, r.table, tsType)
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	index := fmt.Sprintf("CREATE INDEX idx_%s_ts ON %s (created_at)", r.table, r.table)
	if r.dialect == DialectPostgres {
		index = fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (created_at)", r.table, r.table)
	}
	if _, err := r.db.ExecContext(ctx, index); err != nil {
		// MySQL has no IF NOT EXISTS for indexes; 1061 is "duplicate key name"
		if r.dialect == DialectMySQL && strings.Contains(err.Error(), "1061") {
			return nil
		}
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// placeholders renders n bind parameters in the dialect's syntax.
func (r *DecisionRepository) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if r.dialect == DialectPostgres {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

func (r *DecisionRepository) Name() string { return "sql" }

func (r *DecisionRepository) Write(ctx context.Context, rec core.DecisionRecord) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, payload, waf_verdict, ml_verdict, combined_verdict, model_id, dataset_id, created_at)
		VALUES (%s)`, r.table, r.placeholders(8))

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Payload,
		string(rec.WAFVerdict),
		string(rec.MLVerdict),
		string(rec.CombinedVerdict),
		rec.ModelID,
		rec.DatasetID,
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", rec.ID, err)
	}
	return nil
}

func (r *DecisionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *DecisionRepository) List(ctx context.Context, filter core.AuditFilter) (*core.PaginatedDecisions, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(col string, v string) {
		args = append(args, v)
		if r.dialect == DialectPostgres {
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		} else {
			where = append(where, col+" = ?")
		}
	}
	if filter.DatasetID != "" {
		add("dataset_id", filter.DatasetID)
	}
	if filter.ModelID != "" {
		add("model_id", filter.ModelID)
	}
	if filter.Verdict != "" {
		add("combined_verdict", string(filter.Verdict))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table, clause), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}

	page, limit := audit.NormalizePage(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT id, payload, waf_verdict, ml_verdict, combined_verdict, model_id, dataset_id, created_at
		FROM %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, r.table, clause, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	decisions := []core.DecisionRecord{}
	for rows.Next() {
		var rec core.DecisionRecord
		var waf, ml, combined string
		if err := rows.Scan(&rec.ID, &rec.Payload, &waf, &ml, &combined, &rec.ModelID, &rec.DatasetID, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.WAFVerdict, rec.MLVerdict, rec.CombinedVerdict = core.Verdict(waf), core.Verdict(ml), core.Verdict(combined)
		decisions = append(decisions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := &core.PaginatedDecisions{Data: decisions}
	out.Pagination.CurrentPage = page
	out.Pagination.TotalPages = audit.TotalPages(total, limit)
	out.Pagination.TotalItems = total
	out.Pagination.PerPage = limit
	return out, nil
}

// Close leaves the shared *sql.DB to its owner.
func (r *DecisionRepository) Close() error { return nil }
