// Package storage implements the configuration and history stores on
// Postgres. Expected tables:
//
//	targets        (site_id int, url text)
//	user_agents    (agent text)
//	selector_rules (site_id int, product_name text, code text, price text, stock text)
//	settings       (name text, value double precision)
//	observations   (site_id int, product_name text, code text,
//	                price double precision, stock text,
//	                observed_at timestamptz, url text)
//
// The observations table is append-only; rows are never updated or
// deleted here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"pricewatch/internal/domain"
	"pricewatch/internal/ports"
	"pricewatch/internal/rules"
)

// thresholdSetting is the settings row holding the alert threshold.
const thresholdSetting = "alert_threshold"

// Store implements both external store ports on one Postgres database.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ConfigStore = (*Store)(nil)
var _ ports.HistoryStore = (*Store)(nil)

// Open connects to Postgres and verifies the connection. A failure here
// is a configuration error and aborts the run before any fetching.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wires an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListTargets returns the target set deduplicated by URL; blank URLs are
// dropped.
func (s *Store) ListTargets(ctx context.Context) ([]domain.Target, error) {
	query, args, err := s.sb.Select("site_id", "url").From("targets").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build targets query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var targets []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.SiteID, &t.URL); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		if t.URL == "" {
			continue
		}
		if _, dup := seen[t.URL]; dup {
			continue
		}
		seen[t.URL] = struct{}{}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}

	return targets, nil
}

// ListUserAgents returns the user-agent pool; blank rows are dropped.
func (s *Store) ListUserAgents(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.Select("agent").From("user_agents").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user agents query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user agents: %w", err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var agent string
		if err := rows.Scan(&agent); err != nil {
			return nil, fmt.Errorf("scan user agent: %w", err)
		}
		if agent != "" {
			agents = append(agents, agent)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user agents: %w", err)
	}

	return agents, nil
}

// GetSelectorRules returns the per-site rule sets, parsing each stored
// cell into its ordered fallback selector list.
func (s *Store) GetSelectorRules(ctx context.Context) ([]domain.SelectorRuleSet, error) {
	query, args, err := s.sb.
		Select("site_id", "product_name", "code", "price", "stock").
		From("selector_rules").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build selector rules query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query selector rules: %w", err)
	}
	defer rows.Close()

	var sets []domain.SelectorRuleSet
	for rows.Next() {
		var (
			siteID                  int
			name, code, price, stock string
		)
		if err := rows.Scan(&siteID, &name, &code, &price, &stock); err != nil {
			return nil, fmt.Errorf("scan selector rule: %w", err)
		}
		sets = append(sets, rules.NewRuleSet(siteID, name, code, price, stock))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selector rules: %w", err)
	}

	return sets, nil
}

// GetThreshold returns the alert threshold, validated as a positive
// fraction.
func (s *Store) GetThreshold(ctx context.Context) (float64, error) {
	query, args, err := s.sb.
		Select("value").
		From("settings").
		Where(sq.Eq{"name": thresholdSetting}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build threshold query: %w", err)
	}

	var threshold float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&threshold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("setting %q is not configured", thresholdSetting)
		}
		return 0, fmt.Errorf("query threshold: %w", err)
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("threshold must be a positive fraction, got %v", threshold)
	}

	return threshold, nil
}

// AppendObservations writes the run batch in one transaction so the
// append is all-or-nothing. Rows without a valid price never reach the
// log.
func (s *Store) AppendObservations(ctx context.Context, batch []domain.Observation) error {
	if len(batch) == 0 {
		return nil
	}

	builder := s.sb.
		Insert("observations").
		Columns("site_id", "product_name", "code", "price", "stock", "observed_at", "url")

	inserted := 0
	for _, obs := range batch {
		if !obs.Price.Valid {
			continue
		}
		builder = builder.Values(obs.SiteID, obs.ProductName, obs.Code, obs.Price.Value, obs.Stock, obs.Timestamp, obs.URL)
		inserted++
	}
	if inserted == 0 {
		return nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build observations insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert observations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	return nil
}

// ReadAll returns the full historical log ordered by observation time.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Observation, error) {
	query, args, err := s.sb.
		Select("site_id", "product_name", "code", "price", "stock", "observed_at", "url").
		From("observations").
		OrderBy("observed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build observations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var log []domain.Observation
	for rows.Next() {
		var (
			obs   domain.Observation
			price float64
			at    time.Time
		)
		if err := rows.Scan(&obs.SiteID, &obs.ProductName, &obs.Code, &price, &obs.Stock, &at, &obs.URL); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.Price = domain.NewPrice(price)
		obs.Timestamp = at
		log = append(log, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return log, nil
}
