package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	targets TEXT NOT NULL,
	message_template TEXT NOT NULL DEFAULT '',
	daily_limit INTEGER NOT NULL,
	total_processed INTEGER NOT NULL DEFAULT 0,
	total_successful INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);

CREATE TABLE IF NOT EXISTS action_results (
	id TEXT PRIMARY KEY,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id),
	profile_url TEXT NOT NULL,
	action_type TEXT NOT NULL,
	status TEXT NOT NULL,
	response TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	sequence INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(campaign_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_results_campaign_created ON action_results(campaign_id, created_at);

CREATE TABLE IF NOT EXISTS linkedin_accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	is_active INTEGER NOT NULL DEFAULT 1,
	connected_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database file
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	hub    *hub
	now    func() time.Time
	logger logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps pragmas and :memory: databases consistent
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		path:   path,
		hub:    newHub(),
		now:    time.Now,
		logger: logger.GetLogger().WithField("component", "store"),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.DebugWithFields("Result store opened", map[string]interface{}{"path": path})
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			s.logger.WithError(err).WithField("pragma", pragma).Debug("Failed to set sqlite pragma")
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	targets, err := json.Marshal(c.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, type, status, targets, message_template, daily_limit,
			total_processed, total_successful, failure_reason, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), string(c.Status), string(targets), c.MessageTemplate, c.DailyLimit,
		c.TotalProcessed, c.TotalSuccessful, c.FailureReason, toUnix(c.CreatedAt), toUnix(c.UpdatedAt), nullTime(c.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	targets, err := json.Marshal(c.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET name = ?, type = ?, status = ?, targets = ?, message_template = ?,
			daily_limit = ?, total_processed = ?, total_successful = ?, failure_reason = ?,
			updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		c.Name, string(c.Type), string(c.Status), string(targets), c.MessageTemplate,
		c.DailyLimit, c.TotalProcessed, c.TotalSuccessful, c.FailureReason,
		toUnix(c.UpdatedAt), nullTime(c.DeletedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", errs.ErrCampaignNotFound, c.ID)
	}
	return nil
}

const campaignColumns = `id, name, type, status, targets, message_template, daily_limit,
	total_processed, total_successful, failure_reason, created_at, updated_at, deleted_at`

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+campaignColumns+" FROM campaigns WHERE id = ? AND deleted_at IS NULL", id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrCampaignNotFound, id)
	}
	return c, err
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]*models.Campaign, error) {
	query := "SELECT " + campaignColumns + " FROM campaigns"
	var conds []string
	var args []interface{}
	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var out []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row scanner) (*models.Campaign, error) {
	var (
		c                    models.Campaign
		typ, status, targets string
		created, updated     int64
		deleted              sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.Name, &typ, &status, &targets, &c.MessageTemplate, &c.DailyLimit,
		&c.TotalProcessed, &c.TotalSuccessful, &c.FailureReason, &created, &updated, &deleted)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(targets), &c.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets of campaign %s: %w", c.ID, err)
	}
	c.Type = models.CampaignType(typ)
	c.Status = models.CampaignStatus(status)
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	if deleted.Valid {
		d := fromUnix(deleted.Int64)
		c.DeletedAt = &d
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func (s *SQLiteStore) AppendResult(ctx context.Context, r *models.ActionResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) + 1 FROM action_results WHERE campaign_id = ?", r.CampaignID,
	).Scan(&seq)
	if err == nil {
		r.Sequence = seq
		_, err = tx.ExecContext(ctx, `
			INSERT INTO action_results (id, campaign_id, profile_url, action_type, status, response, error_kind, sequence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.CampaignID, r.ProfileURL, string(r.ActionType), string(r.Status), r.Response, r.ErrorKind, r.Sequence, toUnix(r.CreatedAt),
		)
	}
	if err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return fmt.Errorf("failed to insert action result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to commit action result: %w", err)
	}
	s.mu.Unlock()

	s.hub.publish(r)
	return nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]*models.ActionResult, error) {
	query := `SELECT id, campaign_id, profile_url, action_type, status, response, error_kind, sequence, created_at
		FROM action_results`
	var conds []string
	var args []interface{}
	if filter.CampaignID != "" {
		conds = append(conds, "campaign_id = ?")
		args = append(args, filter.CampaignID)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, toUnix(filter.Since))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	order := "created_at, sequence"
	if filter.CampaignID != "" {
		order = "sequence"
	}
	if filter.NewestFirst {
		order = strings.ReplaceAll(order, ",", " DESC,") + " DESC"
	}
	query += " ORDER BY " + order
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []*models.ActionResult
	for rows.Next() {
		var (
			r                  models.ActionResult
			actionType, status string
			created            int64
		)
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.ProfileURL, &actionType, &status,
			&r.Response, &r.ErrorKind, &r.Sequence, &created); err != nil {
			return nil, err
		}
		r.ActionType = models.CampaignType(actionType)
		r.Status = models.ResultStatus(status)
		r.CreatedAt = fromUnix(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountActions(ctx context.Context, campaignID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM action_results
		WHERE campaign_id = ? AND created_at >= ? AND status != ?`,
		campaignID, toUnix(since), string(models.ResultSkipped),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) RegisterAccount(ctx context.Context, name string) (*models.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.getAccount(ctx, name)
	if err == nil {
		if !acct.IsActive {
			acct.IsActive = true
			acct.UpdatedAt = s.now().UTC()
			if _, err := s.db.ExecContext(ctx,
				"UPDATE linkedin_accounts SET is_active = 1, updated_at = ? WHERE name = ?",
				toUnix(acct.UpdatedAt), name); err != nil {
				return nil, false, fmt.Errorf("failed to reactivate account: %w", err)
			}
		}
		return acct, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	now := s.now().UTC()
	acct = &models.Account{ID: uuid.NewString(), Name: name, IsActive: true, ConnectedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linkedin_accounts (id, name, is_active, connected_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		acct.ID, acct.Name, toUnix(now), toUnix(now))
	if err != nil {
		return nil, false, fmt.Errorf("failed to register account: %w", err)
	}
	return acct, true, nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, name string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccount(ctx, name)
}

func (s *SQLiteStore) getAccount(ctx context.Context, name string) (*models.Account, error) {
	var (
		a                  models.Account
		active             int
		connected, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, is_active, connected_at, updated_at FROM linkedin_accounts WHERE name = ?", name,
	).Scan(&a.ID, &a.Name, &active, &connected, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	a.IsActive = active != 0
	a.ConnectedAt = fromUnix(connected)
	a.UpdatedAt = fromUnix(updated)
	return &a, nil
}

func (s *SQLiteStore) SetAccountActive(ctx context.Context, name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flag := 0
	if active {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE linkedin_accounts SET is_active = ?, updated_at = ? WHERE name = ?",
		flag, toUnix(s.now()), name)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM linkedin_accounts WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Subscribe(filter ResultFilter, onInsert func(*models.ActionResult)) func() {
	return s.hub.subscribe(filter, onInsert)
}
