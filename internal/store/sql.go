package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/thongnm19089/share-fb/internal/models"
)

var (
	postgresSchema = []string{
		`CREATE TABLE IF NOT EXISTS monitored_targets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			feed_url TEXT NOT NULL,
			auto_scan BOOLEAN NOT NULL DEFAULT FALSE,
			scan_time TEXT,
			status TEXT NOT NULL DEFAULT 'idle',
			last_crawled_at TIMESTAMPTZ,
			last_attempt_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS hot_posts (
			id BIGSERIAL PRIMARY KEY,
			target_id TEXT NOT NULL,
			url TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			posted_at TIMESTAMPTZ NOT NULL,
			likes BIGINT NOT NULL DEFAULT 0,
			comments BIGINT NOT NULL DEFAULT 0,
			shares BIGINT NOT NULL DEFAULT 0,
			total_engagement BIGINT NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (target_id, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hot_posts_target ON hot_posts(target_id, id DESC)`,
		`ALTER TABLE monitored_targets ADD COLUMN IF NOT EXISTS last_attempt_at TIMESTAMPTZ`,
	}

	sqliteSchema = []string{
		`CREATE TABLE IF NOT EXISTS monitored_targets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			feed_url TEXT NOT NULL,
			auto_scan BOOLEAN NOT NULL DEFAULT 0,
			scan_time TEXT,
			status TEXT NOT NULL DEFAULT 'idle',
			last_crawled_at TIMESTAMP,
			last_attempt_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hot_posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id TEXT NOT NULL,
			url TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			posted_at TIMESTAMP NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			comments INTEGER NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			total_engagement INTEGER NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (target_id, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hot_posts_target ON hot_posts(target_id, id DESC)`,
	}
)

const (
	existsPostQuery = `SELECT 1 FROM hot_posts WHERE target_id = ? AND url = ?`

	upsertPostQuery = `
		INSERT INTO hot_posts (target_id, url, caption, posted_at, likes, comments, shares, total_engagement, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target_id, url)
		DO UPDATE SET caption = excluded.caption,
			posted_at = excluded.posted_at,
			likes = excluded.likes,
			comments = excluded.comments,
			shares = excluded.shares,
			total_engagement = excluded.total_engagement,
			updated_at = excluded.updated_at`

	knownURLsQuery = `SELECT url FROM hot_posts WHERE target_id = ? ORDER BY id DESC LIMIT ?`

	postsQuery = `
		SELECT target_id, url, caption, posted_at, likes, comments, shares
		FROM hot_posts WHERE target_id = ?
		ORDER BY total_engagement DESC, id ASC`

	targetColumns = `id, name, feed_url, auto_scan, scan_time, status, last_crawled_at, last_attempt_at`

	targetsQuery = `SELECT ` + targetColumns + ` FROM monitored_targets ORDER BY id`
	targetQuery  = `SELECT ` + targetColumns + ` FROM monitored_targets WHERE id = ?`

	saveTargetQuery = `
		INSERT INTO monitored_targets (` + targetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET name = excluded.name,
			feed_url = excluded.feed_url,
			auto_scan = excluded.auto_scan,
			scan_time = excluded.scan_time,
			status = excluded.status,
			last_crawled_at = excluded.last_crawled_at,
			last_attempt_at = excluded.last_attempt_at`

	setStatusQuery     = `UPDATE monitored_targets SET status = ? WHERE id = ?`
	markCrawledQuery   = `UPDATE monitored_targets SET status = ?, last_crawled_at = ? WHERE id = ?`
	markAttemptedQuery = `UPDATE monitored_targets SET last_attempt_at = ? WHERE id = ?`
)

// SQLStore 基于 database/sql 的存储, 支持 PostgreSQL(lib/pq) 和 SQLite(go-sqlite3)
type SQLStore struct {
	db     *sql.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// OpenSQL 连接数据库并创建表
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("存储驱动 %s 需要 dsn", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if driver == "sqlite3" {
		// SQLite 单写者
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: driver}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == "postgres" {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("创建表失败: %w", err)
		}
	}
	if s.driver != "postgres" {
		// 旧版本创建的表缺少该列; SQLite 不支持 ADD COLUMN IF NOT EXISTS
		_, err := s.db.ExecContext(ctx, `ALTER TABLE monitored_targets ADD COLUMN last_attempt_at TIMESTAMP`)
		if err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("升级表结构失败: %w", err)
		}
	}
	return nil
}

// rebind 把 ? 占位符转换为 PostgreSQL 的 $n
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert 实现 PostStore
func (s *SQLStore) Upsert(ctx context.Context, targetID, url string, f models.PostFields) (bool, error) {
	rec := models.NewPostRecord(targetID, url, f)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsert 帖子: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	created := false
	err = tx.QueryRowContext(ctx, s.rebind(existsPostQuery), targetID, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		created = true
	} else if err != nil {
		return false, fmt.Errorf("upsert 帖子: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(upsertPostQuery),
		rec.TargetID, rec.URL, rec.Caption, rec.PostedAt.UTC(),
		rec.Likes, rec.Comments, rec.Shares, rec.TotalEngagement,
		now, now,
	)
	if err != nil {
		return false, fmt.Errorf("upsert 帖子: %w", describe(err))
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert 帖子: %w", err)
	}
	return created, nil
}

// KnownURLs 实现 PostStore
func (s *SQLStore) KnownURLs(ctx context.Context, targetID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
		if s.driver == "postgres" {
			limit = 1 << 30
		}
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(knownURLsQuery), targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询已知帖子失败: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("查询已知帖子失败: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Posts 实现 PostStore
func (s *SQLStore) Posts(ctx context.Context, targetID string) ([]models.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(postsQuery), targetID)
	if err != nil {
		return nil, fmt.Errorf("查询帖子失败: %w", err)
	}
	defer rows.Close()

	var out []models.PostRecord
	for rows.Next() {
		var r models.PostRecord
		if err := rows.Scan(&r.TargetID, &r.URL, &r.Caption, &r.PostedAt, &r.Likes, &r.Comments, &r.Shares); err != nil {
			return nil, fmt.Errorf("查询帖子失败: %w", err)
		}
		r.Recompute()
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (models.MonitoredTarget, error) {
	var (
		t        models.MonitoredTarget
		scanTime sql.NullString
		status   string
		last     sql.NullTime
		attempt  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Name, &t.FeedURL, &t.AutoScan, &scanTime, &status, &last, &attempt); err != nil {
		return t, err
	}
	t.Status = models.TargetStatus(status)
	if scanTime.Valid && scanTime.String != "" {
		ct, err := models.ParseClockTime(scanTime.String)
		if err != nil {
			return t, err
		}
		t.ScanTime = &ct
	}
	if last.Valid {
		at := last.Time
		t.LastCrawledAt = &at
	}
	if attempt.Valid {
		at := attempt.Time
		t.LastAttemptAt = &at
	}
	return t, nil
}

// Targets 实现 TargetStore
func (s *SQLStore) Targets(ctx context.Context) ([]models.MonitoredTarget, error) {
	rows, err := s.db.QueryContext(ctx, targetsQuery)
	if err != nil {
		return nil, fmt.Errorf("查询目标失败: %w", err)
	}
	defer rows.Close()

	var out []models.MonitoredTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("查询目标失败: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Target 实现 TargetStore
func (s *SQLStore) Target(ctx context.Context, id string) (models.MonitoredTarget, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx, s.rebind(targetQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("查询目标失败: %w", err)
	}
	return t, nil
}

// SaveTarget 实现 TargetStore
func (s *SQLStore) SaveTarget(ctx context.Context, t models.MonitoredTarget) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = models.TargetIdle
	}
	var scanTime, last, attempt any
	if t.ScanTime != nil {
		scanTime = t.ScanTime.String()
	}
	if t.LastCrawledAt != nil {
		last = t.LastCrawledAt.UTC()
	}
	if t.LastAttemptAt != nil {
		attempt = t.LastAttemptAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(saveTargetQuery),
		t.ID, t.Name, t.FeedURL, t.AutoScan, scanTime, string(t.Status), last, attempt)
	if err != nil {
		return fmt.Errorf("保存目标失败: %w", describe(err))
	}
	return nil
}

// SetStatus 实现 TargetStore
func (s *SQLStore) SetStatus(ctx context.Context, id string, status models.TargetStatus) error {
	return s.updateTarget(ctx, setStatusQuery, id, string(status), id)
}

// MarkCrawled 实现 TargetStore
func (s *SQLStore) MarkCrawled(ctx context.Context, id string, at time.Time) error {
	return s.updateTarget(ctx, markCrawledQuery, id, string(models.TargetCompleted), at.UTC(), id)
}

// MarkAttempted 实现 TargetStore
func (s *SQLStore) MarkAttempted(ctx context.Context, id string, at time.Time) error {
	return s.updateTarget(ctx, markAttemptedQuery, id, at.UTC(), id)
}

func (s *SQLStore) updateTarget(ctx context.Context, query, id string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("更新目标失败: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, models.ErrTargetNotFound)
	}
	return nil
}

// Ping 检查连接
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// describe 补充 PostgreSQL 错误码
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (%s)", err, pqErr.Code.Name())
	}
	return err
}
