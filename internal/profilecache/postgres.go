package profilecache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/skymarshal/core/internal/atmodel"
)

// PostgresConfig mirrors the teacher's utils.DatabaseConfig shape
// (shared/utils/database.go), repointed at skymarshal's own profiles/posts
// schema instead of the teacher's accounts/proxies tables.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresCache is the server-deployment ProfileCache backend, selected
// via PROFILE_CACHE_BACKEND=postgres. Adapted from the teacher's
// shared/utils/database.go connection-pool tuning and WHERE-clause
// builder, repointed at the profiles(did PK, ...)/posts(uri PK, ...)
// schema of spec.md §4.6.
type PostgresCache struct {
	db *sql.DB
}

// OpenPostgres opens a pooled connection and ensures the profiles/posts
// tables and their named indexes exist (spec.md §4.6's schema).
func OpenPostgres(cfg PostgresConfig) (*PostgresCache, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &PostgresCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			did TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			display_name TEXT,
			description TEXT,
			followers_count INTEGER NOT NULL DEFAULT 0,
			following_count INTEGER NOT NULL DEFAULT 0,
			posts_count INTEGER NOT NULL DEFAULT 0,
			avatar TEXT,
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_handle ON profiles(handle)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_followers_desc ON profiles(followers_count DESC)`,
		`CREATE TABLE IF NOT EXISTS posts (
			uri TEXT PRIMARY KEY,
			cid TEXT,
			author_handle TEXT,
			text TEXT,
			created_at TIMESTAMPTZ,
			like_count INTEGER NOT NULL DEFAULT 0,
			reply_count INTEGER NOT NULL DEFAULT 0,
			repost_count INTEGER NOT NULL DEFAULT 0,
			raw_data TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author_handle ON posts(author_handle)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("profilecache migration failed: %w", err)
		}
	}
	return nil
}

// GetProfiles returns only DIDs present and fresh within ttl.
func (c *PostgresCache) GetProfiles(dids []atmodel.DID, ttl time.Duration) (map[atmodel.DID]atmodel.Profile, error) {
	result := make(map[atmodel.DID]atmodel.Profile, len(dids))
	if len(dids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(dids))
	args := make([]interface{}, len(dids))
	for i, did := range dids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(did)
	}
	query := fmt.Sprintf(`SELECT did, handle, display_name, description, followers_count,
		following_count, posts_count, avatar, last_updated FROM profiles WHERE did IN (%s)`,
		strings.Join(placeholders, ","))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	for rows.Next() {
		var p atmodel.Profile
		if err := rows.Scan(&p.DID, &p.Handle, &p.DisplayName, &p.Description,
			&p.FollowersCount, &p.FollowingCount, &p.PostsCount, &p.Avatar, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		if ttl > 0 && p.Stale(now, ttl) {
			continue
		}
		result[p.DID] = p
	}
	return result, rows.Err()
}

// UpsertProfiles performs a single-transaction INSERT ... ON CONFLICT
// upsert per profile, matching spec.md §4.6's "reads never observe a
// partial upsert" requirement.
func (c *PostgresCache) UpsertProfiles(profiles []atmodel.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stmt = `INSERT INTO profiles (did, handle, display_name, description,
		followers_count, following_count, posts_count, avatar, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (did) DO UPDATE SET
			handle = EXCLUDED.handle, display_name = EXCLUDED.display_name,
			description = EXCLUDED.description, followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count, posts_count = EXCLUDED.posts_count,
			avatar = EXCLUDED.avatar, last_updated = EXCLUDED.last_updated`

	for _, p := range profiles {
		if _, err := tx.ExecContext(ctx, stmt, string(p.DID), p.Handle, p.DisplayName, p.Description,
			p.FollowersCount, p.FollowingCount, p.PostsCount, p.Avatar, now); err != nil {
			return fmt.Errorf("failed to upsert profile %s: %w", p.DID, err)
		}
	}
	return tx.Commit()
}

// FindMissing returns handles whose row is absent or older than ttl.
func (c *PostgresCache) FindMissing(handles []string, ttl time.Duration) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(handles))
	args := make([]interface{}, len(handles))
	for i, h := range handles {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = h
	}
	query := fmt.Sprintf(`SELECT handle, last_updated FROM profiles WHERE handle IN (%s)`,
		strings.Join(placeholders, ","))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query handles: %w", err)
	}
	defer rows.Close()

	fresh := make(map[string]bool, len(handles))
	now := time.Now()
	for rows.Next() {
		var handle string
		var lastUpdated time.Time
		if err := rows.Scan(&handle, &lastUpdated); err != nil {
			return nil, err
		}
		if ttl <= 0 || now.Sub(lastUpdated) <= ttl {
			fresh[handle] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missing := make([]string, 0, len(handles))
	for _, h := range handles {
		if !fresh[h] {
			missing = append(missing, h)
		}
	}
	return missing, nil
}

// UpsertPosts upserts cached posts in a single transaction.
func (c *PostgresCache) UpsertPosts(posts []CachedPost) error {
	if len(posts) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stmt = `INSERT INTO posts (uri, cid, author_handle, text, created_at,
		like_count, reply_count, repost_count, raw_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (uri) DO UPDATE SET
			cid = EXCLUDED.cid, author_handle = EXCLUDED.author_handle, text = EXCLUDED.text,
			created_at = EXCLUDED.created_at, like_count = EXCLUDED.like_count,
			reply_count = EXCLUDED.reply_count, repost_count = EXCLUDED.repost_count,
			raw_data = EXCLUDED.raw_data`

	for _, p := range posts {
		raw := p.RawData
		if raw == "" {
			raw = "{}"
		}
		if _, err := tx.ExecContext(ctx, stmt, p.URI, p.CID, p.AuthorHandle, p.Text, p.CreatedAt,
			p.LikeCount, p.ReplyCount, p.RepostCount, raw); err != nil {
			return fmt.Errorf("failed to upsert post %s: %w", p.URI, err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying connection pool.
func (c *PostgresCache) Close() error { return c.db.Close() }
