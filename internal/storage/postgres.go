package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/skillgate/pkg/models"
)

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// --- Token metadata ---

func (p *PostgresBackend) WriteTokenMetadata(ctx context.Context, meta *models.AccessTokenMetadata) error {
	scopeJSON, err := json.Marshal(meta.Scope)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO access_tokens (jti, subject, scope, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		meta.JTI, meta.Subject, scopeJSON, meta.IssuedAt, meta.ExpiresAt,
	)
	return err
}

func (p *PostgresBackend) GetTokenMetadata(ctx context.Context, jti string) (*models.AccessTokenMetadata, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT t.jti, t.subject, t.scope, t.issued_at, t.expires_at, r.revoked_at
		 FROM access_tokens t
		 LEFT JOIN revocations r ON r.jti = t.jti
		 WHERE t.jti = $1`,
		jti,
	)
	return scanTokenMetadata(row)
}

func (p *PostgresBackend) ListTokenMetadata(ctx context.Context) ([]*models.AccessTokenMetadata, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT t.jti, t.subject, t.scope, t.issued_at, t.expires_at, r.revoked_at
		 FROM access_tokens t
		 LEFT JOIN revocations r ON r.jti = t.jti
		 ORDER BY t.issued_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var metas []*models.AccessTokenMetadata
	for rows.Next() {
		m, err := scanTokenMetadata(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func scanTokenMetadata(row pgx.Row) (*models.AccessTokenMetadata, error) {
	var m models.AccessTokenMetadata
	var scopeJSON []byte
	err := row.Scan(&m.JTI, &m.Subject, &scopeJSON, &m.IssuedAt, &m.ExpiresAt, &m.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(scopeJSON, &m.Scope); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Revocations ---

func (p *PostgresBackend) WriteRevocation(ctx context.Context, rec *models.RevocationRecord) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO revocations (jti, revoked_at, reason)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (jti) DO NOTHING`,
		rec.JTI, rec.RevokedAt, rec.Reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresBackend) GetRevocation(ctx context.Context, jti string) (*models.RevocationRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT jti, revoked_at, reason FROM revocations WHERE jti = $1`,
		jti,
	)
	var r models.RevocationRecord
	if err := row.Scan(&r.JTI, &r.RevokedAt, &r.Reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// --- Audit chain ---

func (p *PostgresBackend) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO audit_log (sequence, timestamp, action, payload, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Sequence, entry.Timestamp, entry.Action, payloadJSON, entry.PrevHash, entry.Hash,
	)
	return err
}

func (p *PostgresBackend) LastAuditEntry(ctx context.Context) (*models.AuditEntry, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT sequence, timestamp, action, payload, prev_hash, hash
		 FROM audit_log ORDER BY sequence DESC LIMIT 1`,
	)
	return scanAuditEntry(row)
}

func (p *PostgresBackend) ReadAuditRange(ctx context.Context, fromSeq, toSeq int64) ([]*models.AuditEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT sequence, timestamp, action, payload, prev_hash, hash
		 FROM audit_log WHERE sequence >= $1 AND sequence <= $2 ORDER BY sequence`,
		fromSeq, toSeq,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanAuditEntry(row pgx.Row) (*models.AuditEntry, error) {
	var e models.AuditEntry
	var payloadJSON []byte
	err := row.Scan(&e.Sequence, &e.Timestamp, &e.Action, &payloadJSON, &e.PrevHash, &e.Hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	json.Unmarshal(payloadJSON, &e.Payload) //nolint:errcheck
	return &e, nil
}

func (p *PostgresBackend) QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT sequence, timestamp, action, payload, prev_hash, hash FROM audit_log WHERE 1=1`)
	args := []any{}
	n := 1
	if filter.Action != "" {
		fmt.Fprintf(&query, ` AND action = $%d`, n)
		args = append(args, filter.Action)
		n++
	}
	if filter.Since != nil {
		fmt.Fprintf(&query, ` AND timestamp >= $%d`, n)
		args = append(args, filter.Since)
		n++
	}
	query.WriteString(` ORDER BY sequence DESC`)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, ` LIMIT $%d`, n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&query, ` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Metrics ---

func (p *PostgresBackend) CountActiveTokens(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_tokens t
		 LEFT JOIN revocations r ON r.jti = t.jti
		 WHERE r.jti IS NULL AND t.expires_at > NOW()`,
	).Scan(&count)
	return count, err
}
