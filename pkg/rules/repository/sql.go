package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"mercator-hq/rulesengine/pkg/rules"
)

// sqlRepository holds the queries shared by the SQLite and PostgreSQL
// backends. Queries are written with "?" placeholders and rewritten by
// bind for drivers that use numbered placeholders.
type sqlRepository struct {
	db      *sql.DB
	backend string
	bind    func(query string) string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *sqlRepository) PutRule(ctx context.Context, rule *rules.BusinessRule) error {
	return r.putRule(ctx, r.db, rule)
}

func (r *sqlRepository) putRule(ctx context.Context, db execer, rule *rules.BusinessRule) error {
	body, err := json.Marshal(rule)
	if err != nil {
		return newStorageError(r.backend, "put_rule", err)
	}

	_, err = db.ExecContext(ctx, r.bind(`
		INSERT INTO rules (id, tenant_id, category, status, priority, version, updated_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			category = excluded.category,
			status = excluded.status,
			priority = excluded.priority,
			version = excluded.version,
			updated_at = excluded.updated_at,
			body = excluded.body
	`),
		rule.ID, rule.TenantID, rule.Category, string(rule.Status), rule.Priority,
		rule.Version, rule.UpdatedAt.UnixNano(), string(body),
	)
	if err != nil {
		return newStorageError(r.backend, "put_rule", err)
	}
	return nil
}

func (r *sqlRepository) GetRule(ctx context.Context, id string) (*rules.BusinessRule, error) {
	var body string
	err := r.db.QueryRowContext(ctx, r.bind(`SELECT body FROM rules WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rules.NewRuleNotFound(id)
	}
	if err != nil {
		return nil, newStorageError(r.backend, "get_rule", err)
	}

	var rule rules.BusinessRule
	if err := json.Unmarshal([]byte(body), &rule); err != nil {
		return nil, newStorageError(r.backend, "decode_rule", err)
	}
	return &rule, nil
}

func (r *sqlRepository) DeleteRule(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return newStorageError(r.backend, "delete_rule", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.bind(`DELETE FROM rules WHERE id = ?`), id)
	if err != nil {
		return newStorageError(r.backend, "delete_rule", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return rules.NewRuleNotFound(id)
	}
	if _, err := tx.ExecContext(ctx, r.bind(`DELETE FROM rule_versions WHERE rule_id = ?`), id); err != nil {
		return newStorageError(r.backend, "delete_rule", err)
	}
	if err := tx.Commit(); err != nil {
		return newStorageError(r.backend, "delete_rule", err)
	}
	return nil
}

func (r *sqlRepository) AppendVersion(ctx context.Context, version *rules.RuleVersion) error {
	return r.appendVersion(ctx, r.db, version)
}

// CommitVersion inserts version and replaces the current rule in one
// transaction.
func (r *sqlRepository) CommitVersion(ctx context.Context, rule *rules.BusinessRule, version *rules.RuleVersion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return newStorageError(r.backend, "commit_version", err)
	}
	defer tx.Rollback()

	if err := r.appendVersion(ctx, tx, version); err != nil {
		return err
	}
	if err := r.putRule(ctx, tx, rule); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return newStorageError(r.backend, "commit_version", err)
	}
	return nil
}

func (r *sqlRepository) appendVersion(ctx context.Context, db execer, version *rules.RuleVersion) error {
	body, err := json.Marshal(version)
	if err != nil {
		return newStorageError(r.backend, "append_version", err)
	}

	_, err = db.ExecContext(ctx, r.bind(`
		INSERT INTO rule_versions (rule_id, version, created_at, body)
		VALUES (?, ?, ?, ?)
	`), version.RuleID, version.Version, version.CreatedAt.UnixNano(), string(body))
	if err != nil {
		return newStorageError(r.backend, "append_version", err)
	}
	return nil
}

func (r *sqlRepository) ListVersions(ctx context.Context, ruleID string) ([]*rules.RuleVersion, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(`
		SELECT body FROM rule_versions WHERE rule_id = ? ORDER BY version ASC
	`), ruleID)
	if err != nil {
		return nil, newStorageError(r.backend, "list_versions", err)
	}
	defer rows.Close()

	versions := []*rules.RuleVersion{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, newStorageError(r.backend, "list_versions", err)
		}
		var v rules.RuleVersion
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, newStorageError(r.backend, "decode_version", err)
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(r.backend, "list_versions", err)
	}
	return versions, nil
}

func (r *sqlRepository) ListRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.BusinessRule, error) {
	var conditions []string
	var args []interface{}

	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT body FROM rules"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, newStorageError(r.backend, "list_rules", err)
	}
	defer rows.Close()

	result := []*rules.BusinessRule{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, newStorageError(r.backend, "list_rules", err)
		}
		var rule rules.BusinessRule
		if err := json.Unmarshal([]byte(body), &rule); err != nil {
			return nil, newStorageError(r.backend, "decode_rule", err)
		}
		result = append(result, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError(r.backend, "list_rules", err)
	}
	return result, nil
}

func (r *sqlRepository) PutGroup(ctx context.Context, group *rules.RuleGroup) error {
	body, err := json.Marshal(group)
	if err != nil {
		return newStorageError(r.backend, "put_group", err)
	}

	_, err = r.db.ExecContext(ctx, r.bind(`
		INSERT INTO rule_groups (id, tenant_id, body)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			body = excluded.body
	`), group.ID, group.TenantID, string(body))
	if err != nil {
		return newStorageError(r.backend, "put_group", err)
	}
	return nil
}

func (r *sqlRepository) GetGroup(ctx context.Context, id string) (*rules.RuleGroup, error) {
	var body string
	err := r.db.QueryRowContext(ctx, r.bind(`SELECT body FROM rule_groups WHERE id = ?`), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rules.NewGroupNotFound(id)
	}
	if err != nil {
		return nil, newStorageError(r.backend, "get_group", err)
	}

	var group rules.RuleGroup
	if err := json.Unmarshal([]byte(body), &group); err != nil {
		return nil, newStorageError(r.backend, "decode_group", err)
	}
	return &group, nil
}

func (r *sqlRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return newStorageError(r.backend, "ping", err)
	}
	return nil
}

// DB returns the underlying database handle.
func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func bindQuestion(query string) string {
	return query
}

// bindDollar rewrites "?" placeholders to "$1", "$2", ...
func bindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
