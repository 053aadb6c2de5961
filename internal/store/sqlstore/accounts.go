package sqlstore

import (
	"context"
	"strings"
	"time"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`), entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt.UTC())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	err := s.db.SelectContext(ctx, &logs, s.db.Rebind(`
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (?,?,?,?,?)
	`), user.Username, user.Password, user.Role, true, user.CreatedAt.UTC())
	if err != nil {
		return s.mapWriteErr(err, "username "+user.Username)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 16)
	err := s.db.SelectContext(ctx, &users, `SELECT username, password, role, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password = ? WHERE username = ?`),
		password, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
