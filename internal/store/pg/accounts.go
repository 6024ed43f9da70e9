package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"krona.org/internal/account"
)

var _ account.Store = (*Store)(nil)

func (s *Store) List(ctx context.Context) ([]account.Account, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, coalesce(parent_account_id, ''), path,
		       status, color, icon, created_at, updated_at, created_by
		from accounts
		order by created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []account.Account
	index := make(map[string]int)
	for rows.Next() {
		var (
			a       account.Account
			rawPath []byte
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.ParentID, &rawPath,
			&a.Status, &a.Color, &a.Icon, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy); err != nil {
			return nil, err
		}
		if len(rawPath) > 0 {
			if err := json.Unmarshal(rawPath, &a.Path); err != nil {
				return nil, fmt.Errorf("decode path: %w", err)
			}
		}
		index[a.ID] = len(result)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.QueryContext(ctx, `
		select account_id, uid, display_name, role, joined_at
		from account_members
		order by joined_at, uid
	`)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var (
			accountID string
			m         account.Member
			roleName  string
		)
		if err := memberRows.Scan(&accountID, &m.UID, &m.DisplayName, &roleName, &m.JoinedAt); err != nil {
			return nil, err
		}
		role, err := account.ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		m.Role = role
		if i, ok := index[accountID]; ok {
			result[i].Members = append(result[i].Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, a account.Account) (account.Account, error) {
	if s.db == nil {
		return account.Account{}, errors.New("database connection unavailable")
	}
	pathJSON, err := json.Marshal(pathOrEmpty(a.Path))
	if err != nil {
		return account.Account{}, fmt.Errorf("encode path: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return account.Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into accounts (id, name, description, parent_account_id, path,
		                      status, color, icon, created_at, updated_at, created_by)
		values ($1, $2, $3, nullif($4, ''), $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Name, a.Description, a.ParentID, pathJSON,
		a.Status, a.Color, a.Icon, a.CreatedAt, a.UpdatedAt, a.CreatedBy); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return account.Account{}, fmt.Errorf("account %s already exists", a.ID)
		}
		return account.Account{}, err
	}
	for _, m := range a.Members {
		if _, err := tx.ExecContext(ctx, `
			insert into account_members (account_id, uid, display_name, role, joined_at)
			values ($1, $2, $3, $4, $5)
		`, a.ID, m.UID, m.DisplayName, m.Role.String(), m.JoinedAt); err != nil {
			return account.Account{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return account.Account{}, err
	}
	return a, nil
}

func (s *Store) Update(ctx context.Context, id string, chg account.Change) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if chg.Name != nil {
		appendSet("name", *chg.Name)
	}
	if chg.Description != nil {
		appendSet("description", *chg.Description)
	}
	if chg.Color != nil {
		appendSet("color", *chg.Color)
	}
	if chg.Icon != nil {
		appendSet("icon", *chg.Icon)
	}
	if chg.Status != nil {
		appendSet("status", *chg.Status)
	}
	if chg.UpdatedAt != nil {
		appendSet("updated_at", *chg.UpdatedAt)
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("update accounts set %s where id = $%d", strings.Join(sets, ", "), len(args))
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("account %s does not exist", id)
		}
	}
	if chg.Members != nil {
		if _, err := tx.ExecContext(ctx, `delete from account_members where account_id = $1`, id); err != nil {
			return err
		}
		for _, m := range *chg.Members {
			if _, err := tx.ExecContext(ctx, `
				insert into account_members (account_id, uid, display_name, role, joined_at)
				values ($1, $2, $3, $4, $5)
			`, id, m.UID, m.DisplayName, m.Role.String(), m.JoinedAt); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func pathOrEmpty(path []string) []string {
	if path == nil {
		return []string{}
	}
	return path
}
