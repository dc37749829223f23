package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/portal-be/internal/models"
	"github.com/hongminglow/portal-be/internal/storage"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"is_admin",
	"is_approved",
	"last_login",
	"created_at",
}

var returningUser = "RETURNING " + strings.Join(userColumns, ", ")

// CreateUser inserts a new user row. Uniqueness is enforced by the table constraints.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	stmt, args, err := s.builder.Insert("users").
		Columns("username", "email", "password_hash", "is_admin", "is_approved").
		Values(user.Username, strings.ToLower(user.Email), user.PasswordHash, user.IsAdmin, user.IsApproved).
		Suffix(returningUser).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build insert user sql: %w", err)
	}

	created, err := scanUser(s.q.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.User{}, mapWriteError(err)
	}
	return created, nil
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	return s.findOne(ctx, s.selectUsers().Where(sq.Eq{"id": id}))
}

// LockByID fetches a user by primary key and holds the row lock for the rest of the transaction.
func (s *Store) LockByID(ctx context.Context, id int64) (models.User, error) {
	return s.findOne(ctx, s.selectUsers().Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
}

// FindByUsername fetches a user by exact username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, s.selectUsers().Where(sq.Eq{"username": username}))
}

// FindByEmail fetches a user by email address, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, s.selectUsers().Where(sq.Eq{"lower(email)": strings.ToLower(email)}))
}

// FindByUsernameOrEmail fetches the first user whose username matches exactly or whose
// email matches ignoring case.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	query := s.selectUsers().
		Where(sq.Or{
			sq.Eq{"username": identifier},
			sq.Eq{"lower(email)": strings.ToLower(identifier)},
		}).
		OrderBy("id").
		Limit(1)
	return s.findOne(ctx, query)
}

// ListUsers returns every user matching the filter ordered by id.
func (s *Store) ListUsers(ctx context.Context, filter storage.Filter) ([]models.User, error) {
	stmt, args, err := applyFilter(s.selectUsers(), filter).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := s.q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CountUsers counts the users matching the filter.
func (s *Store) CountUsers(ctx context.Context, filter storage.Filter) (int64, error) {
	stmt, args, err := applyFilter(s.builder.Select("COUNT(*)").From("users"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count users sql: %w", err)
	}

	var count int64
	if err := s.q.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// UpdateUser persists the mutable fields of user. Username and created_at never change.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	stmt, args, err := s.builder.Update("users").
		Set("email", strings.ToLower(user.Email)).
		Set("password_hash", user.PasswordHash).
		Set("is_admin", user.IsAdmin).
		Set("is_approved", user.IsApproved).
		Set("last_login", user.LastLogin).
		Where(sq.Eq{"id": user.ID}).
		Suffix(returningUser).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build update user sql: %w", err)
	}

	updated, err := scanUser(s.q.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.User{}, mapWriteError(err)
	}
	return updated, nil
}

// DeleteUser removes the user row.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	stmt, args, err := s.builder.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := s.q.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TouchLastLogin stamps a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) (models.User, error) {
	stmt, args, err := s.builder.Update("users").
		Set("last_login", at).
		Where(sq.Eq{"id": id}).
		Suffix(returningUser).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build touch last login sql: %w", err)
	}
	return scanUser(s.q.QueryRow(ctx, stmt, args...))
}

func (s *Store) selectUsers() sq.SelectBuilder {
	return s.builder.Select(userColumns...).From("users")
}

func (s *Store) findOne(ctx context.Context, query sq.SelectBuilder) (models.User, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build select user sql: %w", err)
	}
	return scanUser(s.q.QueryRow(ctx, stmt, args...))
}

func applyFilter(query sq.SelectBuilder, filter storage.Filter) sq.SelectBuilder {
	if filter.Approved != nil {
		query = query.Where(sq.Eq{"is_approved": *filter.Approved})
	}
	if filter.Admin != nil {
		query = query.Where(sq.Eq{"is_admin": *filter.Admin})
	}
	return query
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsApproved,
		&user.LastLogin,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
