package repo

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tqt-dev/auth-api/internal/domain"
)

const usersTable = "users"

var dialect = goqu.Dialect("postgres")

var userColumns = []any{
	"id", "sign_in_type", "sign_in_id", "external_id", "username",
	"first_name", "last_name", "display_name", "email", "avatar_url",
	"status", "created_at",
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.SignInType, &u.SignInID, &u.ExternalID, &u.Username,
		&u.FirstName, &u.LastName, &u.DisplayName, &u.Email, &u.AvatarURL,
		&u.Status, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts the user and returns it with the generated id and
// created_at filled in.
func (s *Store) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.users.insert",
		tracer.Tag("email", u.Email),
	)
	defer sp.Finish()

	q, args, err := dialect.Insert(usersTable).
		Rows(goqu.Record{
			"sign_in_type": string(u.SignInType),
			"sign_in_id":   u.SignInID,
			"external_id":  u.ExternalID,
			"username":     u.Username,
			"first_name":   u.FirstName,
			"last_name":    u.LastName,
			"display_name": u.DisplayName,
			"email":        u.Email,
			"avatar_url":   u.AvatarURL,
			"status":       string(u.Status),
		}).
		Returning("id", "created_at").
		Prepared(true).ToSQL()
	if err != nil {
		return nil, persistErr("create user", err)
	}

	created := *u
	if err := s.write.QueryRow(ctx, q, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		sp.SetTag("error", err)
		return nil, persistErr("create user", err)
	}
	return &created, nil
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "pg.users.exists_by_email", goqu.C("email").Eq(email))
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "pg.users.exists_by_username", goqu.C("username").Eq(username))
}

func (s *Store) exists(ctx context.Context, span string, cond goqu.Expression) (bool, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, span)
	defer sp.Finish()

	q, args, err := dialect.From(usersTable).
		Select(goqu.COUNT("*")).
		Where(cond).
		Prepared(true).ToSQL()
	if err != nil {
		return false, persistErr("exists", err)
	}

	var n int64
	if err := s.read.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		sp.SetTag("error", err)
		return false, persistErr("exists", err)
	}
	return n > 0, nil
}

// FindByID returns nil, nil when no row matches.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.users.find_by_id")
	defer sp.Finish()

	q, args, err := dialect.From(usersTable).
		Select(userColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, persistErr("find user", err)
	}

	u, err := scanUser(s.read.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, persistErr("find user", err)
	}
	return u, nil
}

// List returns one page ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, q domain.OffsetQuery) (*domain.OffsetResult[*domain.User], error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "pg.users.list")
	defer sp.Finish()

	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	countSQL, countArgs, err := dialect.From(usersTable).
		Select(goqu.COUNT("*")).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, persistErr("list users", err)
	}
	var total int64
	if err := s.read.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		sp.SetTag("error", err)
		return nil, persistErr("list users", err)
	}

	pageSQL, pageArgs, err := dialect.From(usersTable).
		Select(userColumns...).
		Order(goqu.I("created_at").Desc()).
		Offset(uint(q.Offset)).
		Limit(uint(q.Limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, persistErr("list users", err)
	}

	rows, err := s.read.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		sp.SetTag("error", err)
		return nil, persistErr("list users", err)
	}
	defer rows.Close()

	items := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistErr("list users", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list users", err)
	}

	return &domain.OffsetResult[*domain.User]{
		Items:   items,
		Total:   total,
		HasMore: int64(q.Offset+len(items)) < total,
	}, nil
}
