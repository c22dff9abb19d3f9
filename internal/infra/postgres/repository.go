package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

// table is the bun-backed app.Repository for one entity type.
type table[T any, P interface {
	*T
	domain.Record
}] struct {
	db *bun.DB
}

func newTable[T any, P interface {
	*T
	domain.Record
}](db *bun.DB) *table[T, P] {
	return &table[T, P]{db: db}
}

func (t *table[T, P]) Create(ctx context.Context, entity *T) error {
	_, err := conn(ctx, t.db).NewInsert().Model(entity).Returning("*").Exec(ctx)
	return translate(err)
}

func (t *table[T, P]) Get(ctx context.Context, id int64) (*T, error) {
	row := new(T)
	P(row).SetPrimaryKey(id)
	if err := conn(ctx, t.db).NewSelect().Model(row).WherePK().Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return row, nil
}

func (t *table[T, P]) Update(ctx context.Context, entity *T) error {
	res, err := conn(ctx, t.db).NewUpdate().Model(entity).WherePK().Exec(ctx)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (t *table[T, P]) Delete(ctx context.Context, id int64) error {
	res, err := conn(ctx, t.db).NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident("id"), id).Exec(ctx)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (t *table[T, P]) First(ctx context.Context, opts ...app.QueryOption) (*T, error) {
	rows, err := t.Find(ctx, append(opts, app.Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return rows[0], nil
}

func (t *table[T, P]) Find(ctx context.Context, opts ...app.QueryOption) ([]*T, error) {
	query := app.BuildQuery(opts...)
	var rows []*T
	q, err := where(conn(ctx, t.db).NewSelect().Model(&rows), query.Conds)
	if err != nil {
		return nil, err
	}
	for _, o := range query.Order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("? "+dir, bun.Ident(o.Column))
	}
	q = q.OrderExpr("? ASC", bun.Ident("id"))
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (t *table[T, P]) Count(ctx context.Context, opts ...app.QueryOption) (int, error) {
	q, err := where(conn(ctx, t.db).NewSelect().Model((*T)(nil)), app.BuildQuery(opts...).Conds)
	if err != nil {
		return 0, err
	}
	n, err := q.Count(ctx)
	return n, translate(err)
}

func (t *table[T, P]) DeleteWhere(ctx context.Context, opts ...app.QueryOption) (int, error) {
	conds := app.BuildQuery(opts...).Conds
	q, err := where(conn(ctx, t.db).NewDelete().Model((*T)(nil)), conds)
	if err != nil {
		return 0, err
	}
	if len(conds) == 0 {
		q = q.Where("TRUE")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type whereQuery[Q any] interface {
	Where(query string, args ...any) Q
}

func where[Q whereQuery[Q]](q Q, conds []app.Cond) (Q, error) {
	for _, c := range conds {
		if !c.Op.Valid() {
			return q, fmt.Errorf("unsupported operator %q on %s", c.Op, c.Column)
		}
		q = q.Where("? "+string(c.Op)+" ?", bun.Ident(c.Column), c.Value)
	}
	return q, nil
}

type userTable struct {
	*table[domain.User, *domain.User]
}

func (u userTable) AddPoints(ctx context.Context, userID int64, delta int) error {
	res, err := conn(ctx, u.db).NewUpdate().
		Model((*domain.User)(nil)).
		Set("points = points + ?", delta).
		Where("? = ?", bun.Ident("id"), userID).
		Exec(ctx)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// UpdateProfile writes the profile columns only; points are untouched.
func (u userTable) UpdateProfile(ctx context.Context, user *domain.User) error {
	res, err := conn(ctx, u.db).NewUpdate().
		Model(user).
		Column("display_name", "username", "password", "bio").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
