package memory

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

// table is an in-process app.Repository. Unique column groups are enforced
// on every write; a group containing a nil value never clashes, matching
// SQL NULL semantics. Writes made inside Tx.WithinTx are undone if the
// transaction function fails.
type table[T any, P interface {
	*T
	domain.Record
}] struct {
	mu       sync.RWMutex
	rows     map[int64]*T
	nextID   int64
	uniques  [][]string
	onDelete []func(ctx context.Context, id int64)
	now      func() time.Time
}

var _ app.Repository[domain.Quiz] = (*table[domain.Quiz, *domain.Quiz])(nil)

func newTable[T any, P interface {
	*T
	domain.Record
}](now func() time.Time, uniques ...[]string) *table[T, P] {
	return &table[T, P]{rows: make(map[int64]*T), uniques: uniques, now: now}
}

// cascade deletes rows of t whose column references a deleted parent id.
func (t *table[T, P]) cascade(column string) func(ctx context.Context, id int64) {
	return func(ctx context.Context, id int64) {
		_, _ = t.DeleteWhere(ctx, app.Eq(column, id))
	}
}

func (t *table[T, P]) Create(ctx context.Context, entity *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clashLocked(P(entity), 0) {
		return domain.ErrDuplicateRecord
	}
	t.nextID++
	id := t.nextID
	P(entity).SetPrimaryKey(id)
	stampCreatedAt(entity, t.now())

	row := *entity
	t.rows[id] = &row
	journalFrom(ctx).record(func() {
		t.mu.Lock()
		delete(t.rows, id)
		t.mu.Unlock()
	})
	return nil
}

func (t *table[T, P]) Get(_ context.Context, id int64) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	out := *row
	return &out, nil
}

func (t *table[T, P]) Update(ctx context.Context, entity *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := P(entity).PrimaryKey()
	prev, ok := t.rows[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if t.clashLocked(P(entity), id) {
		return domain.ErrDuplicateRecord
	}
	row := *entity
	t.rows[id] = &row
	journalFrom(ctx).record(func() {
		t.mu.Lock()
		t.rows[id] = prev
		t.mu.Unlock()
	})
	return nil
}

func (t *table[T, P]) Delete(ctx context.Context, id int64) error {
	t.mu.Lock()
	row, ok := t.rows[id]
	if ok {
		delete(t.rows, id)
	}
	t.mu.Unlock()
	if !ok {
		return domain.ErrRecordNotFound
	}
	t.deleted(ctx, id, row)
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

func (t *table[T, P]) Find(_ context.Context, opts ...app.QueryOption) ([]*T, error) {
	q := app.BuildQuery(opts...)

	t.mu.RLock()
	matched := make([]*T, 0)
	for _, row := range t.rows {
		if matches(P(row), q.Conds) {
			out := *row
			matched = append(matched, &out)
		}
	}
	t.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := P(matched[i]), P(matched[j])
		for _, o := range q.Order {
			c := compareValues(normalize(a.Column(o.Column)), normalize(b.Column(o.Column)))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.PrimaryKey() < b.PrimaryKey()
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (t *table[T, P]) Count(_ context.Context, opts ...app.QueryOption) (int, error) {
	q := app.BuildQuery(opts...)
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, row := range t.rows {
		if matches(P(row), q.Conds) {
			n++
		}
	}
	return n, nil
}

func (t *table[T, P]) DeleteWhere(ctx context.Context, opts ...app.QueryOption) (int, error) {
	q := app.BuildQuery(opts...)

	t.mu.Lock()
	removed := make(map[int64]*T)
	for id, row := range t.rows {
		if matches(P(row), q.Conds) {
			removed[id] = row
			delete(t.rows, id)
		}
	}
	t.mu.Unlock()

	for id, row := range removed {
		t.deleted(ctx, id, row)
	}
	return len(removed), nil
}

// deleted journals the removal and runs cascades. Called without t.mu held.
func (t *table[T, P]) deleted(ctx context.Context, id int64, row *T) {
	journalFrom(ctx).record(func() {
		t.mu.Lock()
		t.rows[id] = row
		t.mu.Unlock()
	})
	for _, fn := range t.onDelete {
		fn(ctx, id)
	}
}

func (t *table[T, P]) clashLocked(entity P, self int64) bool {
	for _, group := range t.uniques {
		want := make([]any, len(group))
		skip := false
		for i, col := range group {
			want[i] = normalize(entity.Column(col))
			if want[i] == nil {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		for id, row := range t.rows {
			if id == self {
				continue
			}
			same := true
			for i, col := range group {
				if compareValues(normalize(P(row).Column(col)), want[i]) != 0 {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func matches(r domain.Record, conds []app.Cond) bool {
	for _, cond := range conds {
		got := normalize(r.Column(cond.Column))
		want := normalize(cond.Value)
		if got == nil || want == nil {
			return false
		}
		c, ok := compare(got, want)
		if !ok {
			return false
		}
		switch cond.Op {
		case app.OpEq:
			if c != 0 {
				return false
			}
		case app.OpLt:
			if c >= 0 {
				return false
			}
		case app.OpLte:
			if c > 0 {
				return false
			}
		case app.OpGt:
			if c <= 0 {
				return false
			}
		case app.OpGte:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// normalize dereferences pointers and widens named and sized scalar types so
// column values and query arguments compare uniformly.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if t, ok := rv.Interface().(time.Time); ok {
		return t
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

// compare orders two normalized values of the same type.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok || x == y {
			return 0, ok
		}
		if !x {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// compareValues is compare for sorting: nil sorts first, incomparable
// values are equal.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := compare(a, b)
	return c
}

func stampCreatedAt(entity any, now time.Time) {
	rv := reflect.ValueOf(entity).Elem()
	f := rv.FieldByName("CreatedAt")
	if !f.IsValid() || !f.CanSet() {
		return
	}
	if t, ok := f.Interface().(time.Time); ok && t.IsZero() {
		f.Set(reflect.ValueOf(now))
	}
}
