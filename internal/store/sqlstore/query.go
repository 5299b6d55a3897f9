package sqlstore

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/store"
)

// Dialect controls placeholder syntax and NULL ordering. SQLite sorts NULL
// lowest; Postgres sorts it highest unless told otherwise.
type Dialect struct {
	Name        string
	placeholder func(n int) string
	nullsLast   bool
}

var (
	Postgres = Dialect{Name: "postgres", placeholder: func(n int) string { return "$" + strconv.Itoa(n) }, nullsLast: true}
	SQLite   = Dialect{Name: "sqlite", placeholder: func(int) string { return "?" }}
)

// Query is SQL text plus its bound arguments.
type Query struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	t    *Table
	sb   strings.Builder
	args []any
	err  error
}

func newBuilder(d Dialect, t *Table) *builder {
	return &builder{d: d, t: t}
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder) column(field string) (Column, bool) {
	c, ok := b.t.Column(field)
	if !ok {
		b.fail(errs.Invalid("unknown field %q in %s", field, b.t.Name))
	}
	return c, ok
}

func (b *builder) query() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	return Query{SQL: b.sb.String(), Args: b.args}, nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func (b *builder) selectList() string {
	cols := make([]string, len(b.t.Columns))
	for i, c := range b.t.Columns {
		cols[i] = quote(c.Name)
	}
	return strings.Join(cols, ", ")
}

// conjunction writes "a = $1 AND b = $2" for a Match.
func (b *builder) conjunction(m store.Match) {
	for i, term := range m {
		if i > 0 {
			b.write(" AND ")
		}
		col, ok := b.column(term.Field)
		if !ok {
			return
		}
		if col.Kind == JSON {
			b.fail(errs.Invalid("cannot filter on json field %q", col.Name))
			return
		}
		v := store.Normalize(term.Value)
		if v == nil {
			b.write(quote(col.Name), " IS NULL")
			continue
		}
		enc, err := encode(col, v)
		if err != nil {
			b.fail(err)
			return
		}
		b.write(quote(col.Name), " = ", b.bind(enc))
	}
}

func (b *builder) whereClause(f store.Filter) {
	switch f := f.(type) {
	case nil:
	case store.Match:
		if len(f) == 0 {
			return
		}
		b.write(" WHERE ")
		b.conjunction(f)
	case store.AnyOf:
		b.write(" WHERE ")
		if len(f) == 0 {
			b.write("1 = 0")
			return
		}
		for i, m := range f {
			if i > 0 {
				b.write(" OR ")
			}
			if len(m) == 0 {
				b.write("(1 = 1)")
				continue
			}
			b.write("(")
			b.conjunction(m)
			b.write(")")
		}
	default:
		b.fail(errs.Invalid("unsupported filter %T", f))
	}
}

func (b *builder) orderBy(order *store.Order) {
	b.write(" ORDER BY ")
	if order != nil {
		col, ok := b.column(order.Field)
		if !ok {
			return
		}
		desc := order.Dir == store.Descending
		switch col.Kind {
		case Text:
			b.write("COALESCE(", quote(col.Name), ", '')")
		case JSON:
			b.fail(errs.Invalid("cannot sort on json field %q", col.Name))
			return
		default:
			b.write(quote(col.Name))
		}
		if desc {
			b.write(" DESC")
		} else {
			b.write(" ASC")
		}
		// absent values sort before everything, as they do in memory
		if col.Kind != Text && b.d.nullsLast {
			if desc {
				b.write(" NULLS LAST")
			} else {
				b.write(" NULLS FIRST")
			}
		}
		b.write(", ")
	}
	b.write(`"seq" ASC`)
}

// SelectQuery translates a find into SELECT ... WHERE ... ORDER BY ... LIMIT.
// Rows tied on the sort field keep insertion order.
func SelectQuery(d Dialect, t *Table, f store.Filter, order *store.Order, limit int) (Query, error) {
	b := newBuilder(d, t)
	b.write("SELECT ", b.selectList(), " FROM ", quote(t.Name))
	b.whereClause(f)
	b.orderBy(order)
	if limit > 0 {
		b.write(" LIMIT ", b.bind(int64(limit)))
	}
	return b.query()
}

// InsertQuery translates insert_one. Columns are written in name order.
func InsertQuery(d Dialect, t *Table, doc store.Document) (Query, error) {
	doc = store.NormalizeDocument(doc)
	if len(doc) == 0 {
		return Query{}, errs.Invalid("empty document for %s", t.Name)
	}
	fields := sortedKeys(doc)

	b := newBuilder(d, t)
	cols := make([]string, 0, len(fields))
	vals := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.column(f)
		if !ok {
			break
		}
		enc, err := encode(col, doc[f])
		if err != nil {
			b.fail(err)
			break
		}
		cols = append(cols, quote(col.Name))
		vals = append(vals, b.bind(enc))
	}
	b.write("INSERT INTO ", quote(t.Name), " (", strings.Join(cols, ", "), ") VALUES (", strings.Join(vals, ", "), ")")
	return b.query()
}

// UpdateQuery translates update_one. Only the first matching row, in
// insertion order, is touched.
func UpdateQuery(d Dialect, t *Table, m store.Match, set store.Set) (Query, error) {
	if len(set) == 0 {
		return Query{}, errs.Invalid("empty update for %s", t.Name)
	}
	b := newBuilder(d, t)
	b.write("UPDATE ", quote(t.Name), " SET ")
	for i, f := range sortedKeys(set) {
		if i > 0 {
			b.write(", ")
		}
		col, ok := b.column(f)
		if !ok {
			break
		}
		v := store.Normalize(set[f])
		if v == nil {
			b.write(quote(col.Name), " = NULL")
			continue
		}
		enc, err := encode(col, v)
		if err != nil {
			b.fail(err)
			break
		}
		b.write(quote(col.Name), " = ", b.bind(enc))
	}
	b.write(` WHERE "seq" = (SELECT "seq" FROM `, quote(t.Name))
	b.whereClause(m)
	b.write(` ORDER BY "seq" LIMIT 1)`)
	return b.query()
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// encode converts a normalized value to the driver argument for col.
func encode(col Column, v any) (any, error) {
	switch col.Kind {
	case Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		}
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errs.Invalid("field %q: %v", col.Name, err)
		}
		return string(raw), nil
	}
	return nil, errs.Invalid("field %q: unexpected value %T", col.Name, v)
}

// decode converts a driver value for col back to its document form.
// NULL decodes to nil and the field is left out of the document.
func decode(col Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch col.Kind {
	case Text:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano), nil
		}
	case Bool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
	case Int:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		case int:
			return int64(v), nil
		}
	case JSON:
		var data []byte
		switch v := raw.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			return store.Normalize(v), nil
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", col.Name, err)
		}
		return store.Normalize(out), nil
	}
	return nil, fmt.Errorf("decode %s: unexpected %T", col.Name, raw)
}

func decodeRow(t *Table, values []any) (store.Document, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("decode %s: got %d columns, want %d", t.Name, len(values), len(t.Columns))
	}
	doc := make(store.Document, len(values))
	for i, col := range t.Columns {
		v, err := decode(col, values[i])
		if err != nil {
			return nil, err
		}
		if v != nil {
			doc[col.Name] = v
		}
	}
	return doc, nil
}
