package sqlstore

import "github.com/4xmen/peyvand/internal/store"

// Kind is how a column's values are encoded.
type Kind int

const (
	Text Kind = iota
	Bool
	Int
	JSON // stored as JSON text
)

type Column struct {
	Name string
	Kind Kind
}

// Table describes a collection's relational layout. Every table also has a
// hidden "seq" column that records insertion order; it is never returned.
type Table struct {
	Name    string
	Columns []Column
	index   map[string]Column
}

func newTable(name string, cols ...Column) *Table {
	t := &Table{Name: name, Columns: cols, index: make(map[string]Column, len(cols))}
	for _, c := range cols {
		t.index[c.Name] = c
	}
	return t
}

func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

func text(name string) Column { return Column{Name: name, Kind: Text} }

// Catalog lists the tables known to the relational backend. Field names are
// only ever taken from here, never from callers, when composing SQL.
var Catalog = map[string]*Table{
	store.Users: newTable(store.Users,
		text("id"), text("username"), text("hashed_password"), text("created_at"),
	),
	store.Messages: newTable(store.Messages,
		text("id"), text("from_user_id"), text("from_username"), text("to_user_id"),
		text("message"), text("timestamp"),
		Column{"read", Bool}, Column{"deleted", Bool},
		text("edited_at"), text("file_url"), text("file_type"), text("file_name"),
		Column{"reactions", JSON},
		text("reply_to_id"), text("reply_to_text"), text("reply_to_username"),
		text("type"), text("call_status"), Column{"duration", Int},
	),
	store.Friends: newTable(store.Friends,
		text("id"), text("user_id"), text("username"), text("friend_id"),
		text("friend_username"), text("status"), text("created_at"),
	),
	store.PushSubscriptions: newTable(store.PushSubscriptions,
		text("id"), text("user_id"), text("endpoint"), text("p256dh"), text("auth"),
		text("created_at"), text("revoked_at"),
	),
}
