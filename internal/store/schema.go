package store

import "fmt"

// Kind determina como cada backend codifica y decodifica una columna.
type Kind int

const (
	KindText Kind = iota
	KindTime
	KindJSON
)

// Column describe una columna permitida de una tabla.
type Column struct {
	Name string
	Kind Kind
}

// Table es la lista blanca de columnas; ningun identificador fuera de ella llega al SQL.
type Table struct {
	Name    string
	Columns []Column
}

func (t Table) kind(column string) (Kind, bool) {
	for _, c := range t.Columns {
		if c.Name == column {
			return c.Kind, true
		}
	}
	return 0, false
}

func (t Table) columnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema indexa tablas por nombre.
type Schema map[string]Table

const (
	TableChatSessions = "chat_sessions"
	TableChatMessages = "chat_messages"
)

// ChatSchema contiene las dos tablas logicas del subsistema de chat.
var ChatSchema = Schema{
	TableChatSessions: {
		Name: TableChatSessions,
		Columns: []Column{
			{Name: "session_id", Kind: KindText},
			{Name: "visitor_name", Kind: KindText},
			{Name: "visitor_email", Kind: KindText},
			{Name: "status", Kind: KindText},
			{Name: "created_at", Kind: KindTime},
			{Name: "updated_at", Kind: KindTime},
		},
	},
	TableChatMessages: {
		Name: TableChatMessages,
		Columns: []Column{
			{Name: "id", Kind: KindText},
			{Name: "session_id", Kind: KindText},
			{Name: "message", Kind: KindText},
			{Name: "sender", Kind: KindText},
			{Name: "created_at", Kind: KindTime},
			{Name: "metadata", Kind: KindJSON},
		},
	},
}

func (s Schema) table(name string) (Table, error) {
	t, ok := s[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func (t Table) checkColumn(column string) (Kind, error) {
	k, ok := t.kind(column)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, column)
	}
	return k, nil
}
