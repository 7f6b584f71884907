package session

import "strings"

// Row is one varbind of a walked subtree.
type Row struct {
	// Key is the index suffix after the walk root, or the full OID (without
	// leading dot) when the walk was not asked to strip the prefix.
	Key string

	// Value is the native value: int, uint, []byte, string, ...
	Value interface{}
}

// Table is an ordered walk result. The zero value is an empty table.
type Table struct {
	Rows  []Row
	index map[string]int
}

// NewTable builds a Table from rows, keeping agent order. A duplicate key
// keeps its first value.
func NewTable(rows ...Row) Table {
	t := Table{}
	for _, r := range rows {
		t.Append(r.Key, r.Value)
	}
	return t
}

// Append adds a row unless the key is already present.
func (t *Table) Append(key string, value interface{}) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[key]; ok {
		return
	}
	t.index[key] = len(t.Rows)
	t.Rows = append(t.Rows, Row{Key: key, Value: value})
}

// Lookup returns the value stored under key.
func (t Table) Lookup(key string) (interface{}, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.Rows[i].Value, true
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Keys returns the row keys in agent order.
func (t Table) Keys() []string {
	keys := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = r.Key
	}
	return keys
}

// normaliseOID strips a leading dot so OIDs are in canonical form.
func normaliseOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// rowKey derives a walk key for oid under root.
func rowKey(root, oid string, stripPrefix bool) string {
	oid = normaliseOID(oid)
	if !stripPrefix {
		return oid
	}
	return strings.TrimPrefix(oid, normaliseOID(root)+".")
}
