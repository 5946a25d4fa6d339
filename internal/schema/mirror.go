package schema

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Info is the mirrored shape of one table.
type Info struct {
	Keys       []string `json:"keys"`
	Attributes []string `json:"attributes"`
}

// Catalog enumerates what the database holds for one schema (namespace).
type Catalog interface {
	TableNames(ctx context.Context, schemaName string) ([]string, error)
	PrimaryKey(ctx context.Context, schemaName, table string) ([]string, error)
	Columns(ctx context.Context, schemaName, table string) ([]string, error)
}

// Mirror is the in-memory copy of the database's tables, keys and
// attributes. It is built once and never re-synced.
type Mirror struct {
	order  []string
	tables map[string]Info
}

// NewMirror builds a mirror from already known table descriptions.
func NewMirror(tables ...Table) *Mirror {
	m := &Mirror{tables: make(map[string]Info, len(tables))}
	for _, t := range tables {
		m.add(t.Name, Info{Keys: slices.Clone(t.Keys), Attributes: slices.Clone(t.Columns)})
	}
	return m
}

// Load reads the catalog. A failure is logged and stops the load, leaving
// the mirror empty or partial.
func Load(ctx context.Context, cat Catalog, schemaName string, log logrus.FieldLogger) *Mirror {
	m := &Mirror{tables: make(map[string]Info)}
	log = log.WithField("component", "schema")

	names, err := cat.TableNames(ctx, schemaName)
	if err != nil {
		log.WithError(err).Warnf("can't enumerate tables of %q, mirror left empty", schemaName)
		return m
	}

	for _, name := range names {
		keys, err := cat.PrimaryKey(ctx, schemaName, name)
		if err != nil {
			log.WithError(err).Warnf("can't read primary key of %q, mirror left partial (%d tables)", name, m.Len())
			return m
		}
		attrs, err := cat.Columns(ctx, schemaName, name)
		if err != nil {
			log.WithError(err).Warnf("can't read attributes of %q, mirror left partial (%d tables)", name, m.Len())
			return m
		}
		m.add(name, Info{Keys: keys, Attributes: attrs})
	}

	log.Infof("mirrored %d tables from %q", m.Len(), schemaName)
	return m
}

func (m *Mirror) add(name string, info Info) {
	if _, ok := m.tables[name]; !ok {
		m.order = append(m.order, name)
	}
	m.tables[name] = info
}

// Schema returns a copy of the table name -> Info mapping.
func (m *Mirror) Schema() map[string]Info {
	out := make(map[string]Info, len(m.tables))
	for name, info := range m.tables {
		out[name] = Info{Keys: slices.Clone(info.Keys), Attributes: slices.Clone(info.Attributes)}
	}
	return out
}

// TableNames returns the mirrored tables in catalog order.
func (m *Mirror) TableNames() []string {
	return slices.Clone(m.order)
}

func (m *Mirror) Info(table string) (Info, bool) {
	info, ok := m.tables[table]
	return info, ok
}

func (m *Mirror) Len() int {
	return len(m.order)
}

func (m *Mirror) HasColumn(table, column string) bool {
	info, ok := m.tables[table]
	return ok && slices.Contains(info.Attributes, column)
}

// Check compares the declared layout with the mirror and returns one line per
// declared table or column the database lacks.
func (m *Mirror) Check(l Layout) []string {
	var problems []string
	for _, t := range l.Tables() {
		info, ok := m.tables[t.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("table %q not found", t.Name))
			continue
		}
		for _, c := range t.Columns {
			if !slices.Contains(info.Attributes, c) {
				problems = append(problems, fmt.Sprintf("column %q.%q not found", t.Name, c))
			}
		}
		if len(t.Keys) > 0 && !slices.Equal(t.Keys, info.Keys) {
			problems = append(problems, fmt.Sprintf("table %q has primary key %v, declared %v", t.Name, info.Keys, t.Keys))
		}
	}
	return problems
}
