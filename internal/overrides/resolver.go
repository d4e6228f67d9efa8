// Package overrides holds the per-run override queues and variables that
// supersede graph-declared values without editing the graph.
//
// One Resolver is shared by every node of a run. File overrides are drawn
// by both FileNode and empty-SQL QueryNode entries from the same cursor,
// and the database accessor follows the table cursor. A Resolver is not
// safe for concurrent use; runs execute nodes sequentially.
package overrides

import (
	"regexp"
	"sort"
	"strings"
)

// Overrides are the values supplied once at run start.
type Overrides struct {
	Files     []string
	Tables    []string
	Databases []string
	Vars      map[string]string
}

// IsEmpty reports whether no override or variable was supplied.
func (o Overrides) IsEmpty() bool {
	return len(o.Files) == 0 && len(o.Tables) == 0 && len(o.Databases) == 0 && len(o.Vars) == 0
}

// Resolver hands out overrides in node execution order.
type Resolver struct {
	o        Overrides
	fileIdx  int
	tableIdx int
}

// NewResolver creates a resolver with all cursors at zero.
func NewResolver(o Overrides) *Resolver {
	if o.Vars == nil {
		o.Vars = map[string]string{}
	}
	return &Resolver{o: o}
}

// NextFile returns the file override at the file cursor. It does not move
// the cursor; call AdvanceFile only once the override was actually used.
func (r *Resolver) NextFile() (string, bool) {
	return at(r.o.Files, r.fileIdx)
}

// AdvanceFile moves the file cursor forward.
func (r *Resolver) AdvanceFile() {
	r.fileIdx++
}

// FileCursor returns the current file cursor position.
func (r *Resolver) FileCursor() int {
	return r.fileIdx
}

// NextTable returns the table override at the table cursor without
// moving it.
func (r *Resolver) NextTable() (string, bool) {
	return at(r.o.Tables, r.tableIdx)
}

// AdvanceTable moves the table cursor forward.
func (r *Resolver) AdvanceTable() {
	r.tableIdx++
}

// TableCursor returns the current table cursor position.
func (r *Resolver) TableCursor() int {
	return r.tableIdx
}

// Database returns the database override indexed by the table cursor, or
// the first database override once the list is exhausted.
func (r *Resolver) Database() (string, bool) {
	if db, ok := at(r.o.Databases, r.tableIdx); ok {
		return db, true
	}
	return at(r.o.Databases, 0)
}

// Vars returns the variable map.
func (r *Resolver) Vars() map[string]string {
	return r.o.Vars
}

// ExpandVars replaces every {name} macro whose name is a variable.
func (r *Resolver) ExpandVars(sql string) string {
	return Substitute(sql, r.o.Vars)
}

func at(list []string, i int) (string, bool) {
	if i < 0 || i >= len(list) || list[i] == "" {
		return "", false
	}
	return list[i], true
}

// Substitute replaces {key} with values[key] for every key, in sorted key
// order so the result does not depend on map iteration.
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		text = strings.ReplaceAll(text, "{"+k+"}", values[k])
	}
	return text
}

var macroPattern = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// Unresolved returns the distinct {identifier} macros left in text.
func Unresolved(text string) []string {
	matches := macroPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
