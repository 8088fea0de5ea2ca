package sqlite

import (
	"fmt"
	"strings"
)

type statement struct {
	query string
	args  []any
}

func (s statement) String() string {
	return s.query
}

// where collects AND-ed conditions with their arguments
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) addIf(cond bool, clause string, args ...any) {
	if cond {
		w.add(clause, args...)
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// limit renders the LIMIT/OFFSET clause of a page, maxResults <= 0 means no limit
func limit(firstResult, maxResults int) string {
	switch {
	case maxResults > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", maxResults, max(firstResult, 0))
	case firstResult > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", firstResult)
	}
	return ""
}
