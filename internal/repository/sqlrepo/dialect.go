// Package sqlrepo implements the service repositories over database/sql for
// the PostgreSQL schema and the legacy MySQL schema.
//
// Queries are written once with PostgreSQL $n placeholders. Each placeholder
// appears exactly once and in ascending order, so the MySQL dialect can
// rebind them to positional ? markers. Date bounds are always passed as
// YYYY-MM-DD parameters; no dialect-specific date arithmetic is used.
package sqlrepo

import "regexp"

// Dialect selects placeholder style and the few syntax differences.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
)

// DialectFor maps a database driver name to its dialect.
func DialectFor(driver string) Dialect {
	if driver == "mysql" {
		return MySQL
	}
	return Postgres
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// Rebind converts $n placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if d == Postgres {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// nullSafeEq is the comparison operator treating NULL = NULL as true.
func (d Dialect) nullSafeEq() string {
	if d == MySQL {
		return "<=>"
	}
	return "IS NOT DISTINCT FROM"
}

const dateLayout = "2006-01-02"
