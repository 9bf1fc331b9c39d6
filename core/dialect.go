package core

import "strconv"

// Dialect is the flavour of SQL a driver speaks. It answers the three
// questions that differ between the supported servers: parameter
// placeholders, identifier quoting, and LIMIT/OFFSET rendering.
type Dialect int

const (
	// Postgres uses $N placeholders and double-quoted identifiers.
	Postgres Dialect = iota
	// Mysql uses positional ? placeholders and backtick identifiers.
	Mysql
	// Sqlite uses ?N placeholders and double-quoted identifiers.
	Sqlite
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case Mysql:
		return "mysql"
	case Sqlite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder renders the parameter placeholder for 1-based position n.
func (d Dialect) Placeholder(n int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(n)
	case Sqlite:
		return "?" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// QuoteIdent quotes an identifier per the dialect's rules.
func (d Dialect) QuoteIdent(name string) string {
	if d == Mysql {
		return QuoteIdentMySQL(name)
	}
	return QuoteIdent(name)
}

// LimitOffset renders a LIMIT/OFFSET tail with the given placeholder
// positions already rendered by the caller. All three dialects accept the
// SQL-standard form.
func (d Dialect) LimitOffset(limit, offset string) string {
	switch {
	case limit != "" && offset != "":
		return "LIMIT " + limit + " OFFSET " + offset
	case limit != "":
		return "LIMIT " + limit
	case offset != "":
		// OFFSET without LIMIT needs a dialect-specific "no limit" marker
		// on MySQL and SQLite.
		switch d {
		case Mysql:
			return "LIMIT 18446744073709551615 OFFSET " + offset
		case Sqlite:
			return "LIMIT -1 OFFSET " + offset
		default:
			return "OFFSET " + offset
		}
	default:
		return ""
	}
}
