package core

import "strings"

// QuoteIdent quotes an identifier with double quotes (Postgres/SQLite),
// doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdentMySQL quotes an identifier with backticks, doubling embedded
// backticks.
func QuoteIdentMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SanitizeIdentifier maps every non-alphanumeric rune to an underscore, for
// machine-generated names such as temporary table names.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// maxIdentLen matches the 63-byte identifier limit shared by the supported
// servers.
const maxIdentLen = 63

// ValidSavepointName reports whether name is safe to interpolate as a
// savepoint identifier: non-empty, at most 63 characters, first character
// alphabetic or underscore, rest alphanumeric or underscore.
func ValidSavepointName(name string) bool {
	if name == "" || len(name) > maxIdentLen {
		return false
	}
	for i, r := range name {
		alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !digit {
			return false
		}
	}
	return true
}

// CheckSavepointName validates a savepoint name before any SQL is sent.
func CheckSavepointName(name string) error {
	if !ValidSavepointName(name) {
		return Errorf(KindQuerySyntax, "invalid savepoint name %q", name)
	}
	return nil
}
