package policy

import (
	"strings"

	"github.com/nvsync/cachesync/types"
)

// StatementTarget extracts the table name and operation from a raw SQL write
// statement. Used when an eviction must be derived from an untyped update or
// delete, where the entity type is not known from a typed API. Returns false
// when the statement is not a recognized write.
func StatementTarget(stmt string) (table string, op types.Operation, ok bool) {
	fields := strings.Fields(stmt)
	if len(fields) < 2 {
		return "", "", false
	}

	switch strings.ToUpper(fields[0]) {
	case "UPDATE":
		return cleanIdentifier(fields[1]), types.OpUpdate, true
	case "INSERT":
		// INSERT INTO <table> ...
		if len(fields) >= 3 && strings.EqualFold(fields[1], "INTO") {
			return cleanIdentifier(fields[2]), types.OpInsert, true
		}
		return "", "", false
	case "DELETE":
		// DELETE FROM <table> ...
		if len(fields) >= 3 && strings.EqualFold(fields[1], "FROM") {
			return cleanIdentifier(fields[2]), types.OpDelete, true
		}
		return "", "", false
	case "TRUNCATE":
		// TRUNCATE [TABLE] <table>
		if strings.EqualFold(fields[1], "TABLE") {
			if len(fields) >= 3 {
				return cleanIdentifier(fields[2]), types.OpDelete, true
			}
			return "", "", false
		}
		return cleanIdentifier(fields[1]), types.OpDelete, true
	default:
		return "", "", false
	}
}

// cleanIdentifier strips quoting and any trailing clause glued to the table
// name (e.g. "users(id,name)" or `"users",`).
func cleanIdentifier(ident string) string {
	if i := strings.IndexByte(ident, '('); i >= 0 {
		ident = ident[:i]
	}
	ident = strings.TrimRight(ident, ",;")
	ident = strings.Trim(ident, "`\"'[]")
	return ident
}
