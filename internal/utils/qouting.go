package utils

import (
	"fmt"
	"strings"
)

// QuoteIdentifier quotes an identifier based on the specified SQL dialect.
// Handles basic escaping for the quote character itself within the name.
func QuoteIdentifier(name, dialect string) string {
	dialect = strings.ToLower(dialect)
	switch dialect {
	case "mysql":
		// Escape backticks within the name
		return fmt.Sprintf("`%s`", strings.ReplaceAll(name, "`", "``"))
	case "sqlserver", "mssql":
		// SQL Server brackets; a closing bracket inside the name is doubled
		return fmt.Sprintf("[%s]", strings.ReplaceAll(name, "]", "]]"))
	case "sqlite":
		// SQLite menerima backtick, double quote, atau bracket. Double quote paling aman.
		return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
	default:
		// ANSI fallback
		return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
	}
}

// QuoteIdentifiers quotes every name and joins them with ", ".
func QuoteIdentifiers(names []string, dialect string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n, dialect)
	}
	return strings.Join(quoted, ", ")
}
