package adapter

import (
	"regexp"
	"strings"
)

var (
	tableNamePattern    = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	columnNamePattern   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ValidateTable checks a possibly schema-qualified table name against the
// identifier allow-list.
func ValidateTable(name string) error {
	if !tableNamePattern.MatchString(name) || strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return &InvalidIdentifierError{Kind: "table", Name: name}
	}
	return nil
}

// ValidateDatabase checks a schema name against the identifier allow-list.
func ValidateDatabase(name string) error {
	if !databaseNamePattern.MatchString(name) {
		return &InvalidIdentifierError{Kind: "database", Name: name}
	}
	return nil
}

// ValidateColumn checks a column name against the identifier allow-list.
func ValidateColumn(name string) error {
	if !columnNamePattern.MatchString(name) {
		return &InvalidIdentifierError{Kind: "column", Name: name}
	}
	return nil
}

// QuoteTable validates name and returns it with every part backtick quoted,
// e.g. analytics.users becomes `analytics`.`users`.
func QuoteTable(name string) (string, error) {
	if err := ValidateTable(name); err != nil {
		return "", err
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, "."), nil
}

// Qualify joins a database and table into a materialized reference.
func Qualify(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}

// SplitQualified splits "database.table" into its parts. A bare table
// name returns an empty database.
func SplitQualified(ref string) (database, table string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// QuoteLiteral escapes v for inlining into SQL as a single-quoted string.
// Cell values are inlined rather than bound; only identifiers are validated.
func QuoteLiteral(v string) string {
	return "'" + literalEscaper.Replace(v) + "'"
}

// QuoteIdent backtick-quotes a single identifier such as a column name,
// doubling any embedded backtick.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
