package migrate

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceKind enumerates the SQL Server type names the mapper recognizes.
type SourceKind int

const (
	KindUnknown SourceKind = iota
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindNVarchar
	KindVarchar
	KindDateTime
	KindDate
	KindTime
	KindBit
	KindMoney
	KindSmallMoney
	KindFloat
	KindDecimal
	KindNumeric
	KindText
	KindUniqueIdentifier
	KindXML
	KindJSON
	KindBinary
	KindVarBinary
	KindHierarchyID
)

var sourceKinds = map[string]SourceKind{
	"tinyint":          KindTinyInt,
	"smallint":         KindSmallInt,
	"int":              KindInt,
	"bigint":           KindBigInt,
	"nvarchar":         KindNVarchar,
	"varchar":          KindVarchar,
	"datetime":         KindDateTime,
	"date":             KindDate,
	"time":             KindTime,
	"bit":              KindBit,
	"money":            KindMoney,
	"smallmoney":       KindSmallMoney,
	"float":            KindFloat,
	"decimal":          KindDecimal,
	"numeric":          KindNumeric,
	"text":             KindText,
	"uniqueidentifier": KindUniqueIdentifier,
	"xml":              KindXML,
	"json":             KindJSON,
	"binary":           KindBinary,
	"varbinary":        KindVarBinary,
	"hierarchyid":      KindHierarchyID,
}

// SourceType is a parsed source type name. Raw keeps the original spelling,
// which is what the fallback mapping reports for KindUnknown.
type SourceType struct {
	Kind SourceKind
	Raw  string
}

func ParseSourceType(name string) SourceType {
	kind, ok := sourceKinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		kind = KindUnknown
	}
	return SourceType{Kind: kind, Raw: name}
}

const (
	defaultStringLength = 255
	// maxVarcharChars is the widest utf8mb4 VARCHAR InnoDB accepts.
	maxVarcharChars = 16383
	unboundedText   = "TEXT"
)

// TypeMapper maps source type descriptors to MySQL/MariaDB column types.
// The zero value targets a destination without a native JSON type.
type TypeMapper struct {
	NativeJSON bool
}

// DefaultTypeMapper targets MySQL 5.7+/MariaDB 10.2+, which have JSON.
var DefaultTypeMapper = TypeMapper{NativeJSON: true}

// MapType maps with DefaultTypeMapper.
func MapType(sourceType string, length *int) string {
	return DefaultTypeMapper.MapType(sourceType, length)
}

// MapType returns the destination type for a source type and optional length.
// It never fails and never returns "".
func (m TypeMapper) MapType(sourceType string, length *int) string {
	n := 0
	if length != nil {
		n = *length
	}

	switch ParseSourceType(sourceType).Kind {
	case KindTinyInt, KindSmallInt, KindInt:
		return "INT"
	case KindBigInt:
		return "BIGINT"
	case KindNVarchar, KindVarchar:
		if n == -1 {
			return unboundedText
		}
		return sizedString(n)
	case KindDateTime:
		return "DATETIME"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindBit:
		return "TINYINT(1)"
	case KindMoney:
		return "DECIMAL(19,4)"
	case KindSmallMoney:
		return "DECIMAL(10,4)"
	case KindFloat:
		return "FLOAT"
	case KindDecimal, KindNumeric:
		if n > 0 {
			return fmt.Sprintf("DECIMAL(%d,2)", n)
		}
		return "DECIMAL(10,2)"
	case KindText, KindXML:
		return unboundedText
	case KindJSON:
		if m.NativeJSON {
			return "JSON"
		}
		return unboundedText
	case KindUniqueIdentifier:
		return "VARCHAR(50)"
	case KindBinary:
		if n > 0 {
			return fmt.Sprintf("BINARY(%d)", n)
		}
		return "BLOB"
	case KindVarBinary:
		if n > 0 {
			return fmt.Sprintf("VARBINARY(%d)", n)
		}
		return "BLOB"
	case KindHierarchyID:
		return "VARCHAR(100)"
	default:
		return sizedString(n)
	}
}

func sizedString(n int) string {
	switch {
	case n > maxVarcharChars:
		return unboundedText
	case n > 0:
		return fmt.Sprintf("VARCHAR(%d)", n)
	default:
		return fmt.Sprintf("VARCHAR(%d)", defaultStringLength)
	}
}

var (
	sizedStringPattern = regexp.MustCompile(`(?i)^VARCHAR\(\d+\)$`)
	currentTimePattern = regexp.MustCompile(`(?i)getdate\(\)|sysdatetime\(\)|current_timestamp`)
	newIDPattern       = regexp.MustCompile(`(?i)newid|newsequentialid`)
	dateTimePattern    = regexp.MustCompile(`(?i)datetime`)
	guidLiteralPattern = regexp.MustCompile(`\{00`)
)

// IsSizedString reports whether targetType is VARCHAR(n).
func IsSizedString(targetType string) bool {
	return sizedStringPattern.MatchString(targetType)
}

// IsStringTarget reports whether targetType is a sized or unbounded string.
func IsStringTarget(targetType string) bool {
	return IsSizedString(targetType) || strings.EqualFold(targetType, unboundedText)
}

const (
	CurrentTimestamp = "CURRENT_TIMESTAMP"
	EmptyString      = "''"
	ZeroDateTime     = "'0000-00-00 00:00:00'"
	ZeroLiteral      = "0"
)

// MapDefault translates a SQL Server default expression. Rules apply in
// order; the last one strips enclosing parentheses, so ((0)) becomes 0 and
// ('abc') becomes 'abc'.
func MapDefault(raw string) string {
	switch {
	case currentTimePattern.MatchString(raw):
		return CurrentTimestamp
	case newIDPattern.MatchString(raw):
		return EmptyString
	case dateTimePattern.MatchString(raw):
		return ZeroDateTime
	case guidLiteralPattern.MatchString(raw):
		return ZeroLiteral
	}
	return stripEnclosingParens(strings.TrimSpace(raw))
}

// stripEnclosingParens removes outer parenthesis pairs only when the first
// "(" closes at the last byte, so "(a)+(b)" is left intact. Parentheses
// inside quoted literals are ignored while matching.
func stripEnclosingParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && closingParen(s) == len(s)-1 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func closingParen(s string) int {
	depth := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
