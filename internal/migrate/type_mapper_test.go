package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestMapType(t *testing.T) {
	testCases := []struct {
		name       string
		sourceType string
		length     *int
		expected   string
	}{
		{"tinyint", "tinyint", nil, "INT"},
		{"smallint", "smallint", intPtr(5), "INT"},
		{"int uppercase", "INT", nil, "INT"},
		{"bigint", "bigint", nil, "BIGINT"},
		{"varchar max", "varchar", intPtr(-1), "TEXT"},
		{"nvarchar max", "NVARCHAR", intPtr(-1), "TEXT"},
		{"varchar zero length", "varchar", intPtr(0), "VARCHAR(255)"},
		{"varchar no length", "varchar", nil, "VARCHAR(255)"},
		{"varchar sized", "varchar", intPtr(10), "VARCHAR(10)"},
		{"nvarchar sized", "nvarchar", intPtr(4000), "VARCHAR(4000)"},
		{"datetime", "datetime", nil, "DATETIME"},
		{"date", "date", nil, "DATE"},
		{"time", "time", nil, "TIME"},
		{"bit", "bit", nil, "TINYINT(1)"},
		{"money", "money", nil, "DECIMAL(19,4)"},
		{"smallmoney", "smallmoney", nil, "DECIMAL(10,4)"},
		{"float", "float", nil, "FLOAT"},
		{"decimal zero", "decimal", intPtr(0), "DECIMAL(10,2)"},
		{"decimal sized", "decimal", intPtr(8), "DECIMAL(8,2)"},
		{"numeric no length", "numeric", nil, "DECIMAL(10,2)"},
		{"numeric sized", "numeric", intPtr(18), "DECIMAL(18,2)"},
		{"text", "text", intPtr(2147483647), "TEXT"},
		{"uniqueidentifier", "uniqueidentifier", nil, "VARCHAR(50)"},
		{"xml", "xml", intPtr(-1), "TEXT"},
		{"json", "json", nil, "JSON"},
		{"binary sized", "binary", intPtr(16), "BINARY(16)"},
		{"binary no length", "binary", nil, "BLOB"},
		{"varbinary sized", "varbinary", intPtr(64), "VARBINARY(64)"},
		{"varbinary max", "varbinary", intPtr(-1), "BLOB"},
		{"hierarchyid", "hierarchyid", nil, "VARCHAR(100)"},
		{"unknown sized", "nchar", intPtr(10), "VARCHAR(10)"},
		{"unknown no length", "datetimeoffset", nil, "VARCHAR(255)"},
		{"unknown too wide", "ntext", intPtr(1073741823), "TEXT"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MapType(tc.sourceType, tc.length))
		})
	}
}

func TestMapTypeJSONWithoutNativeSupport(t *testing.T) {
	assert.Equal(t, "TEXT", TypeMapper{NativeJSON: false}.MapType("json", nil))
	assert.Equal(t, "JSON", TypeMapper{NativeJSON: true}.MapType("json", nil))
}

func TestMapTypeIsTotal(t *testing.T) {
	names := []string{"", "   ", "geography", "sql_variant", "rowversion"}
	for name := range sourceKinds {
		names = append(names, name)
	}
	lengths := []*int{nil, intPtr(-1), intPtr(0), intPtr(1), intPtr(255), intPtr(8000), intPtr(1 << 30)}

	for _, n := range names {
		for _, l := range lengths {
			assert.NotEmpty(t, MapType(n, l), "type %q", n)
		}
	}
}

func TestParseSourceType(t *testing.T) {
	assert.Equal(t, KindUniqueIdentifier, ParseSourceType("UniqueIdentifier").Kind)
	unknown := ParseSourceType("Geography")
	assert.Equal(t, KindUnknown, unknown.Kind)
	assert.Equal(t, "Geography", unknown.Raw)
}

func TestMapDefault(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{"getdate", "(getdate())", "CURRENT_TIMESTAMP"},
		{"getdate uppercase", "(GETDATE())", "CURRENT_TIMESTAMP"},
		{"sysdatetime", "(sysdatetime())", "CURRENT_TIMESTAMP"},
		{"newid", "(newid())", "''"},
		{"newid mixed case", "(NewId())", "''"},
		{"newsequentialid", "(newsequentialid())", "''"},
		{"datetime conversion", "(CONVERT([datetime],'1900-01-01',(0)))", "'0000-00-00 00:00:00'"},
		{"guid literal", "('{00000000-0000-0000-0000-000000000000}')", "0"},
		{"numeric zero", "((0))", "0"},
		{"string literal", "('abc')", "'abc'"},
		{"parens inside literal kept", "('a(b)')", "'a(b)'"},
		{"expression not unwrapped", "((1)+(2))", "(1)+(2)"},
		{"no parens", "42", "42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MapDefault(tc.raw))
		})
	}
}

func TestMapDefaultIdempotentOnTranslatedLiterals(t *testing.T) {
	for _, lit := range []string{CurrentTimestamp, EmptyString, ZeroDateTime, ZeroLiteral, "'abc'", "42"} {
		assert.Equal(t, lit, MapDefault(lit), "literal %s", lit)
		assert.Equal(t, MapDefault(lit), MapDefault(MapDefault(lit)))
	}
}

func TestIsStringTarget(t *testing.T) {
	for _, s := range []string{"VARCHAR(50)", "varchar(255)", "TEXT"} {
		assert.True(t, IsStringTarget(s), s)
	}
	for _, s := range []string{"INT", "BIGINT", "DECIMAL(10,2)", "DATETIME", "TINYINT(1)", "JSON", "BLOB", "BINARY(4)"} {
		assert.False(t, IsStringTarget(s), s)
	}
	assert.True(t, IsSizedString("VARCHAR(10)"))
	assert.False(t, IsSizedString("TEXT"))
}
