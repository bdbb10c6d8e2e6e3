package migrate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSynthesizer(t *testing.T) *DDLSynthesizer {
	return NewDDLSynthesizer(DefaultTypeMapper, zaptest.NewLogger(t))
}

func TestSynthesizeUsersTable(t *testing.T) {
	table := TableDefinition{
		Name: "Users",
		Columns: []ColumnDescriptor{
			{Name: "Id", SourceType: "uniqueidentifier", Default: strPtr("(newid())")},
			{Name: "Name", SourceType: "nvarchar", Length: intPtr(50), Nullable: true},
			{Name: "CreatedAt", SourceType: "datetime", Default: strPtr("(getdate())")},
		},
	}

	got, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)

	expected := "CREATE TABLE IF NOT EXISTS `Users` (\n" +
		"    `Id` VARCHAR(50) NOT NULL,\n" +
		"    `Name` VARCHAR(50) NULL,\n" +
		"    `CreatedAt` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"    PRIMARY KEY (`Id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_520_ci ROW_FORMAT=COMPRESSED;\n"
	assert.Equal(t, expected, got.DDL)
	assert.Equal(t, "Users", got.Name)
	assert.Equal(t, "Id", got.PrimaryKey)
	assert.Empty(t, got.Columns[0].DefaultClause)
	assert.Equal(t, 1, strings.Count(got.DDL, "PRIMARY KEY"))
}

func TestSynthesizeWithoutPrimaryKey(t *testing.T) {
	table := TableDefinition{
		Name: "Order Lines",
		Columns: []ColumnDescriptor{
			{Name: "Line No", SourceType: "int"},
			{Name: "Amount", SourceType: "money", Nullable: true, Default: strPtr("((0))")},
		},
	}

	got, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)

	expected := "CREATE TABLE IF NOT EXISTS `OrderLines` (\n" +
		"    `LineNo` INT NOT NULL,\n" +
		"    `Amount` DECIMAL(19,4) NULL DEFAULT 0\n" +
		") " + TableOptions + ";\n"
	assert.Equal(t, expected, got.DDL)
	assert.Empty(t, got.PrimaryKey)
	assert.NotContains(t, got.DDL, "PRIMARY KEY")
}

func TestSynthesizeOnlyFirstUniqueIdentifierIsPrimaryKey(t *testing.T) {
	table := TableDefinition{
		Name: "Links",
		Columns: []ColumnDescriptor{
			{Name: "Label", SourceType: "varchar", Length: intPtr(20)},
			{Name: "Link-Id", SourceType: "UNIQUEIDENTIFIER", Nullable: true, Default: strPtr("(newid())")},
			{Name: "OtherId", SourceType: "uniqueidentifier", Default: strPtr("(newid())")},
		},
	}

	got, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)

	assert.Equal(t, "LinkId", got.PrimaryKey)
	assert.Equal(t, 1, strings.Count(got.DDL, "PRIMARY KEY"))
	assert.Contains(t, got.DDL, "PRIMARY KEY (`LinkId`)")
	assert.Contains(t, got.DDL, "    `LinkId` VARCHAR(50) NOT NULL,\n")
	// Only the primary key loses its default.
	assert.Contains(t, got.DDL, "    `OtherId` VARCHAR(50) NOT NULL DEFAULT '',\n")
}

func TestSynthesizeBigintEmptyStringDefaultBecomesZero(t *testing.T) {
	table := TableDefinition{
		Name: "Counters",
		Columns: []ColumnDescriptor{
			{Name: "Seq", SourceType: "bigint", Default: strPtr("(newid())")},
			{Name: "Code", SourceType: "varchar", Length: intPtr(5), Default: strPtr("(newid())")},
		},
	}

	got, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)

	assert.Equal(t, "DEFAULT 0", got.Columns[0].DefaultClause)
	assert.Equal(t, "DEFAULT ''", got.Columns[1].DefaultClause)
}

func TestSynthesizeWideTableUsesText(t *testing.T) {
	build := func(n int) TableDefinition {
		cols := make([]ColumnDescriptor, 0, n)
		for i := 0; i < n; i++ {
			cols = append(cols, ColumnDescriptor{Name: fmt.Sprintf("c%d", i), SourceType: "nvarchar", Length: intPtr(30)})
		}
		cols[0] = ColumnDescriptor{Name: "id", SourceType: "int"}
		return TableDefinition{Name: "wide", Columns: cols}
	}

	wide, err := newTestSynthesizer(t).Synthesize(build(WideTableColumns + 1))
	require.NoError(t, err)
	assert.Equal(t, "INT", wide.Columns[0].TargetType)
	for _, c := range wide.Columns[1:] {
		assert.Equal(t, "TEXT", c.TargetType, c.NormalizedName)
	}
	assert.NotContains(t, wide.DDL, "VARCHAR(")

	narrow, err := newTestSynthesizer(t).Synthesize(build(WideTableColumns))
	require.NoError(t, err)
	for _, c := range narrow.Columns[1:] {
		assert.Equal(t, "VARCHAR(30)", c.TargetType, c.NormalizedName)
	}
}

func TestSynthesizeWideTablePrimaryKeyUsesPrefix(t *testing.T) {
	cols := []ColumnDescriptor{{Name: "Id", SourceType: "uniqueidentifier"}}
	for i := 0; i < WideTableColumns; i++ {
		cols = append(cols, ColumnDescriptor{Name: fmt.Sprintf("n%d", i), SourceType: "int", Nullable: true})
	}

	got, err := newTestSynthesizer(t).Synthesize(TableDefinition{Name: "WideKeyed", Columns: cols})
	require.NoError(t, err)

	assert.Equal(t, "Id", got.PrimaryKey)
	assert.Equal(t, "TEXT", got.Columns[0].TargetType)
	assert.Contains(t, got.DDL, "    `Id` TEXT NOT NULL,\n")
	assert.Contains(t, got.DDL, "    PRIMARY KEY (`Id`(50))\n) ")
	assert.NotContains(t, got.DDL, "PRIMARY KEY (`Id`)")
}

func TestSynthesizeErrors(t *testing.T) {
	s := newTestSynthesizer(t)

	_, err := s.Synthesize(TableDefinition{Name: "empty"})
	assert.ErrorIs(t, err, ErrEmptySchema)

	_, err = s.Synthesize(TableDefinition{Name: "$$$", Columns: []ColumnDescriptor{{Name: "a", SourceType: "int"}}})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = s.Synthesize(TableDefinition{Name: "t", Columns: []ColumnDescriptor{{Name: "#", SourceType: "int"}}})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	table := TableDefinition{
		Name: "Audit",
		Columns: []ColumnDescriptor{
			{Name: "At", SourceType: "datetime", Default: strPtr("(getdate())")},
			{Name: "Payload", SourceType: "xml", Length: intPtr(-1), Nullable: true},
		},
	}
	a, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)
	b, err := newTestSynthesizer(t).Synthesize(table)
	require.NoError(t, err)
	assert.Equal(t, a.DDL, b.DDL)
}

func TestStringColumns(t *testing.T) {
	got, err := newTestSynthesizer(t).Synthesize(TableDefinition{
		Name: "t",
		Columns: []ColumnDescriptor{
			{Name: "n", SourceType: "int"},
			{Name: "s", SourceType: "varchar", Length: intPtr(3)},
			{Name: "x", SourceType: "xml"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"n": false, "s": true, "x": true}, got.StringColumns())
}
