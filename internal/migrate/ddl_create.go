package migrate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

// WideTableColumns is the column count above which every VARCHAR column is
// widened to TEXT to keep the row size under the InnoDB limit.
const WideTableColumns = 100

// TableOptions is appended to every CREATE TABLE.
const TableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_520_ci ROW_FORMAT=COMPRESSED"

const columnIndent = "    "

// primaryKeyPrefix is the indexed length of a primary key widened to TEXT.
// It matches the VARCHAR(50) a uniqueidentifier maps to.
const primaryKeyPrefix = 50

// DDLSynthesizer renders CREATE TABLE statements for the destination.
type DDLSynthesizer struct {
	mapper    TypeMapper
	normalize func(string) string
	logger    *zap.Logger
}

func NewDDLSynthesizer(mapper TypeMapper, logger *zap.Logger) *DDLSynthesizer {
	return &DDLSynthesizer{
		mapper:    mapper,
		normalize: utils.NormalizeIdentifier,
		logger:    logger.Named("ddl"),
	}
}

// Synthesize builds the destination definition of table. It returns
// ErrEmptySchema for a table without columns and ErrInvalidIdentifier when
// the table or a column name normalizes to "".
func (s *DDLSynthesizer) Synthesize(table TableDefinition) (*SynthesizedTable, error) {
	name := s.normalize(table.Name)
	if name == "" {
		return nil, fmt.Errorf("table %q: %w", table.Name, ErrInvalidIdentifier)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %q: %w", table.Name, ErrEmptySchema)
	}

	out := &SynthesizedTable{Name: name, Columns: make([]TargetColumnSpec, 0, len(table.Columns))}
	wide := len(table.Columns) > WideTableColumns

	for _, col := range table.Columns {
		colDef, err := s.columnSpec(col, wide)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", table.Name, err)
		}
		if out.PrimaryKey == "" && ParseSourceType(col.SourceType).Kind == KindUniqueIdentifier {
			out.PrimaryKey = colDef.NormalizedName
			if colDef.DefaultClause != "" {
				s.logger.Debug("Dropping default of inferred primary key",
					zap.String("table", name),
					zap.String("column", colDef.NormalizedName),
					zap.String("default", colDef.DefaultClause))
			}
			colDef.DefaultClause = ""
			// MySQL rejects a nullable primary key column.
			colDef.NullableClause = "NOT NULL"
		}
		out.Columns = append(out.Columns, colDef)
	}

	out.DDL = renderCreateTable(out)
	return out, nil
}

func (s *DDLSynthesizer) columnSpec(col ColumnDescriptor, wide bool) (TargetColumnSpec, error) {
	colDef := TargetColumnSpec{NormalizedName: s.normalize(col.Name)}
	if colDef.NormalizedName == "" {
		return colDef, fmt.Errorf("column %q: %w", col.Name, ErrInvalidIdentifier)
	}

	colDef.TargetType = s.mapper.MapType(col.SourceType, col.Length)
	if wide && IsSizedString(colDef.TargetType) {
		colDef.TargetType = unboundedText
	}

	colDef.NullableClause = "NOT NULL"
	if col.Nullable {
		colDef.NullableClause = "NULL"
	}

	if col.Default != nil && *col.Default != "" {
		def := MapDefault(*col.Default)
		if def == EmptyString && strings.EqualFold(colDef.TargetType, "BIGINT") {
			def = ZeroLiteral
		}
		if def != "" {
			colDef.DefaultClause = "DEFAULT " + def
		}
	}
	return colDef, nil
}

func renderCreateTable(t *SynthesizedTable) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", utils.QuoteIdentifier(t.Name, "mysql"))

	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		line := columnIndent + utils.QuoteIdentifier(c.NormalizedName, "mysql") + " " + c.TargetType + " " + c.NullableClause
		if c.DefaultClause != "" {
			line += " " + c.DefaultClause
		}
		lines = append(lines, line)
	}
	if t.PrimaryKey != "" {
		key := utils.QuoteIdentifier(t.PrimaryKey, "mysql")
		if primaryKeyNeedsPrefix(t) {
			key = fmt.Sprintf("%s(%d)", key, primaryKeyPrefix)
		}
		lines = append(lines, fmt.Sprintf("%sPRIMARY KEY (%s)", columnIndent, key))
	}
	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n) ")
	sb.WriteString(TableOptions)
	sb.WriteString(";\n")
	return sb.String()
}

// primaryKeyNeedsPrefix reports whether the key column is a TEXT or BLOB
// type, which MySQL only indexes with an explicit prefix length.
func primaryKeyNeedsPrefix(t *SynthesizedTable) bool {
	for _, c := range t.Columns {
		if c.NormalizedName != t.PrimaryKey {
			continue
		}
		upper := strings.ToUpper(c.TargetType)
		return strings.HasSuffix(upper, "TEXT") || strings.HasSuffix(upper, "BLOB")
	}
	return false
}
