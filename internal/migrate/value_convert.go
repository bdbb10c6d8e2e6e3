package migrate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	mssql "github.com/microsoft/go-mssqldb"
)

const displayTimeLayout = "2006-01-02 15:04:05"

// displayValue renders a driver value in the text form written to the
// destination. Binary columns stay []byte; nil stays nil.
func displayValue(v interface{}, dbType string) interface{} {
	if v == nil {
		return nil
	}
	dbType = strings.ToUpper(dbType)

	switch val := v.(type) {
	case []byte:
		switch dbType {
		case "UNIQUEIDENTIFIER":
			var u mssql.UniqueIdentifier
			if err := u.Scan(val); err == nil {
				return u.String()
			}
			return string(val)
		case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
			return decimalText(string(val))
		case "BINARY", "VARBINARY", "IMAGE", "TIMESTAMP", "BLOB":
			return val
		}
		return string(val)
	case string:
		if isDecimalType(dbType) {
			return decimalText(val)
		}
		return val
	case time.Time:
		if val.Nanosecond() != 0 {
			return val.Format(displayTimeLayout + ".999999")
		}
		return val.Format(displayTimeLayout)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

func isDecimalType(dbType string) bool {
	switch dbType {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

// decimalText returns the plain (non-exponent) form of a decimal string, or
// s unchanged when it does not parse.
func decimalText(s string) string {
	d, _, err := apd.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return d.Text('f')
}

// isBlank reports whether a display value counts as empty for the
// field-drop rule.
func isBlank(v interface{}) bool {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []byte:
		return len(val) == 0
	}
	return false
}
