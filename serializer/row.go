package serializer

import (
	"strconv"
	"strings"
	"time"

	"github.com/nbti/nbadmin/dic"
)

// Value 按字段类型格式化单个值：日期 dd/mm/yyyy，日期时间 dd/mm/yyyy HH:MM:SS，小数和 NUMERIC 列转字符串
func Value(v any, typ dic.FieldType) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(val, typ)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int64:
		if typ == dic.TypeNumeric {
			return strconv.FormatInt(val, 10)
		}
	case int:
		if typ == dic.TypeNumeric {
			return strconv.Itoa(val)
		}
	case int32:
		if typ == dic.TypeNumeric {
			return strconv.FormatInt(int64(val), 10)
		}
	case []byte:
		return Value(string(val), typ)
	case string:
		switch typ {
		case dic.TypeDate:
			if t, err := parseDate(val); err == nil {
				return t.Format(DateLayout)
			}
		case dic.TypeDateTime:
			if s, err := ParseDateTime(val, time.UTC); err == nil {
				if t, err := time.Parse(SQLDateTimeLayout, s); err == nil {
					return t.Format(DateTimeLayout)
				}
			}
		}
		return val
	}
	return v
}

func formatTime(t time.Time, typ dic.FieldType) string {
	switch typ {
	case dic.TypeDate:
		return t.Format(DateLayout)
	case dic.TypeDateTime:
		return t.Format(DateTimeLayout)
	case dic.TypeTime:
		return t.Format(TimeLayout)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// Row 按表字典格式化一行，未声明的列（如 LOOKUP_ 列）按值类型处理
func Row(table *dic.TableMetadata, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for col, v := range row {
		typ := dic.FieldType("")
		if table != nil && !strings.HasPrefix(strings.ToUpper(col), dic.LookupPrefix) {
			if f, err := table.Field(col); err == nil {
				typ = f.Type
			}
		}
		out[col] = Value(v, typ)
	}
	return out
}

func Rows(table *dic.TableMetadata, rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = Row(table, r)
	}
	return out
}
