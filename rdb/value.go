package rdb

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/rdb/query"
	"github.com/nbti/nbadmin/serializer"
	"github.com/pkg/errors"
)

// QuoteLiteral 单引号加倍后包上引号，只用于渲染字面量
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Formatter 把请求中的值转换为写入数据库的绑定值
type Formatter struct {
	// Location 带时区的日期时间换算到的本地时区
	Location *time.Location
}

func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = serializer.DefaultLocation
	}
	return &Formatter{Location: loc}
}

// Value 数值字段的 0 保留，其余假值写 NULL；未设置 IgnoreCaseSensitive 的字符串转大写
func (f *Formatter) Value(field *dic.FieldMetadata, v any) (any, error) {
	typ := field.Type

	if t, ok := v.(time.Time); ok {
		switch typ {
		case dic.TypeDate:
			return t.Format(serializer.SQLDateLayout), nil
		default:
			return t.In(f.Location).Format(serializer.SQLDateTimeLayout), nil
		}
	}

	if typ.IsNumeric() {
		return f.number(field, v)
	}
	if isFalsy(v) {
		return nil, nil
	}

	switch typ {
	case dic.TypeDate:
		s, err := serializer.ParseDate(query.Text(v))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "field %s: %v", field.AliasName, err)
		}
		return s, nil
	case dic.TypeDateTime:
		s, err := serializer.ParseDateTime(query.Text(v), f.Location)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "field %s: %v", field.AliasName, err)
		}
		return s, nil
	}

	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return f.text(field, val), nil
	case json.Number:
		return val.String(), nil
	case float64, float32, int, int64, int32:
		return val, nil
	case map[string]any, []any:
		buf, err := json.Marshal(val)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "field %s: %v", field.AliasName, err)
		}
		return f.text(field, string(buf)), nil
	}
	return f.text(field, query.Text(v)), nil
}

func (f *Formatter) text(field *dic.FieldMetadata, s string) string {
	if field.IgnoreCaseSensitive {
		return s
	}
	return strings.ToUpper(s)
}

func (f *Formatter) number(field *dic.FieldMetadata, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		if _, err := val.Float64(); err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "field %s: %q is not a number", field.AliasName, val)
		}
		return val.String(), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		if _, err := json.Number(s).Float64(); err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "field %s: %q is not a number", field.AliasName, val)
		}
		return s, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return v, nil
}

// isFalsy nil、空串、false、0、空集合
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	}
	return false
}
