package rdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nbti/nbadmin/dic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFormatterValue(t *testing.T) {
	f := NewFormatter(nil)
	str := &dic.FieldMetadata{Name: "NOME", AliasName: "NOME", Type: dic.TypeString}
	raw := &dic.FieldMetadata{Name: "OBS", AliasName: "OBS", Type: dic.TypeString, IgnoreCaseSensitive: true}
	num := &dic.FieldMetadata{Name: "LIMITE", AliasName: "LIMITE", Type: dic.TypeNumeric}
	date := &dic.FieldMetadata{Name: "DATA", AliasName: "DATA", Type: dic.TypeDate}
	dt := &dic.FieldMetadata{Name: "DATA_HORA", AliasName: "DATA_HORA", Type: dic.TypeDateTime}

	tests := []struct {
		name  string
		field *dic.FieldMetadata
		in    any
		want  any
	}{
		{"字符串转大写", str, "acme", "ACME"},
		{"保留大小写", raw, "Acme", "Acme"},
		{"空串写 NULL", str, "", nil},
		{"false 写 NULL", str, false, nil},
		{"非数值字段的 0 写 NULL", str, json.Number("0"), nil},
		{"空数组写 NULL", str, []any{}, nil},
		{"数值 0 保留", num, json.Number("0"), int64(0)},
		{"整数", num, json.Number("42"), int64(42)},
		{"小数保留文本", num, json.Number("12.50"), "12.50"},
		{"数值字段空串写 NULL", num, "", nil},
		{"float 0 保留", num, float64(0), float64(0)},
		{"日月年", date, "31/01/2024", "2024-01-31"},
		{"ISO 日期带时间", date, "2024-01-31T10:00:00.000Z", "2024-01-31"},
		{"UTC 时间换算到本地", dt, "2024-01-31T13:00:00Z", "2024-01-31 10:00:00"},
		{"本地时间原样", dt, "2024-01-31 13:00", "2024-01-31 13:00:00"},
		{"time.Time 日期", date, time.Date(2024, 2, 1, 23, 0, 0, 0, time.UTC), "2024-02-01"},
		{"对象转 JSON 文本", str, map[string]any{"a": "b"}, `{"A":"B"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Value(tt.field, tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("非法日期", func(t *testing.T) {
		_, err := f.Value(date, "31/13/2024")
		assert.True(t, errors.Is(err, ErrInvalidPayload))
		_, err = f.Value(num, "abc")
		assert.True(t, errors.Is(err, ErrInvalidPayload))
	})
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'D''AVILA'", QuoteLiteral("D'AVILA"))
	assert.Equal(t, "'a''b','c'", StoreList{"a'b", "c"}.Literal())
	assert.Equal(t, "'0'", StoreList{}.Literal())
}
