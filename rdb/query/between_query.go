package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// BetweenQuery 区间匹配，值格式为 "start;end"
type BetweenQuery struct {
	Field string
	Start string
	End   string
}

// NewBetweenQuery ISO 时间中的 T 替换为空格
func NewBetweenQuery(field, value string) (*BetweenQuery, error) {
	start, end, ok := strings.Cut(value, ";")
	if !ok {
		return nil, errors.Wrapf(ErrInvalidCondition, "BETWEEN value %q must be start;end", value)
	}
	return &BetweenQuery{
		Field: field,
		Start: strings.ReplaceAll(strings.TrimSpace(start), "T", " "),
		End:   strings.ReplaceAll(strings.TrimSpace(end), "T", " "),
	}, nil
}

func (q *BetweenQuery) Type() Operator {
	return OpBetween
}

func (q *BetweenQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s BETWEEN ? AND ?", q.Field), []interface{}{q.Start, q.End}, nil
}
