package query

import (
	"fmt"
	"strings"
)

// DenySentinel 空列表时使用，不会匹配任何门店
const DenySentinel = "0"

// InQuery 门店权限列表
type InQuery struct {
	Field  string
	Values []string
}

func (q *InQuery) Type() Operator {
	return OpAccess
}

// ToSQL 空列表渲染为拒绝哨兵，不会退化为无条件
func (q *InQuery) ToSQL() (string, []interface{}, error) {
	values := q.Values
	if len(values) == 0 {
		values = []string{DenySentinel}
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	return fmt.Sprintf("%s IN (%s)", q.Field, placeholders), args, nil
}
