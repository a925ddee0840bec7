package query

import "fmt"

// NotEqualQuery 不等匹配，NULL 按空串比较
type NotEqualQuery struct {
	Field string
	Value interface{}
}

func (q *NotEqualQuery) Type() Operator {
	return OpNotEqual
}

func (q *NotEqualQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("COALESCE(%s,'') <> ?", q.Field), []interface{}{q.Value}, nil
}

// NotNullQuery 参数值为 NULL 时的不等匹配
type NotNullQuery struct {
	Field string
}

func (q *NotNullQuery) Type() Operator {
	return OpNotEqual
}

func (q *NotNullQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s IS NOT NULL", q.Field), nil, nil
}
