package query

import "fmt"

// EqualQuery 相等匹配，字符串值已转大写
type EqualQuery struct {
	Field string
	Value interface{}
}

func (q *EqualQuery) Type() Operator {
	return OpEqual
}

func (q *EqualQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s = ?", q.Field), []interface{}{q.Value}, nil
}

// IsNullQuery 参数值为 NULL 时的相等匹配
type IsNullQuery struct {
	Field string
}

func (q *IsNullQuery) Type() Operator {
	return OpEqual
}

func (q *IsNullQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s IS NULL", q.Field), nil, nil
}
