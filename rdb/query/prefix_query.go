package query

import "fmt"

// PrefixQuery 前缀匹配
type PrefixQuery struct {
	Field string
	Value string
}

func (q *PrefixQuery) Type() Operator {
	return OpLike
}

func (q *PrefixQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s LIKE ?", q.Field), []interface{}{q.Value + "%"}, nil
}
