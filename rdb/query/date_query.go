package query

import "fmt"

// DateQuery 日期精确匹配，值由调用方按数据库格式传入
type DateQuery struct {
	Field string
	Value string
}

func (q *DateQuery) Type() Operator {
	return OpDate
}

func (q *DateQuery) ToSQL() (string, []interface{}, error) {
	return fmt.Sprintf("%s = ?", q.Field), []interface{}{q.Value}, nil
}
