package query

import "strings"

// BoolQuery 以 1=1 开头的 AND 连接
type BoolQuery struct {
	Must []Query
}

func (q *BoolQuery) Type() Operator {
	return OpEqual
}

func (q *BoolQuery) ToSQL() (string, []interface{}, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	for _, query := range q.Must {
		sql, queryArgs, err := query.ToSQL()
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, queryArgs...)
	}
	return strings.Join(conditions, " AND "), args, nil
}
