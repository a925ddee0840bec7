// Package query 把请求参数的键分类为固定的操作符集合，并生成带占位符的条件子句
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidCondition = errors.New("invalid condition")

// Operator 参数键对应的操作符，集合封闭
type Operator int

const (
	OpEqual Operator = iota
	OpLimit
	OpLast
	OpLike
	OpOrderBy
	OpNotEqual
	OpDate
	OpBetween
	OpAccess
)

type rule struct {
	op    Operator
	token string
	exact bool
}

// 按顺序匹配，先命中者生效
var rules = []rule{
	{OpLimit, "LIMIT", true},
	{OpLast, "LAST", true},
	{OpLike, "LIKE", false},
	{OpOrderBy, "ORDERBY", false},
	{OpNotEqual, "<>", false},
	{OpDate, "DATE", false},
	{OpBetween, "BETWEEN", false},
	{OpAccess, "ACESSOLOJAREGIONAL", false},
}

func (o Operator) String() string {
	if o == OpEqual {
		return "AND"
	}
	for _, r := range rules {
		if r.op == o {
			return r.token
		}
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// IsPagination LIMIT/LAST 只控制分页，不产生 WHERE 子句
func (o Operator) IsPagination() bool {
	return o == OpLimit || o == OpLast
}

// Classify 键不区分大小写，依次匹配 LIMIT、LAST、LIKE、ORDERBY、<>、DATE、BETWEEN、ACESSOLOJAREGIONAL，其余为相等
func Classify(key string) Operator {
	k := strings.ToUpper(strings.TrimSpace(key))
	for _, r := range rules {
		if r.exact && k == r.token {
			return r.op
		}
		if !r.exact && strings.Contains(k, r.token) {
			return r.op
		}
	}
	return OpEqual
}

// Condition 一个已分类的参数
type Condition struct {
	Key   string
	Op    Operator
	Field string
	Value any
}

// Parse 拆出字段名；参数值为空时取键中操作符之后的部分作为值
func Parse(key string, value any) Condition {
	k := strings.ToUpper(strings.TrimSpace(key))
	c := Condition{Key: key, Op: Classify(k), Value: value}

	switch c.Op {
	case OpLimit, OpLast:
	case OpEqual:
		c.Field = k
	default:
		field, rest, _ := strings.Cut(k, c.Op.String())
		c.Field = strings.TrimSpace(field)
		if IsEmpty(value) && strings.TrimSpace(rest) != "" {
			c.Value = strings.TrimSpace(rest)
		}
	}
	return c
}

// Text 参数值的字符串形式
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case []byte:
		return string(val)
	}
	return fmt.Sprint(v)
}

func IsEmpty(v any) bool {
	return strings.TrimSpace(Text(v)) == ""
}

func isNull(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "NULL")
}

func upper(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s)
	}
	return v
}

// Query 条件子句，column 已经过字典解析并带表名限定
type Query interface {
	Type() Operator
	ToSQL() (string, []interface{}, error)
}

// NewClause 为非分页、非排序、非权限的操作符生成子句
func NewClause(op Operator, column string, value any) (Query, error) {
	switch op {
	case OpEqual:
		if isNull(value) {
			return &IsNullQuery{Field: column}, nil
		}
		return &EqualQuery{Field: column, Value: upper(value)}, nil
	case OpLike:
		return &PrefixQuery{Field: column, Value: strings.ToUpper(Text(value))}, nil
	case OpNotEqual:
		if isNull(value) {
			return &NotNullQuery{Field: column}, nil
		}
		return &NotEqualQuery{Field: column, Value: upper(value)}, nil
	case OpDate:
		return &DateQuery{Field: column, Value: Text(value)}, nil
	case OpBetween:
		return NewBetweenQuery(column, Text(value))
	}
	return nil, errors.Wrapf(ErrInvalidCondition, "operator %s has no clause", op)
}
