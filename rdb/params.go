package rdb

import (
	"net/url"
	"sort"
	"strings"

	"github.com/nbti/nbadmin/rdb/query"
)

type Param struct {
	Key   string
	Value any
}

// Params 有序的请求参数，生成的 SQL 与参数顺序一致
type Params []Param

// NewParams 按键排序，保证同样的输入得到同样的语句
func NewParams(m map[string]any) Params {
	params := make(Params, 0, len(m))
	for k, v := range m {
		params = append(params, Param{Key: k, Value: v})
	}
	sort.Slice(params, func(i, j int) bool {
		return params[i].Key < params[j].Key
	})
	return params
}

// ParamsFromQuery 每个键取第一个值
func ParamsFromQuery(values url.Values) Params {
	m := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			m[k] = vs[0]
		}
	}
	return NewParams(m)
}

// Get 键不区分大小写
func (p Params) Get(key string) (any, bool) {
	for _, param := range p {
		if strings.EqualFold(param.Key, key) {
			return param.Value, true
		}
	}
	return nil, false
}

// Filters 去掉分页和排序后剩下的条件参数
func (p Params) Filters() Params {
	var out Params
	for _, param := range p {
		op := query.Classify(param.Key)
		if op.IsPagination() || op == query.OpOrderBy {
			continue
		}
		out = append(out, param)
	}
	return out
}
