package rdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nbti/nbadmin/rdb/query"
	"github.com/pkg/errors"
)

// StoreList 用户可访问的门店编号
type StoreList []string

// DenyAll 只含哨兵，不匹配任何门店
func DenyAll() StoreList {
	return StoreList{query.DenySentinel}
}

// Literal 渲染为 'a','b'，单引号加倍
func (s StoreList) Literal() string {
	if len(s) == 0 {
		s = DenyAll()
	}
	quoted := make([]string, len(s))
	for i, v := range s {
		quoted[i] = QuoteLiteral(v)
	}
	return strings.Join(quoted, ",")
}

type AccessOptions struct {
	UserTable        string `cfg:"userTable" def:"USUARIOS"`
	UserColumn       string `cfg:"userColumn" def:"ID_USUARIO"`
	StoreTable       string `cfg:"storeTable" def:"LOJA"`
	StoreColumn      string `cfg:"storeColumn" def:"ID_LOJA"`
	RegionColumn     string `cfg:"regionColumn" def:"ID_REGIAO"`
	RegionalTable    string `cfg:"regionalTable" def:"USUARIOS_ACESSO_REGIONAL"`
	RegionalColumn   string `cfg:"regionalColumn" def:"ID_REGIONAL"`
	StoreAccessTable string `cfg:"storeAccessTable" def:"USUARIOS_ACESSO_LOJA"`
	RegionalFlag     string `cfg:"regionalFlag" def:"ACESSO_REGIONAL"`
	FullFlag         string `cfg:"fullFlag" def:"ACESSO_COMPLETO"`
	FlagValue        string `cfg:"flagValue" def:"V"`
}

// AccessResolver 每次调用都重新查询，不做缓存
type AccessResolver struct {
	db        Executor
	statement string
	flag      string
}

func NewAccessResolver(db Executor, dialect *Dialect, options *AccessOptions) (*AccessResolver, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	for _, ident := range []string{
		options.UserTable, options.UserColumn, options.StoreTable, options.StoreColumn, options.RegionColumn,
		options.RegionalTable, options.RegionalColumn, options.StoreAccessTable, options.RegionalFlag, options.FullFlag,
	} {
		if !identPattern.MatchString(ident) {
			return nil, errors.Errorf("invalid identifier %q in access options", ident)
		}
	}

	o := options
	statement := fmt.Sprintf(`SELECT %[4]s FROM %[3]s WHERE %[4]s IN (`+
		`SELECT %[4]s FROM %[1]s WHERE %[2]s = ? `+
		`UNION SELECT %[4]s FROM %[3]s WHERE %[5]s IN (SELECT %[7]s FROM %[6]s WHERE %[2]s = ?) `+
		`UNION SELECT %[4]s FROM %[8]s WHERE %[2]s = ? `+
		`UNION SELECT %[4]s FROM %[3]s WHERE EXISTS (SELECT 1 FROM %[1]s WHERE %[2]s = ? AND (%[9]s = ? OR %[10]s = ?))`+
		`)`,
		o.UserTable, o.UserColumn, o.StoreTable, o.StoreColumn, o.RegionColumn,
		o.RegionalTable, o.RegionalColumn, o.StoreAccessTable, o.RegionalFlag, o.FullFlag,
	)
	statement, err := dialect.Rebind(statement)
	if err != nil {
		return nil, errors.Wrap(err, "rebind access statement")
	}
	return &AccessResolver{db: db, statement: statement, flag: o.FlagValue}, nil
}

// Resolve 用户为空、结果为空或出错时都返回拒绝列表；出错时同时返回 *AccessResolutionError
func (r *AccessResolver) Resolve(ctx context.Context, userID string) (StoreList, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DenyAll(), nil
	}

	rows, err := QueryRows(ctx, r.db, r.statement, userID, userID, userID, userID, r.flag, r.flag)
	if err != nil {
		return DenyAll(), &AccessResolutionError{UserID: userID, Err: err}
	}

	var stores StoreList
	for _, row := range rows {
		for _, v := range row {
			if s := query.Text(v); s != "" {
				stores = append(stores, s)
			}
		}
	}
	if len(stores) == 0 {
		return DenyAll(), nil
	}
	sort.Strings(stores)
	return stores, nil
}
