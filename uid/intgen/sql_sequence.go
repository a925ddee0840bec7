package intgen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Querier *sql.DB 实现
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLSequence 使用数据库序列，语句模板中 %s 为序列名，如 SELECT nextval('%s')
type SQLSequence struct {
	db       Querier
	template string
}

func NewSQLSequence(db Querier, template string) (*SQLSequence, error) {
	if strings.Count(template, "%s") != 1 {
		return nil, errors.Errorf("sequence statement %q must contain exactly one %%s", template)
	}
	return &SQLSequence{db: db, template: template}, nil
}

func (s *SQLSequence) Next(ctx context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(s.template, name)).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "next value of %s", name)
	}
	return n, nil
}
