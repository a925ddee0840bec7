package rdb

import (
	"fmt"

	"github.com/nbti/nbadmin/rdb/query"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCondition = query.ErrInvalidCondition
	ErrInvalidOrderBy   = errors.New("invalid order by")
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// 写操作的阶段，出现在 MutationError 和指标标签中
const (
	OpProbe    = "probe"
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpSequence = "sequence"
)

// MutationError 写操作失败，调用方的事务随之回滚
type MutationError struct {
	Table string
	Op    string
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// AccessResolutionError 门店权限查询失败，按拒绝处理
type AccessResolutionError struct {
	UserID string
	Err    error
}

func (e *AccessResolutionError) Error() string {
	return fmt.Sprintf("resolve store access for user %q: %v", e.UserID, e.Err)
}

func (e *AccessResolutionError) Unwrap() error {
	return e.Err
}
