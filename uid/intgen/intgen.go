// Package intgen 提供命名序列，用于声明了序列的表生成整数主键
package intgen

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
)

// Sequence 命名序列，每次调用返回下一个值
type Sequence interface {
	Next(ctx context.Context, name string) (int64, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func validName(name string) error {
	if !namePattern.MatchString(name) {
		return errors.Errorf("invalid sequence name %q", name)
	}
	return nil
}
