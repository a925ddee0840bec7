package rdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/rdb/query"
	"github.com/pkg/errors"
)

const (
	ActionKey    = "lookup_action"
	ActionInsert = "insert"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

type PermissionOptions struct {
	Table            string `cfg:"table" def:"USUARIOGRUPO_X_PERMISSAO"`
	KeyColumn        string `cfg:"keyColumn" def:"GUIDUSUARIOGRUPO_PERMISSAO"`
	PermissionColumn string `cfg:"permissionColumn" def:"GUIDACESSO_TELA_PERMISSAO"`
	GroupColumn      string `cfg:"groupColumn" def:"GUIDUSUARIOGRUPO"`
	ValueColumn      string `cfg:"valueColumn" def:"VALOR"`
	// SkipKeys 键中包含这些子串（不区分大小写）时不展开
	SkipKeys []string `cfg:"skipKeys" def:"lookup_,guidusuariogrupo,guidacesso_tela_permissao,guidacesso_tela,guidusuariogrupo_permissao,valor"`
}

// Coordinator 在调用方的事务中写入主从报文
type Coordinator struct {
	mutator    *Mutator
	permission *PermissionOptions
}

func NewCoordinator(mutator *Mutator, permission *PermissionOptions) *Coordinator {
	if permission == nil {
		permission = &PermissionOptions{
			Table:            "USUARIOGRUPO_X_PERMISSAO",
			KeyColumn:        "GUIDUSUARIOGRUPO_PERMISSAO",
			PermissionColumn: "GUIDACESSO_TELA_PERMISSAO",
			GroupColumn:      "GUIDUSUARIOGRUPO",
			ValueColumn:      "VALOR",
			SkipKeys: []string{
				"lookup_", "guidusuariogrupo", "guidacesso_tela_permissao",
				"guidacesso_tela", "guidusuariogrupo_permissao", "valor",
			},
		}
	}
	return &Coordinator{mutator: mutator, permission: permission}
}

// ApplyNested 返回 {主表主键: 主键值}
func (c *Coordinator) ApplyNested(ctx context.Context, tx Executor, payload *Payload, filter Params) (map[string]any, error) {
	return c.apply(ctx, tx, payload, filter, false)
}

// ApplyPermissions 权限表的每个对象按键展开为多条权限记录，其余项同 ApplyNested
func (c *Coordinator) ApplyPermissions(ctx context.Context, tx Executor, payload *Payload, filter Params) (map[string]any, error) {
	return c.apply(ctx, tx, payload, filter, true)
}

// apply 整个报文使用同一个字典快照
func (c *Coordinator) apply(ctx context.Context, tx Executor, payload *Payload, filter Params, permissions bool) (map[string]any, error) {
	master := payload.Master()
	if master == nil || len(master.Rows) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "master entry has no rows")
	}
	dict := c.mutator.builder.Dictionary()
	masterTable, err := dict.Get(master.Table)
	if err != nil {
		return nil, err
	}
	id, err := c.mutator.ResolveID(ctx, masterTable, master.Rows[0])
	if err != nil {
		return nil, err
	}
	masterKey := masterTable.PrimaryKeyKey()

	for _, entry := range payload.Entries {
		if permissions && strings.EqualFold(entry.Table, c.permission.Table) {
			table, err := dict.Get(entry.Table)
			if err != nil {
				return nil, err
			}
			if err := c.explode(ctx, tx, table, entry, id); err != nil {
				return nil, err
			}
			continue
		}
		table, err := dict.Get(entry.Table)
		if err != nil {
			return nil, err
		}
		for _, row := range entry.Rows {
			if err := c.applyRow(ctx, tx, dict, table, row, masterKey, id, filter); err != nil {
				return nil, errors.WithMessagef(err, "entry %s", entry.Key)
			}
		}
	}
	return map[string]any{masterKey: id}, nil
}

func (c *Coordinator) applyRow(ctx context.Context, tx Executor, dict *dic.Dictionary, table *dic.TableMetadata, row Record, masterKey string, id any, filter Params) error {
	action := ActionEdit
	if k, v, ok := row.Get(ActionKey); ok {
		if s := strings.TrimSpace(query.Text(v)); s != "" {
			action = strings.ToLower(s)
		}
		delete(row, k)
	}

	switch action {
	case ActionInsert, ActionEdit:
		if k, _, ok := row.Get(masterKey); ok && k != masterKey {
			delete(row, k)
		}
		row[masterKey] = id
		_, err := c.mutator.Upsert(ctx, tx, table, row)
		return err
	case ActionDelete:
		params := filter.Filters()
		if len(params) == 0 {
			pk := table.PrimaryKeyKey()
			var v any = query.DenySentinel
			if _, value, ok := row.Get(pk); ok && !query.IsEmpty(value) {
				v = value
			}
			params = Params{{Key: pk, Value: v}}
		}
		return c.mutator.Delete(ctx, tx, dict, table.Name, params)
	}
	return errors.Wrapf(ErrInvalidPayload, "unknown %s %q", ActionKey, action)
}

func (c *Coordinator) skip(key string) bool {
	k := strings.ToLower(key)
	for _, s := range c.permission.SkipKeys {
		if s != "" && strings.Contains(k, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// explode {permissao: valor} 展开为 {分组+权限, 权限, 分组, 值}
func (c *Coordinator) explode(ctx context.Context, tx Executor, table *dic.TableMetadata, entry *Entry, group any) error {
	p := c.permission
	groupText := query.Text(group)
	for _, row := range entry.Rows {
		if len(row) == 0 {
			continue
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if c.skip(k) {
				continue
			}
			rec := Record{
				p.KeyColumn:        fmt.Sprintf("%s+%s", groupText, k),
				p.PermissionColumn: k,
				p.GroupColumn:      group,
				p.ValueColumn:      row[k],
			}
			if _, err := c.mutator.Upsert(ctx, tx, table, rec); err != nil {
				return errors.WithMessagef(err, "permission %s", k)
			}
		}
	}
	return nil
}
