// Package acesso 提供权限界面使用的只读模型：用户组在各界面上的权限，以及用户可访问的界面列表
package acesso

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
)

// ScreenPermissions 用户组在一个界面上的权限，键为权限 GUID
type ScreenPermissions struct {
	GUIDAcessoTela any            `json:"GUIDACESSO_TELA"`
	Permissao      map[string]any `json:"PERMISSAO"`
}

// ScreenAccess 用户可访问的界面，权限按名称给出
type ScreenAccess struct {
	GUIDAcessoTela any            `json:"GUIDACESSO_TELA"`
	Nome           any            `json:"NOME"`
	Permissao      map[string]any `json:"PERMISSAO"`
}

type permissionRow struct {
	Tela      *string `gorm:"column:tela"`
	Nome      *string `gorm:"column:nome"`
	Permissao *string `gorm:"column:permissao"`
	Valor     *string `gorm:"column:valor"`
}

type Service struct {
	db     *gorm.DB
	logger logger.Logger
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func dialector(db *sql.DB, driver string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite3":
		return sqlite.Dialector{DriverName: "sqlite3", Conn: db}, nil
	case "mysql":
		return mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), nil
	case "pgx", "postgres":
		return postgres.New(postgres.Config{Conn: db}), nil
	}
	return nil, errors.Errorf("unsupported driver %q", driver)
}

// NewService 复用引擎的连接池，不单独建连接
func NewService(db *sql.DB, driver string, opts ...Option) (*Service, error) {
	s := &Service{logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}

	d, err := dialector(db, driver)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(d, &gorm.Config{
		Logger:                 newGormLogger(s.logger.WithGroup("acesso")),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}
	s.db = gdb
	return s, nil
}

// GroupPermissions 每个界面一项，界面按 GUID 排序
func (s *Service) GroupPermissions(ctx context.Context, guidGrupo string) ([]ScreenPermissions, error) {
	var rows []permissionRow
	err := s.db.WithContext(ctx).
		Table("USUARIOGRUPO_X_PERMISSAO AS PU").
		Select("T.GUIDACESSO_TELA AS tela, PU.GUIDACESSO_TELA_PERMISSAO AS permissao, PU.VALOR AS valor").
		Joins("LEFT JOIN ACESSO_TELA_PERMISSAO AS P ON (P.GUIDACESSO_TELA_PERMISSAO = PU.GUIDACESSO_TELA_PERMISSAO)").
		Joins("LEFT JOIN ACESSO_TELA AS T ON (T.GUIDACESSO_TELA = P.GUIDACESSO_TELA)").
		Where("PU.GUIDUSUARIOGRUPO = ?", guidGrupo).
		Order("T.GUIDACESSO_TELA, PU.GUIDACESSO_TELA_PERMISSAO").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "group permissions of %s", guidGrupo)
	}

	out := []ScreenPermissions{}
	index := map[string]int{}
	for _, r := range rows {
		key := text(r.Tela)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, ScreenPermissions{GUIDAcessoTela: value(r.Tela), Permissao: map[string]any{}})
		}
		out[i].Permissao[text(r.Permissao)] = value(r.Valor)
	}
	return out, nil
}

// UserAccessList 用户所在各组的权限合并到界面上，同名权限后出现的组覆盖先出现的
func (s *Service) UserAccessList(ctx context.Context, userID string) ([]ScreenAccess, error) {
	var rows []permissionRow
	err := s.db.WithContext(ctx).
		Table("USUARIO_X_GRUPO AS UG").
		Select("T.GUIDACESSO_TELA AS tela, T.NOME AS nome, P.NOME AS permissao, UP.VALOR AS valor").
		Joins("JOIN USUARIOS AS U ON (U.ID_USUARIO = UG.ID_USUARIO)").
		Joins("JOIN USUARIOGRUPO_X_PERMISSAO AS UP ON (UP.GUIDUSUARIOGRUPO = UG.GUIDUSUARIOGRUPO)").
		Joins("JOIN ACESSO_TELA_PERMISSAO AS P ON (P.GUIDACESSO_TELA_PERMISSAO = UP.GUIDACESSO_TELA_PERMISSAO)").
		Joins("JOIN ACESSO_TELA AS T ON (T.GUIDACESSO_TELA = P.GUIDACESSO_TELA)").
		Where("U.ID_USUARIO = ?", userID).
		Order("T.GUIDACESSO_TELA, UG.GUIDUSUARIOGRUPO, P.NOME").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "access list of user %s", userID)
	}

	out := []ScreenAccess{}
	index := map[string]int{}
	for _, r := range rows {
		key := text(r.Tela)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, ScreenAccess{GUIDAcessoTela: value(r.Tela), Nome: value(r.Nome), Permissao: map[string]any{}})
		}
		out[i].Permissao[text(r.Permissao)] = value(r.Valor)
	}
	return out, nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func value(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
