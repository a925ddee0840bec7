package rdb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/stretchr/testify/require"
)

const testDictionary = `{
  "tabelas": [
    {
      "nome": "cliente",
      "resource": "cadastro",
      "orderBy": "nome",
      "childrenTables": [{"tableName": "cliente_contato"}],
      "campos": [
        {"nome": "guidcliente"},
        {"nome": "nome", "tipo": "string"},
        {"nome": "guidcidade", "relacionamento": {"tabelaPai": "cidade", "campoPai": "guidcidade", "displayCaption": "nome"}},
        {"nome": "data_cadastro", "tipo": "date"},
        {"nome": "data_hora", "tipo": "datetime"},
        {"nome": "limite", "tipo": "numeric"},
        {"nome": "status"},
        {"nome": "id_loja"},
        {"nome": "obs as observacao", "ignoreCaseSensitive": true}
      ]
    },
    {
      "nome": "cliente_contato",
      "resource": "cadastro",
      "orderBy": "nome",
      "campos": [
        {"nome": "guidcliente_contato"},
        {"nome": "guidcliente"},
        {"nome": "nome"}
      ]
    },
    {
      "nome": "cidade",
      "resource": "cadastro",
      "campos": [{"nome": "guidcidade"}, {"nome": "nome"}]
    },
    {
      "nome": "pedido",
      "resource": "venda",
      "primaryKey": "id_pedido,gen_pedido",
      "campos": [{"nome": "id_pedido", "tipo": "integer"}, {"nome": "total", "tipo": "numeric"}]
    },
    {
      "nome": "fantasma",
      "resource": "cadastro",
      "campos": [{"nome": "guidfantasma"}, {"nome": "guidcliente"}]
    },
    {
      "nome": "usuariogrupo",
      "resource": "acesso",
      "campos": [{"nome": "guidusuariogrupo"}, {"nome": "nome"}]
    },
    {
      "nome": "usuariogrupo_x_permissao",
      "resource": "acesso",
      "primaryKey": "guidusuariogrupo_permissao",
      "campos": [
        {"nome": "guidusuariogrupo_permissao"},
        {"nome": "guidacesso_tela_permissao"},
        {"nome": "guidusuariogrupo"},
        {"nome": "valor"}
      ]
    }
  ]
}`

var testSchema = []string{
	`CREATE TABLE CLIENTE (GUIDCLIENTE TEXT PRIMARY KEY, NOME TEXT, GUIDCIDADE TEXT, DATA_CADASTRO DATE,
		DATA_HORA DATETIME, LIMITE NUMERIC, STATUS TEXT, ID_LOJA TEXT, OBS TEXT)`,
	`CREATE TABLE CLIENTE_CONTATO (GUIDCLIENTE_CONTATO TEXT PRIMARY KEY, GUIDCLIENTE TEXT, NOME TEXT)`,
	`CREATE TABLE CIDADE (GUIDCIDADE TEXT PRIMARY KEY, NOME TEXT)`,
	`CREATE TABLE PEDIDO (ID_PEDIDO INTEGER PRIMARY KEY, TOTAL NUMERIC)`,
	`CREATE TABLE USUARIOGRUPO (GUIDUSUARIOGRUPO TEXT PRIMARY KEY, NOME TEXT)`,
	`CREATE TABLE USUARIOGRUPO_X_PERMISSAO (GUIDUSUARIOGRUPO_PERMISSAO TEXT PRIMARY KEY,
		GUIDACESSO_TELA_PERMISSAO TEXT, GUIDUSUARIOGRUPO TEXT, VALOR TEXT)`,
	`CREATE TABLE USUARIOS (ID_USUARIO TEXT PRIMARY KEY, ID_LOJA TEXT, ACESSO_REGIONAL TEXT, ACESSO_COMPLETO TEXT)`,
	`CREATE TABLE LOJA (ID_LOJA TEXT PRIMARY KEY, ID_REGIAO TEXT)`,
	`CREATE TABLE USUARIOS_ACESSO_REGIONAL (ID_USUARIO TEXT, ID_REGIONAL TEXT)`,
	`CREATE TABLE USUARIOS_ACESSO_LOJA (ID_USUARIO TEXT, ID_LOJA TEXT)`,
}

// fakeIDs 随机标识按调用顺序编号，命名序列从 1 递增
type fakeIDs struct {
	mu    sync.Mutex
	n     int
	seqs  map[string]int64
	err   error
	calls []string
}

func (f *fakeIDs) NewID(ctx context.Context, sequence string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sequence)
	if f.err != nil {
		return nil, f.err
	}
	if sequence != "" {
		if f.seqs == nil {
			f.seqs = map[string]int64{}
		}
		f.seqs[sequence]++
		return f.seqs[sequence], nil
	}
	f.n++
	return fmt.Sprintf("%032X", f.n), nil
}

type fixture struct {
	db     *DB
	dict   *dic.Dictionary
	ids    *fakeIDs
	engine *Engine
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&DatabaseOptions{Driver: "sqlite3", Database: ":memory:", MaxConns: 1, MaxIdle: 1},
		WithLogger(logger.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	db := newTestDB(t)
	for _, stmt := range testSchema {
		_, err := db.SQL().Exec(stmt)
		require.NoError(t, err)
	}
	dict, err := dic.Parse([]byte(testDictionary))
	require.NoError(t, err)

	ids := &fakeIDs{}
	opts = append([]EngineOption{WithEngineLogger(logger.NewNop())}, opts...)
	return &fixture{db: db, dict: dict, ids: ids, engine: NewEngine(db, dict, ids, opts...)}
}

func (f *fixture) exec(t *testing.T, stmt string, args ...any) {
	t.Helper()
	_, err := f.db.SQL().Exec(stmt, args...)
	require.NoError(t, err)
}

func (f *fixture) rows(t *testing.T, stmt string, args ...any) []map[string]any {
	t.Helper()
	rows, err := QueryRows(context.Background(), f.db, stmt, args...)
	require.NoError(t, err)
	return rows
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	rows := f.rows(t, "SELECT COUNT(*) AS N FROM "+table)
	return rows[0]["N"].(int64)
}

// stubResolver 固定返回给定结果
type stubResolver struct {
	stores StoreList
	err    error
	users  []string
}

func (s *stubResolver) Resolve(ctx context.Context, userID string) (StoreList, error) {
	s.users = append(s.users, userID)
	if s.err != nil {
		return DenyAll(), s.err
	}
	return s.stores, nil
}
