package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/nbti/nbadmin/acesso"
	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/nbti/nbadmin/rdb"
	"github.com/nbti/nbadmin/uid"
)

const testDictionary = `{
  "tabelas": [
    {
      "nome": "cliente",
      "resource": "cadastro",
      "orderBy": "nome",
      "childrenTables": ["cliente_contato"],
      "campos": [
        {"nome": "guidcliente"},
        {"nome": "nome"},
        {"nome": "guidcidade", "relacionamento": {"tabelaPai": "cidade", "campoPai": "guidcidade", "displayCaption": "nome"}},
        {"nome": "data_cadastro", "tipo": "date"},
        {"nome": "limite", "tipo": "numeric"}
      ]
    },
    {
      "nome": "cliente_contato",
      "resource": "cadastro",
      "campos": [{"nome": "guidcliente_contato"}, {"nome": "guidcliente"}, {"nome": "nome"}]
    },
    {
      "nome": "cidade",
      "resource": "cadastro",
      "orderBy": "nome",
      "campos": [{"nome": "guidcidade"}, {"nome": "nome"}]
    },
    {
      "nome": "fantasma",
      "resource": "cadastro",
      "campos": [{"nome": "guidfantasma"}, {"nome": "nome"}]
    },
    {
      "nome": "acesso_tela",
      "resource": "acesso",
      "campos": [{"nome": "guidacesso_tela"}, {"nome": "nome"}]
    },
    {
      "nome": "acesso_tela_permissao",
      "resource": "acesso",
      "campos": [{"nome": "guidacesso_tela_permissao"}, {"nome": "guidacesso_tela"}, {"nome": "nome"}]
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

const testSchema = `
CREATE TABLE CLIENTE (GUIDCLIENTE TEXT PRIMARY KEY, NOME TEXT, GUIDCIDADE TEXT, DATA_CADASTRO DATE, LIMITE NUMERIC);
CREATE TABLE CLIENTE_CONTATO (GUIDCLIENTE_CONTATO TEXT PRIMARY KEY, GUIDCLIENTE TEXT, NOME TEXT);
CREATE TABLE CIDADE (GUIDCIDADE TEXT PRIMARY KEY, NOME TEXT);
CREATE TABLE ACESSO_TELA (GUIDACESSO_TELA TEXT PRIMARY KEY, NOME TEXT);
CREATE TABLE ACESSO_TELA_PERMISSAO (GUIDACESSO_TELA_PERMISSAO TEXT PRIMARY KEY, GUIDACESSO_TELA TEXT, NOME TEXT);
CREATE TABLE USUARIOGRUPO (GUIDUSUARIOGRUPO TEXT PRIMARY KEY, NOME TEXT);
CREATE TABLE USUARIOGRUPO_X_PERMISSAO (GUIDUSUARIOGRUPO_PERMISSAO TEXT PRIMARY KEY, GUIDACESSO_TELA_PERMISSAO TEXT, GUIDUSUARIOGRUPO TEXT, VALOR TEXT);
CREATE TABLE USUARIOS (ID_USUARIO TEXT PRIMARY KEY);
CREATE TABLE USUARIO_X_GRUPO (ID_USUARIO TEXT, GUIDUSUARIOGRUPO TEXT);

INSERT INTO CIDADE VALUES ('SP', 'SAO PAULO'), ('RJ', 'RIO');
INSERT INTO ACESSO_TELA VALUES ('T1', 'CLIENTES');
INSERT INTO ACESSO_TELA_PERMISSAO VALUES ('P1', 'T1', 'INSERIR'), ('P2', 'T1', 'EXCLUIR');
INSERT INTO USUARIOS VALUES ('U1');
INSERT INTO USUARIO_X_GRUPO VALUES ('U1', 'G1');
INSERT INTO USUARIOGRUPO_X_PERMISSAO VALUES ('G1+P1', 'P1', 'G1', 'S');
`

type testServer struct {
	db     *rdb.DB
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := rdb.Open(&rdb.DatabaseOptions{Driver: "sqlite3", Database: ":memory:", MaxConns: 1, MaxIdle: 1},
		rdb.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.SQL().Exec(testSchema)
	require.NoError(t, err)

	dict, err := dic.Parse([]byte(testDictionary))
	require.NoError(t, err)
	ids, err := uid.NewGeneratorWithOptions(nil, nil, "")
	require.NoError(t, err)
	engine := rdb.NewEngine(db, dict, ids, rdb.WithEngineLogger(logger.NewNop()))

	svc, err := acesso.NewService(db.SQL(), "sqlite3", acesso.WithLogger(logger.NewNop()))
	require.NoError(t, err)

	s, err := NewServer(&Options{UserHeader: "GUID_USUARIO", AllowOrigin: "*", MetricsName: "test"}, engine,
		WithLogger(logger.NewNop()),
		WithRegistry(prometheus.NewRegistry()),
		WithAcesso(svc),
	)
	require.NoError(t, err)
	return &testServer{db: db, server: s}
}

func (ts *testServer) do(method, path, body string) (int, []byte) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("GUID_USUARIO", "U1")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func decode[T any](data []byte) T {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		panic(err)
	}
	return v
}

func TestTableRoutes(t *testing.T) {
	Convey("测试单表增删查", t, func() {
		ts := newTestServer(t)

		code, body := ts.do(http.MethodPost, "/api/cadastro/cliente", `{"NOME": "acme", "GUIDCIDADE": "SP", "DATA_CADASTRO": "31/01/2024", "LIMITE": 10.5}`)
		So(code, ShouldEqual, http.StatusOK)
		saved := decode[map[string][]string](body)
		So(saved["GUIDCLIENTE"], ShouldHaveLength, 1)
		id := saved["GUIDCLIENTE"][0]
		So(id, ShouldHaveLength, 32)

		code, body = ts.do(http.MethodGet, "/api/CADASTRO/CLIENTE?NOMELIKE=ac", "")
		So(code, ShouldEqual, http.StatusOK)
		rows := decode[[]map[string]any](body)
		So(rows, ShouldHaveLength, 1)
		So(rows[0]["GUIDCLIENTE"], ShouldEqual, id)
		So(rows[0]["NOME"], ShouldEqual, "ACME")
		So(rows[0]["LOOKUP_GUIDCIDADE"], ShouldEqual, "SAO PAULO")
		So(rows[0]["DATA_CADASTRO"], ShouldEqual, "31/01/2024")
		So(rows[0]["LIMITE"], ShouldEqual, "10.5")

		Convey("数组写入返回全部主键", func() {
			code, body := ts.do(http.MethodPut, "/api/cadastro/cidade", `[{"GUIDCIDADE": "BH", "NOME": "bh"}, {"NOME": "recife"}]`)
			So(code, ShouldEqual, http.StatusOK)
			saved := decode[map[string][]string](body)
			So(saved["GUIDCIDADE"], ShouldHaveLength, 2)
			So(saved["GUIDCIDADE"][0], ShouldEqual, "BH")
		})

		Convey("按主键级联删除", func() {
			_, err := ts.db.SQL().Exec("INSERT INTO CLIENTE_CONTATO VALUES ('K1', ?, 'JOAO')", id)
			So(err, ShouldBeNil)

			code, _ := ts.do(http.MethodDelete, "/api/cadastro/cliente/"+id, "")
			So(code, ShouldEqual, http.StatusOK)

			_, body := ts.do(http.MethodGet, "/api/cadastro/cliente", "")
			So(decode[[]map[string]any](body), ShouldBeEmpty)
			_, body = ts.do(http.MethodGet, "/api/cadastro/cliente_contato", "")
			So(decode[[]map[string]any](body), ShouldBeEmpty)
		})

		Convey("错误映射", func() {
			code, body := ts.do(http.MethodGet, "/api/venda/cliente", "")
			So(code, ShouldEqual, http.StatusNotFound)
			So(decode[ErrorResponse](body).Code, ShouldEqual, http.StatusNotFound)

			code, _ = ts.do(http.MethodGet, "/api/cadastro/nada", "")
			So(code, ShouldEqual, http.StatusNotFound)

			code, body = ts.do(http.MethodGet, "/api/cadastro/cliente?NADA=1", "")
			So(code, ShouldEqual, http.StatusBadRequest)
			So(decode[ErrorResponse](body).Error, ShouldContainSubstring, "NADA")

			code, _ = ts.do(http.MethodGet, "/api/cadastro/cliente?ORDERBY=NOME%20DROP", "")
			So(code, ShouldEqual, http.StatusBadRequest)

			code, _ = ts.do(http.MethodPost, "/api/cadastro/cliente", `"x"`)
			So(code, ShouldEqual, http.StatusBadRequest)

			code, _ = ts.do(http.MethodPost, "/api/cadastro/fantasma", `{"NOME": "x"}`)
			So(code, ShouldEqual, http.StatusInternalServerError)

			code, _ = ts.do(http.MethodPatch, "/api/cadastro/cliente", `{}`)
			So(code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestTableWithChildren(t *testing.T) {
	Convey("测试多表查询和主从写入", t, func() {
		ts := newTestServer(t)

		code, body := ts.do(http.MethodPost, "/api/system/TableWithChildren", `{
			"cadastro.cliente": [{"NOME": "acme"}],
			"cadastro.cliente_contato": [{"GUIDCLIENTE_CONTATO": "K1", "NOME": "joao"}]
		}`)
		So(code, ShouldEqual, http.StatusOK)
		id := decode[map[string]string](body)["GUIDCLIENTE"]
		So(id, ShouldNotBeEmpty)

		code, body = ts.do(http.MethodGet, "/api/system/TableWithChildren/cadastro.cliente,cadastro.cidade|origem,cadastro.cidade|destino", "")
		So(code, ShouldEqual, http.StatusOK)
		result := decode[map[string][]map[string]any](body)
		So(result, ShouldHaveLength, 3)
		So(result["cadastro.cliente"][0]["GUIDCLIENTE"], ShouldEqual, id)
		So(result["cadastro.cidade|origem"], ShouldResemble, result["cadastro.cidade|destino"])
		So(result["cadastro.cidade|origem"][0]["NOME"], ShouldEqual, "RIO")

		Convey("主从写入失败整体回滚", func() {
			code, _ := ts.do(http.MethodPost, "/api/system/TableWithChildren/", `{
				"cadastro.cliente": [{"NOME": "outro"}],
				"cadastro.fantasma": [{"NOME": "x"}]
			}`)
			So(code, ShouldEqual, http.StatusInternalServerError)
			_, body := ts.do(http.MethodGet, "/api/cadastro/cliente?NOME=OUTRO", "")
			So(decode[[]map[string]any](body), ShouldBeEmpty)
		})

		Convey("空报文", func() {
			code, _ := ts.do(http.MethodPost, "/api/system/TableWithChildren", `{}`)
			So(code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAccessRoutes(t *testing.T) {
	Convey("测试权限相关接口", t, func() {
		ts := newTestServer(t)

		Convey("界面附带权限项", func() {
			code, body := ts.do(http.MethodGet, "/api/ACESSO/ACESSO_TELA", "")
			So(code, ShouldEqual, http.StatusOK)
			screens := decode[[]map[string]any](body)
			So(screens, ShouldHaveLength, 1)
			So(screens[0]["GUIDACESSO_TELA"], ShouldEqual, "T1")
			So(screens[0]["ACESSOS"], ShouldHaveLength, 2)
		})

		Convey("权限写入展开为行", func() {
			code, body := ts.do(http.MethodPost, "/api/ACESSO/USUARIOGRUPO/TableWithChildren", `{
				"acesso.usuariogrupo": [{"GUIDUSUARIOGRUPO": "G2", "NOME": "gerencia"}],
				"acesso.usuariogrupo_x_permissao": [{"P1": "S", "P2": "N", "lookup_x": "ignorado"}]
			}`)
			So(code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](body), ShouldResemble, map[string]string{"GUIDUSUARIOGRUPO": "G2"})

			code, body = ts.do(http.MethodGet, "/api/ACESSO/USUARIOGRUPO/USUARIOGRUPO_X_PERMISSAO/G2", "")
			So(code, ShouldEqual, http.StatusOK)
			So(decode[[]acesso.ScreenPermissions](body), ShouldResemble, []acesso.ScreenPermissions{
				{GUIDAcessoTela: "T1", Permissao: map[string]any{"P1": "S", "P2": "N"}},
			})
		})

		Convey("用户可访问界面", func() {
			code, body := ts.do(http.MethodGet, "/api/ACESSO/USUARIOGRUPO/LIST_ACESSO/U1", "")
			So(code, ShouldEqual, http.StatusOK)
			So(decode[[]acesso.ScreenAccess](body), ShouldResemble, []acesso.ScreenAccess{
				{GUIDAcessoTela: "T1", Nome: "CLIENTES", Permissao: map[string]any{"INSERIR": "S"}},
			})
		})

		Convey("组的多表查询", func() {
			code, body := ts.do(http.MethodGet, "/api/ACESSO/USUARIOGRUPO/TableWithChildren/acesso.usuariogrupo_x_permissao?GUIDUSUARIOGRUPO=G1", "")
			So(code, ShouldEqual, http.StatusOK)
			So(decode[map[string][]map[string]any](body)["acesso.usuariogrupo_x_permissao"], ShouldHaveLength, 1)
		})
	})
}

func TestInfrastructure(t *testing.T) {
	Convey("测试基础接口和中间件", t, func() {
		ts := newTestServer(t)

		code, body := ts.do(http.MethodGet, "/healthz", "")
		So(code, ShouldEqual, http.StatusOK)
		So(string(body), ShouldContainSubstring, "ok")

		code, body = ts.do(http.MethodGet, "/api/config/dicionario", "")
		So(code, ShouldEqual, http.StatusOK)
		So(decode[map[string][]map[string]any](body)["tabelas"], ShouldHaveLength, 8)

		Convey("预检请求", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/cadastro/cliente", nil)
			rec := httptest.NewRecorder()
			ts.server.Handler().ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("指标按路由模板统计", func() {
			code, body := ts.do(http.MethodGet, "/metrics", "")
			So(code, ShouldEqual, http.StatusOK)
			text := string(body)
			So(text, ShouldContainSubstring, "test_http_requests_total")
			So(text, ShouldContainSubstring, `route="/api/config/dicionario"`)
		})

		Convey("panic 转为 500", func() {
			h := ts.server.recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[ErrorResponse](rec.Body.Bytes()).Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("路由列表", func() {
			var paths []string
			for _, r := range ts.server.Routes() {
				paths = append(paths, r.Method+" "+r.Path)
			}
			joined := strings.Join(paths, "\n")
			So(joined, ShouldContainSubstring, "GET /api/CADASTRO/CLIENTE")
			So(joined, ShouldContainSubstring, "DELETE /api/CADASTRO/CLIENTE/{id}")
			So(joined, ShouldContainSubstring, "POST /api/system/TableWithChildren")
			So(joined, ShouldNotContainSubstring, "{resource}")
		})
	})
}
