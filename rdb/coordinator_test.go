package rdb

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func payload(t *testing.T, body string) *Payload {
	p, err := ParsePayload(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestApplyNested(t *testing.T) {
	Convey("测试主从写入", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		Convey("主表生成主键并注入子表", func() {
			res, err := f.engine.ApplyNested(ctx, payload(t, `{
				"cadastro.cliente": [{"NOME": "acme"}],
				"cadastro.cliente_contato": [{"NOME": "joao"}, {"NOME": "maria", "lookup_action": "INSERT"}]
			}`), nil)
			So(err, ShouldBeNil)
			id := res["GUIDCLIENTE"]
			So(id, ShouldNotBeEmpty)

			So(f.rows(t, "SELECT GUIDCLIENTE, NOME FROM CLIENTE"), ShouldResemble, []map[string]any{{"GUIDCLIENTE": id, "NOME": "ACME"}})
			So(f.rows(t, "SELECT GUIDCLIENTE, NOME FROM CLIENTE_CONTATO ORDER BY NOME"), ShouldResemble, []map[string]any{
				{"GUIDCLIENTE": id, "NOME": "JOAO"},
				{"GUIDCLIENTE": id, "NOME": "MARIA"},
			})
		})

		Convey("已有主键时更新", func() {
			f.exec(t, "INSERT INTO CLIENTE (GUIDCLIENTE, NOME) VALUES ('C1', 'OLD')")
			res, err := f.engine.ApplyNested(ctx, payload(t, `{"cadastro.cliente": {"GUIDCLIENTE": "C1", "NOME": "new"}}`), nil)
			So(err, ShouldBeNil)
			So(res, ShouldResemble, map[string]any{"GUIDCLIENTE": "C1"})
			So(f.rows(t, "SELECT NOME FROM CLIENTE"), ShouldResemble, []map[string]any{{"NOME": "NEW"}})
		})

		Convey("delete 行按自身主键删除", func() {
			f.exec(t, "INSERT INTO CLIENTE (GUIDCLIENTE, NOME) VALUES ('C1', 'A')")
			f.exec(t, "INSERT INTO CLIENTE_CONTATO (GUIDCLIENTE_CONTATO, GUIDCLIENTE, NOME) VALUES ('K1', 'C1', 'X'), ('K2', 'C1', 'Y')")
			_, err := f.engine.ApplyNested(ctx, payload(t, `{
				"cadastro.cliente": [{"GUIDCLIENTE": "C1"}],
				"cadastro.cliente_contato": [
					{"GUIDCLIENTE_CONTATO": "K1", "lookup_action": "delete"},
					{"lookup_action": "Delete"}
				]
			}`), nil)
			So(err, ShouldBeNil)
			So(f.rows(t, "SELECT GUIDCLIENTE_CONTATO FROM CLIENTE_CONTATO"), ShouldResemble, []map[string]any{{"GUIDCLIENTE_CONTATO": "K2"}})
		})

		Convey("delete 行优先使用调用方的条件", func() {
			f.exec(t, "INSERT INTO CLIENTE_CONTATO (GUIDCLIENTE_CONTATO, GUIDCLIENTE, NOME) VALUES ('K1', 'C1', 'X'), ('K2', 'C1', 'Y'), ('K3', 'C2', 'Z')")
			_, err := f.engine.ApplyNested(ctx, payload(t, `{
				"cadastro.cliente": [{"GUIDCLIENTE": "C1"}],
				"cadastro.cliente_contato": [{"GUIDCLIENTE_CONTATO": "K3", "lookup_action": "delete"}]
			}`), Params{{Key: "GUIDCLIENTE", Value: "C1"}})
			So(err, ShouldBeNil)
			So(f.rows(t, "SELECT GUIDCLIENTE_CONTATO FROM CLIENTE_CONTATO"), ShouldResemble, []map[string]any{{"GUIDCLIENTE_CONTATO": "K3"}})
		})

		Convey("任何一项失败则全部回滚", func() {
			f.exec(t, "INSERT INTO CLIENTE (GUIDCLIENTE, NOME) VALUES ('C1', 'OLD')")
			_, err := f.engine.ApplyNested(ctx, payload(t, `{
				"cadastro.cliente": [{"GUIDCLIENTE": "C1", "NOME": "new"}],
				"cadastro.cliente_contato": [{"NOME": "joao"}],
				"cadastro.fantasma": [{"GUIDFANTASMA": "F1"}]
			}`), nil)
			var me *MutationError
			So(errors.As(err, &me), ShouldBeTrue)
			So(me.Table, ShouldEqual, "FANTASMA")

			So(f.rows(t, "SELECT NOME FROM CLIENTE"), ShouldResemble, []map[string]any{{"NOME": "OLD"}})
			So(f.count(t, "CLIENTE_CONTATO"), ShouldEqual, 0)
		})

		Convey("未知的动作", func() {
			_, err := f.engine.ApplyNested(ctx, payload(t, `{"cadastro.cliente": [{"NOME": "a", "lookup_action": "merge"}]}`), nil)
			So(errors.Is(err, ErrInvalidPayload), ShouldBeTrue)
			So(f.count(t, "CLIENTE"), ShouldEqual, 0)
		})

		Convey("主表没有行", func() {
			_, err := f.engine.ApplyNested(ctx, payload(t, `{"cadastro.cliente": []}`), nil)
			So(errors.Is(err, ErrInvalidPayload), ShouldBeTrue)
		})
	})
}

func TestApplyPermissions(t *testing.T) {
	Convey("测试权限报文展开", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		res, err := f.engine.ApplyPermissions(ctx, payload(t, `{
			"acesso.usuariogrupo": [{"GUIDUSUARIOGRUPO": "G1", "NOME": "admin"}],
			"acesso.usuariogrupo_x_permissao": [
				{"P1": "S", "P2": "N", "lookup_action": "edit", "GUIDUSUARIOGRUPO": "G1", "VALOR": "x", "GUIDACESSO_TELA": "T1"},
				{}
			]
		}`), nil)
		So(err, ShouldBeNil)
		So(res, ShouldResemble, map[string]any{"GUIDUSUARIOGRUPO": "G1"})

		rows := f.rows(t, "SELECT * FROM USUARIOGRUPO_X_PERMISSAO ORDER BY GUIDUSUARIOGRUPO_PERMISSAO")
		So(rows, ShouldResemble, []map[string]any{
			{"GUIDUSUARIOGRUPO_PERMISSAO": "G1+P1", "GUIDACESSO_TELA_PERMISSAO": "P1", "GUIDUSUARIOGRUPO": "G1", "VALOR": "S"},
			{"GUIDUSUARIOGRUPO_PERMISSAO": "G1+P2", "GUIDACESSO_TELA_PERMISSAO": "P2", "GUIDUSUARIOGRUPO": "G1", "VALOR": "N"},
		})
		So(f.rows(t, "SELECT NOME FROM USUARIOGRUPO"), ShouldResemble, []map[string]any{{"NOME": "ADMIN"}})

		Convey("再次提交时覆盖原值", func() {
			_, err := f.engine.ApplyPermissions(ctx, payload(t, `{
				"acesso.usuariogrupo": [{"GUIDUSUARIOGRUPO": "G1"}],
				"acesso.usuariogrupo_x_permissao": [{"P1": "N"}]
			}`), nil)
			So(err, ShouldBeNil)
			So(f.count(t, "USUARIOGRUPO_X_PERMISSAO"), ShouldEqual, 2)
			So(f.rows(t, "SELECT VALOR FROM USUARIOGRUPO_X_PERMISSAO WHERE GUIDUSUARIOGRUPO_PERMISSAO = 'G1+P1'"),
				ShouldResemble, []map[string]any{{"VALOR": "N"}})
		})
	})
}
