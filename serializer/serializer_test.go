package serializer

import (
	"testing"
	"time"

	"github.com/nbti/nbadmin/dic"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDate(t *testing.T) {
	Convey("测试 ParseDate", t, func() {
		cases := []struct {
			in   string
			want string
		}{
			{"2024-01-31", "2024-01-31"},
			{"2024-01-31T10:20:30.000Z", "2024-01-31"},
			{"31/01/2024", "2024-01-31"},
			{"31-01-2024", "2024-01-31"},
			{"2024/1/5", "2024-01-05"},
			{"5/1/2024", "2024-01-05"},
		}
		for _, c := range cases {
			got, err := ParseDate(c.in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, c.want)
		}

		Convey("非法日期", func() {
			for _, in := range []string{"", "2024", "31/13/2024", "abc/def/ghi"} {
				_, err := ParseDate(in)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestParseDateTime(t *testing.T) {
	Convey("测试 ParseDateTime", t, func() {
		Convey("UTC 换算到本地时区", func() {
			got, err := ParseDateTime("2024-01-31T13:00:00Z", nil)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2024-01-31 10:00:00")

			got, err = ParseDateTime("2024-01-01T01:30:00.000Z", nil)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2023-12-31 22:30:00")
		})

		Convey("本地 ISO 原样保留", func() {
			got, err := ParseDateTime("2024-01-31T13:05", time.UTC)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2024-01-31 13:05:00")

			got, err = ParseDateTime("2024-01-31 13:05:09.123", time.UTC)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2024-01-31 13:05:09")
		})

		Convey("日月年格式和缺省时间", func() {
			got, err := ParseDateTime("31/01/2024 08:15", nil)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2024-01-31 08:15:00")

			got, err = ParseDateTime("31/01/2024", nil)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "2024-01-31 00:00:00")
		})

		Convey("非法时间", func() {
			_, err := ParseDateTime("31/01/2024 25:99", nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValue(t *testing.T) {
	Convey("测试输出格式", t, func() {
		ts := time.Date(2024, 1, 31, 8, 5, 9, 0, time.UTC)
		day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

		So(Value(ts, dic.TypeDate), ShouldEqual, "31/01/2024")
		So(Value(ts, dic.TypeDateTime), ShouldEqual, "31/01/2024 08:05:09")
		So(Value(ts, dic.TypeTime), ShouldEqual, "08:05:09")
		So(Value(day, ""), ShouldEqual, "31/01/2024")
		So(Value(ts, ""), ShouldEqual, "31/01/2024 08:05:09")
		So(Value(10.5, dic.TypeNumeric), ShouldEqual, "10.5")
		So(Value([]byte("12.30"), dic.TypeNumeric), ShouldEqual, "12.30")
		So(Value(int64(7), dic.TypeInteger), ShouldEqual, int64(7))
		So(Value(int64(10), dic.TypeNumeric), ShouldEqual, "10")
		So(Value(int64(-3), dic.TypeNumeric), ShouldEqual, "-3")
		So(Value(0, dic.TypeNumeric), ShouldEqual, "0")
		So(Value("2024-01-31", dic.TypeDate), ShouldEqual, "31/01/2024")
		So(Value("2024-01-31 10:00:00", dic.TypeDateTime), ShouldEqual, "31/01/2024 10:00:00")
		So(Value("ACME", dic.TypeString), ShouldEqual, "ACME")
		So(Value(nil, dic.TypeDate), ShouldBeNil)
	})
}

func TestRows(t *testing.T) {
	Convey("测试按表字典格式化", t, func() {
		d, err := dic.Parse([]byte(`{"tabelas": [{"nome": "PEDIDO", "campos": [
			{"nome": "DATA", "tipo": "DATE"},
			{"nome": "TOTAL", "tipo": "NUMERIC"},
			{"nome": "DESCONTO", "tipo": "NUMERIC"},
			{"nome": "GUIDCLIENTE", "relacionamento": {"tabelaPai": "CLIENTE", "campoPai": "GUIDCLIENTE", "displayCaption": "NOME"}}
		]}]}`))
		So(err, ShouldBeNil)
		table, _ := d.Get("PEDIDO")

		rows := Rows(table, []map[string]any{{
			"DATA":               time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			"TOTAL":              99.9,
			"DESCONTO":           int64(10),
			"LOOKUP_GUIDCLIENTE": []byte("ACME"),
			"EXTRA":              int64(1),
		}})
		So(rows, ShouldResemble, []map[string]any{{
			"DATA":               "01/02/2024",
			"TOTAL":              "99.9",
			"DESCONTO":           "10",
			"LOOKUP_GUIDCLIENTE": "ACME",
			"EXTRA":              int64(1),
		}})
	})
}
