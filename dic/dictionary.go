// Package dic 加载表字典文档，提供只读的表/字段元数据
package dic

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// FieldType 字段类型
type FieldType string

const (
	TypeString   FieldType = "STRING"
	TypeInteger  FieldType = "INTEGER"
	TypeNumeric  FieldType = "NUMERIC"
	TypeDate     FieldType = "DATE"
	TypeDateTime FieldType = "DATETIME"
	TypeTime     FieldType = "TIME"
	TypeBoolean  FieldType = "BOOLEAN"
	TypeBlob     FieldType = "BLOB"
)

// IsNumeric INTEGER 和 NUMERIC 的零值是有效值
func (t FieldType) IsNumeric() bool {
	return t == TypeInteger || t == TypeNumeric
}

// LookupPrefix 关联显示列的保留前缀，这些列只读
const LookupPrefix = "LOOKUP_"

// Relationship 外键关联，用于生成 LEFT JOIN 显示列
type Relationship struct {
	ParentTable  string `json:"tabelaPai"`
	ParentKey    string `json:"campoPai"`
	DisplayField string `json:"displayCaption"`
}

type FieldMetadata struct {
	Name                string        `json:"nome"`
	AliasName           string        `json:"aliasName"`
	Type                FieldType     `json:"tipo"`
	Caption             string        `json:"caption,omitempty"`
	Hint                string        `json:"hint,omitempty"`
	DisplayValue        string        `json:"displayValue,omitempty"`
	FieldDisplay        string        `json:"fieldDisplay,omitempty"`
	IgnoreCaseSensitive bool          `json:"ignoreCaseSensitive"`
	Relationship        *Relationship `json:"relacionamento,omitempty"`
}

// LookupAlias 关联显示列名，同时作为 JOIN 的表别名
func (f *FieldMetadata) LookupAlias() string {
	return LookupPrefix + f.AliasName
}

type TableMetadata struct {
	Name            string           `json:"nome"`
	Resource        string           `json:"resource"`
	Caption         string           `json:"caption,omitempty"`
	PrimaryKey      string           `json:"primaryKey"`
	PrimaryKeyAlias string           `json:"primaryKeyAlias,omitempty"`
	Generator       string           `json:"generator,omitempty"`
	OrderBy         string           `json:"orderBy"`
	FieldsView      any              `json:"fieldsView"`
	ChildrenTables  []string         `json:"childrenTables"`
	Fields          []*FieldMetadata `json:"campos"`

	byAlias map[string]*FieldMetadata
	byName  map[string]*FieldMetadata
}

// PrimaryKeyKey 记录中主键所在的键，声明了别名时使用别名
func (t *TableMetadata) PrimaryKeyKey() string {
	if t.PrimaryKeyAlias != "" {
		return t.PrimaryKeyAlias
	}
	return t.PrimaryKey
}

// Field 按别名或列名查找字段，别名优先
func (t *TableMetadata) Field(key string) (*FieldMetadata, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if f, ok := t.byAlias[key]; ok {
		return f, nil
	}
	if f, ok := t.byName[key]; ok {
		return f, nil
	}
	return nil, &FieldNotFoundError{Table: t.Name, Field: key}
}

// HasField 字段或别名是否已声明
func (t *TableMetadata) HasField(key string) bool {
	_, err := t.Field(key)
	return err == nil
}

// Column 把别名解析为真实列名；主键别名也在此解析
func (t *TableMetadata) Column(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if t.PrimaryKeyAlias != "" && key == t.PrimaryKeyAlias {
		return t.PrimaryKey, nil
	}
	f, err := t.Field(key)
	if err != nil {
		if key == t.PrimaryKey {
			return t.PrimaryKey, nil
		}
		return "", err
	}
	return f.Name, nil
}

// LookupFields 带关联的字段
func (t *TableMetadata) LookupFields() []*FieldMetadata {
	var out []*FieldMetadata
	for _, f := range t.Fields {
		if f.Relationship != nil {
			out = append(out, f)
		}
	}
	return out
}

// Source 提供当前字典快照，*Dictionary 和 *Holder 都实现
type Source interface {
	Current() *Dictionary
}

// Dictionary 加载后不可变，可以并发读
type Dictionary struct {
	tables []*TableMetadata
	index  map[string]*TableMetadata
}

func (d *Dictionary) Current() *Dictionary {
	return d
}

// Tables 按文档顺序返回
func (d *Dictionary) Tables() []*TableMetadata {
	return d.tables
}

// Get 接受 "T"、"T|alias"、"resource.T|alias"
func (d *Dictionary) Get(name string) (*TableMetadata, error) {
	_, table, _ := SplitTableKey(name)
	if t, ok := d.index[table]; ok {
		return t, nil
	}
	return nil, &TableNotFoundError{Table: table}
}

// SplitTableKey 拆分 "resource.table|alias"，返回值均为大写
func SplitTableKey(key string) (resource, table, alias string) {
	key = strings.ToUpper(strings.TrimSpace(key))
	key, alias, _ = strings.Cut(key, "|")
	if i := strings.LastIndex(key, "."); i >= 0 {
		resource, table = key[:i], key[i+1:]
	} else {
		table = key
	}
	return resource, table, alias
}

// Load 读取并规范化字典文档
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	d, err := Parse(data)
	if err != nil {
		var cle *ConfigLoadError
		if errors.As(err, &cle) {
			cle.Path = path
			return nil, cle
		}
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	return d, nil
}

var asPattern = regexp.MustCompile(`^\s*(\S+)\s+AS\s+(\S+)\s*$`)

func splitAs(s string) (name, alias string) {
	if m := asPattern.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	s = strings.TrimSpace(s)
	return s, ""
}

// Parse 规范化字典内容，校验表名唯一、字段别名唯一、关联完整
func Parse(data []byte) (*Dictionary, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &ConfigLoadError{Err: err}
	}

	d := &Dictionary{index: map[string]*TableMetadata{}}
	for i, td := range doc.Tables {
		if td == nil || strings.TrimSpace(td.Name) == "" {
			return nil, &ConfigLoadError{Err: errors.Errorf("table #%d has no name", i)}
		}
		t, err := newTable(td)
		if err != nil {
			return nil, &ConfigLoadError{Err: err}
		}
		if _, ok := d.index[t.Name]; ok {
			return nil, &ConfigLoadError{Err: errors.Errorf("duplicate table %s", t.Name)}
		}
		d.index[t.Name] = t
		d.tables = append(d.tables, t)
	}
	return d, nil
}

func newTable(td *tableDoc) (*TableMetadata, error) {
	t := &TableMetadata{
		Name:     strings.TrimSpace(td.Name),
		Resource: strings.TrimSpace(td.Resource),
		Caption:  td.Caption,
		OrderBy:  strings.TrimSpace(td.OrderBy),
		byAlias:  map[string]*FieldMetadata{},
		byName:   map[string]*FieldMetadata{},
	}

	t.FieldsView = td.FieldsView
	if isEmpty(td.FieldsView) {
		t.FieldsView = ""
	}

	pk := strings.TrimSpace(td.PrimaryKey)
	if pk == "" {
		pk = "GUID" + t.Name
	}
	if head, gen, ok := strings.Cut(pk, ","); ok {
		pk = strings.TrimSpace(head)
		t.Generator = strings.TrimSpace(gen)
	}
	t.PrimaryKey, t.PrimaryKeyAlias = splitAs(pk)

	for _, c := range td.ChildrenTables {
		if name := strings.TrimSpace(string(c)); name != "" {
			t.ChildrenTables = append(t.ChildrenTables, name)
		}
	}

	for i, fd := range td.Fields {
		if fd == nil || strings.TrimSpace(fd.Name) == "" {
			return nil, errors.Errorf("table %s: field #%d has no name", t.Name, i)
		}
		name, alias := splitAs(fd.Name)
		if alias == "" {
			alias = name
		}
		f := &FieldMetadata{
			Name:                name,
			AliasName:           alias,
			Type:                FieldType(strings.TrimSpace(fd.Type)),
			Caption:             fd.Caption,
			Hint:                fd.Hint,
			DisplayValue:        fd.DisplayValue,
			FieldDisplay:        fd.FieldDisplay,
			IgnoreCaseSensitive: bool(fd.IgnoreCaseSensitive),
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		rel, err := parseRelationship(fd.Relationship)
		if err != nil {
			return nil, errors.WithMessagef(err, "table %s field %s", t.Name, name)
		}
		f.Relationship = rel

		if _, ok := t.byAlias[alias]; ok {
			return nil, errors.Errorf("table %s: duplicate field alias %s", t.Name, alias)
		}
		t.byAlias[alias] = f
		if _, ok := t.byName[name]; !ok {
			t.byName[name] = f
		}
		t.Fields = append(t.Fields, f)
	}
	return t, nil
}

func parseRelationship(raw []byte) (*Relationship, error) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var rd relationshipDoc
	if err := json.Unmarshal(raw, &rd); err != nil {
		return nil, errors.Wrap(err, "invalid relacionamento")
	}
	if rd.ParentTable == "" && rd.ParentKey == "" && rd.DisplayField == "" {
		return nil, nil
	}
	if rd.ParentTable == "" || rd.ParentKey == "" {
		return nil, errors.New("relacionamento requires tabelaPai and campoPai")
	}
	if rd.DisplayField == "" {
		rd.DisplayField = rd.ParentKey
	}
	return &Relationship{
		ParentTable:  strings.TrimSpace(rd.ParentTable),
		ParentKey:    strings.TrimSpace(rd.ParentKey),
		DisplayField: strings.TrimSpace(rd.DisplayField),
	}, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// MarshalJSON 输出规范化后的字典文档
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tables []*TableMetadata `json:"tabelas"`
	}{Tables: d.tables})
}
