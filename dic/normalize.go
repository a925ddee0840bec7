package dic

import (
	"bytes"
	"encoding/json"
	"strings"
)

// 这些键的取值是界面文案，保留原始大小写
var preserveCaseKeys = []string{"caption", "hint", "displayValue", "fieldDisplay"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func keepCase(key string) bool {
	for _, k := range preserveCaseKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// normalize 把所有字符串值转大写，数字和布尔保持原类型
func normalize(v any, key string) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item, k)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item, key)
		}
		return val
	case string:
		if keepCase(key) {
			return val
		}
		return strings.ToUpper(val)
	}
	return v
}

func decodeDocument(data []byte) (*document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(normalize(tree, ""))
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

type document struct {
	Tables []*tableDoc `json:"tabelas"`
}

type tableDoc struct {
	Name           string      `json:"nome"`
	Resource       string      `json:"resource"`
	Caption        string      `json:"caption"`
	PrimaryKey     string      `json:"primaryKey"`
	OrderBy        string      `json:"orderBy"`
	FieldsView     any         `json:"fieldsView"`
	ChildrenTables []childDoc  `json:"childrenTables"`
	Fields         []*fieldDoc `json:"campos"`
}

type fieldDoc struct {
	Name                string          `json:"nome"`
	Type                string          `json:"tipo"`
	Caption             string          `json:"caption"`
	Hint                string          `json:"hint"`
	DisplayValue        string          `json:"displayValue"`
	FieldDisplay        string          `json:"fieldDisplay"`
	IgnoreCaseSensitive flexBool        `json:"ignoreCaseSensitive"`
	Relationship        json.RawMessage `json:"relacionamento"`
}

type relationshipDoc struct {
	ParentTable  string `json:"tabelaPai"`
	ParentKey    string `json:"campoPai"`
	DisplayField string `json:"displayCaption"`
}

// childDoc 接受 "T" 或 {"tableName": "T"}
type childDoc string

func (c *childDoc) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			TableName string `json:"tableName"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*c = childDoc(obj.TableName)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = childDoc(s)
	return nil
}

// flexBool 兼容 true/false 以及字符串形式的 "TRUE" "S" "V" "1"
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case bool:
		*b = flexBool(val)
	case string:
		switch strings.ToUpper(strings.TrimSpace(val)) {
		case "TRUE", "S", "SIM", "V", "1", "Y":
			*b = true
		default:
			*b = false
		}
	case float64:
		*b = val != 0
	default:
		*b = false
	}
	return nil
}
