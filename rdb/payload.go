package rdb

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nbti/nbadmin/dic"
	"github.com/pkg/errors"
)

// Entry 主从报文中的一项，键形如 resource.table|alias
type Entry struct {
	Key      string
	Resource string
	Table    string
	Alias    string
	Rows     []Record
}

// Payload 保持报文中键的顺序，第一项为主表
type Payload struct {
	Entries []*Entry
}

func (p *Payload) Master() *Entry {
	if len(p.Entries) == 0 {
		return nil
	}
	return p.Entries[0]
}

// ParsePayload 每一项的值可以是对象数组，也可以是单个对象
func ParsePayload(r io.Reader) (*Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.Wrap(ErrInvalidPayload, "payload must be an object")
	}

	p := &Payload{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "entry %s: %v", key, err)
		}
		rows, err := decodeRows(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPayload, "entry %s: %v", key, err)
		}

		resource, table, alias := dic.SplitTableKey(key)
		p.Entries = append(p.Entries, &Entry{Key: key, Resource: resource, Table: table, Alias: alias, Rows: rows})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}
	if len(p.Entries) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "payload is empty")
	}
	return p, nil
}

func decodeRows(raw json.RawMessage) ([]Record, error) {
	raw = bytes.TrimSpace(raw)
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		return d.Decode(v)
	}
	switch {
	case len(raw) > 0 && raw[0] == '[':
		var rows []Record
		if err := dec(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	case len(raw) > 0 && raw[0] == '{':
		var row Record
		if err := dec(&row); err != nil {
			return nil, err
		}
		return []Record{row}, nil
	case bytes.Equal(raw, []byte("null")):
		return nil, nil
	}
	return nil, errors.New("rows must be an object or an array of objects")
}

// DecodeRecords 单表写入的请求体，对象或对象数组
func DecodeRecords(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%v", err)
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "no records")
	}
	return rows, nil
}
