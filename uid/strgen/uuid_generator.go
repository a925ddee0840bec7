package strgen

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

type UUIDOptions struct {
	Version     string `cfg:"version" def:"v4" validate:"oneof=v1 v4 v6 v7"`
	WithHyphens bool   `cfg:"withHyphens"`
	// Upper 主键按大写比较，生成的标识也用大写
	Upper bool `cfg:"upper" def:"true"`
}

type UUIDGenerator struct {
	version     string
	withHyphens bool
	upper       bool
}

// NewUUIDGeneratorWithOptions nil 时生成无连字符的大写 v4
func NewUUIDGeneratorWithOptions(options *UUIDOptions) *UUIDGenerator {
	if options == nil {
		options = &UUIDOptions{Version: "v4", Upper: true}
	}
	version := options.Version
	if version == "" {
		version = "v4"
	}
	return &UUIDGenerator{
		version:     version,
		withHyphens: options.WithHyphens,
		upper:       options.Upper,
	}
}

func (g *UUIDGenerator) Generate() string {
	var u uuid.UUID
	switch g.version {
	case "v1":
		u = uuid.Must(uuid.NewUUID())
	case "v6":
		u = uuid.Must(uuid.NewV6())
	case "v7":
		u = uuid.Must(uuid.NewV7())
	default:
		u = uuid.New()
	}

	s := hex.EncodeToString(u[:])
	if g.withHyphens {
		s = u.String()
	}
	if g.upper {
		return strings.ToUpper(s)
	}
	return s
}
