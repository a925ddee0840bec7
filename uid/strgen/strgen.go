// Package strgen 生成随机字符串标识
package strgen

// StrGenerator 生成字符串标识
type StrGenerator interface {
	Generate() string
}
