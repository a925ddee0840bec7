// Package serializer 负责日期入参的规范化，以及查询结果的输出格式
package serializer

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// SQL 侧统一使用 ISO 文本，各驱动都能直接比较
	SQLDateLayout     = "2006-01-02"
	SQLDateTimeLayout = "2006-01-02 15:04:05"

	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006 15:04:05"
	TimeLayout     = "15:04:05"
)

// DefaultLocation 带 Z 后缀的时间换算到的本地时区（UTC-3）
var DefaultLocation = time.FixedZone("BRT", -3*60*60)

var ErrInvalidDate = errors.New("invalid date")

// ParseDate 接受 yyyy-mm-dd[Thh:mm...]、dd/mm/yyyy、dd-mm-yyyy、yyyy/mm/dd，
// 第一段为四位时按年月日处理，否则按日月年处理
func ParseDate(value string) (string, error) {
	t, err := parseDate(value)
	if err != nil {
		return "", err
	}
	return t.Format(SQLDateLayout), nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, "T "); i >= 0 {
		value = value[:i]
	}

	sep := "-"
	if strings.Contains(value, "/") {
		sep = "/"
	}
	parts := strings.Split(value, sep)
	if len(parts) != 3 {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", value)
	}

	var y, m, d string
	if len(parts[0]) == 4 {
		y, m, d = parts[0], parts[1], parts[2]
	} else {
		d, m, y = parts[0], parts[1], parts[2]
	}
	t, err := time.Parse("2006-1-2", y+"-"+m+"-"+d)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", value)
	}
	return t, nil
}

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDateTime 接受 ISO 格式（可带时区或 Z）、"日期 时间" 以及只有日期的情况；
// 带时区的值换算到 loc，缺省时间为 00:00:00
func ParseDateTime(value string, loc *time.Location) (string, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = DefaultLocation
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc).Format(SQLDateTimeLayout), nil
		}
	}

	trimmed := value
	if i := strings.IndexByte(trimmed, '.'); i > 0 && strings.ContainsAny(trimmed, "T ") {
		trimmed = trimmed[:i]
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(SQLDateTimeLayout), nil
		}
	}

	datePart, timePart, _ := strings.Cut(strings.Replace(value, "T", " ", 1), " ")
	d, err := parseDate(datePart)
	if err != nil {
		return "", err
	}
	if timePart == "" {
		timePart = "00:00:00"
	}
	clock, err := parseClock(timePart)
	if err != nil {
		return "", err
	}
	return d.Format(SQLDateLayout) + " " + clock, nil
}

func parseClock(value string) (string, error) {
	for _, layout := range []string{"15:04:05", "15:04", "3:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", errors.Wrapf(ErrInvalidDate, "time %q", value)
}
