package writer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 是否按日志级别着色
	Color bool `cfg:"color" def:"true"`
	// 输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout" validate:"omitempty,oneof=stdout stderr"`
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
	color  bool
	target string
	mu     sync.Mutex
}

var levelColors = []struct {
	token []byte
	color *color.Color
}{
	{[]byte("level=ERROR"), color.New(color.FgRed)},
	{[]byte(`"level":"ERROR"`), color.New(color.FgRed)},
	{[]byte("level=WARN"), color.New(color.FgYellow)},
	{[]byte(`"level":"WARN"`), color.New(color.FgYellow)},
	{[]byte("level=DEBUG"), color.New(color.FgHiBlack)},
	{[]byte(`"level":"DEBUG"`), color.New(color.FgHiBlack)},
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) (*ConsoleWriter, error) {
	if options == nil {
		options = &ConsoleWriterOptions{Color: true, Target: "stdout"}
	}

	w := &ConsoleWriter{color: options.Color, target: "stdout", writer: os.Stdout}
	if options.Target == "stderr" {
		w.target = "stderr"
		w.writer = os.Stderr
	}
	return w, nil
}

// Target 返回实际输出目标
func (c *ConsoleWriter) Target() string {
	return c.target
}

// Write 整行着色后输出，color.NoColor 为 true 时（非终端）原样输出
func (c *ConsoleWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.color || color.NoColor {
		return c.writer.Write(p)
	}
	for _, lc := range levelColors {
		if bytes.Contains(p, lc.token) {
			line := bytes.TrimRight(p, "\n")
			if _, err := lc.color.Fprintln(c.writer, string(line)); err != nil {
				return 0, err
			}
			return len(p), nil
		}
	}
	return c.writer.Write(p)
}

// Close 控制台无需关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
