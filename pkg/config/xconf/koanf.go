package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	delim = "."
	tag   = "koanf"
)

// koanfConfig 是 Config 的 koanf 实现
type koanfConfig struct {
	k       atomic.Pointer[koanf.Koanf]
	reloadM sync.Mutex
	path    string
	format  Format
}

// New 从文件创建配置，按扩展名识别格式（.yaml/.yml/.json）
func New(path string) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	c := &koanfConfig{path: path, format: format}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据创建配置，空数据得到空配置
func NewFromBytes(data []byte, format Format) (Config, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}

	c := &koanfConfig{format: format}
	c.k.Store(k)
	return c, nil
}

func (c *koanfConfig) Client() *koanf.Koanf {
	return c.k.Load()
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	if err := c.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 串行执行，避免并发重载导致配置回退
func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotReloadable
	}

	c.reloadM.Lock()
	defer c.reloadM.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k := koanf.New(delim)
	if err := loadData(k, data, c.format); err != nil {
		return err
	}
	c.k.Store(k)
	return nil
}

func (c *koanfConfig) Path() string {
	return c.path
}

func (c *koanfConfig) Format() Format {
	return c.format
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
