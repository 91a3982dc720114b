// Package textconv 简繁转换 (OpenCC 词典)
package textconv

import (
	"strings"
	"sync"

	"github.com/longbridgeapp/opencc"
	log "github.com/sirupsen/logrus"
)

// Converter 简繁互转
type Converter interface {
	ToTraditional(text string) string
	ToSimplified(text string) string
}

// OpenCCConverter 按词组转换 (关于 → 關於)，转换失败时原样返回
type OpenCCConverter struct {
	s2t *opencc.OpenCC
	t2s *opencc.OpenCC
}

var (
	defaultOnce sync.Once
	defaultConv Converter
)

// Default 返回共享实例。词典加载失败时退化为不转换。
func Default() Converter {
	defaultOnce.Do(func() {
		c, err := NewOpenCCConverter()
		if err != nil {
			log.Errorf("TextConv: load OpenCC dictionaries: %v", err)
			defaultConv = Identity{}
			return
		}
		defaultConv = c
	})
	return defaultConv
}

func NewOpenCCConverter() (*OpenCCConverter, error) {
	s2t, err := opencc.New("s2t")
	if err != nil {
		return nil, err
	}
	t2s, err := opencc.New("t2s")
	if err != nil {
		return nil, err
	}
	return &OpenCCConverter{s2t: s2t, t2s: t2s}, nil
}

func (c *OpenCCConverter) ToTraditional(text string) string {
	return convert(c.s2t, text)
}

func (c *OpenCCConverter) ToSimplified(text string) string {
	return convert(c.t2s, text)
}

func convert(cc *opencc.OpenCC, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	out, err := cc.Convert(text)
	if err != nil {
		log.Debugf("TextConv: convert %q: %v", text, err)
		return text
	}
	return out
}

// Identity 不做任何转换
type Identity struct{}

func (Identity) ToTraditional(text string) string { return text }
func (Identity) ToSimplified(text string) string  { return text }
