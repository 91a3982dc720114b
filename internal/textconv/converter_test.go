package textconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConverter(t *testing.T) {
	c := Default()

	assert.Equal(t, "葬送的芙莉蓮", c.ToTraditional("葬送的芙莉莲"))
	assert.Equal(t, "葬送的芙莉莲", c.ToSimplified("葬送的芙莉蓮"))
	assert.Equal(t, "進擊的巨人", c.ToTraditional("进击的巨人"))
	assert.Equal(t, "间谍过家家", c.ToSimplified("間諜過家家"))

	// 非中文原样返回
	assert.Equal(t, "Frieren", c.ToTraditional("Frieren"))
	assert.Equal(t, "", c.ToSimplified(""))
}

func TestDefaultConverter_Phrases(t *testing.T) {
	c := Default()

	tests := []struct {
		simplified  string
		traditional string
	}{
		{"关于我转生变成史莱姆这档事", "關於我轉生變成史萊姆這檔事"},
		{"转生变成史莱姆", "轉生變成史萊姆"},
		{"鬼灭之刃", "鬼滅之刃"},
	}
	for _, tt := range tests {
		t.Run(tt.simplified, func(t *testing.T) {
			assert.Equal(t, tt.traditional, c.ToTraditional(tt.simplified))
			assert.Equal(t, tt.simplified, c.ToSimplified(tt.traditional))
		})
	}
}

func TestIdentity(t *testing.T) {
	var c Converter = Identity{}
	assert.Equal(t, "进击", c.ToTraditional("进击"))
	assert.Equal(t, "進擊", c.ToSimplified("進擊"))
}
