package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorForIsPure(t *testing.T) {
	// 同一个用户名多次调用必须得到同一个颜色
	first := ColorFor("alice")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ColorFor("alice"))
	}
}

func TestColorForKnownValue(t *testing.T) {
	// 与前端 stringToColor 的输出保持一致 (int32 折叠哈希取低 24 位)
	assert.Equal(t, "#899680", ColorFor("alice"))
}

func TestColorForFormat(t *testing.T) {
	for _, name := range []string{"a", "bob", "سلام", "日本語ユーザー", "user-with-a-rather-long-name"} {
		c := ColorFor(name)
		assert.Len(t, c, 7, "expected #RRGGBB for %q", name)
		assert.Equal(t, byte('#'), c[0])
		for i := 1; i < 7; i++ {
			assert.Contains(t, "0123456789ABCDEF", string(c[i]))
		}
	}
}

func TestColorForDistinguishesUsers(t *testing.T) {
	assert.NotEqual(t, ColorFor("alice"), ColorFor("bob"))
}
