package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrameSizeVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		eye  int
		brg  int
		tmp  int
	}{
		{"slash", "54/19/145", 54, 19, 145},
		{"dash", "54-19-145", 54, 19, 145},
		{"box glyph", "54□19 145", 54, 19, 145},
		{"spaces", "54 19 145", 54, 19, 145},
		{"no temple", "54/19", 54, 19, 0},
		{"box no temple", "52□21", 52, 21, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := ParseFrameSize(tt.raw)
			assert.Equal(t, tt.eye, size.Eye)
			assert.Equal(t, tt.brg, size.Bridge)
			assert.Equal(t, tt.tmp, size.Temple)
			assert.Equal(t, tt.raw, size.Raw)
		})
	}
}

func TestParseFrameSizeImplausibleKeepsRawOnly(t *testing.T) {
	size := ParseFrameSize("12345")
	assert.Zero(t, size.Eye)
	assert.Equal(t, "12345", size.Raw)

	// 99 is not a plausible eye size.
	size = ParseFrameSize("99/99")
	assert.Zero(t, size.Eye)
}

func TestParseFrameSizeEmpty(t *testing.T) {
	size := ParseFrameSize("")
	assert.True(t, size.IsZero())
	assert.Empty(t, size.String())
}

func TestFrameSizeStringNormalizes(t *testing.T) {
	assert.Equal(t, "54/19/145", ParseFrameSize("54-19-145").String())
	assert.Equal(t, "54/19", ParseFrameSize("54□19").String())
}

func TestMakeFrameSize(t *testing.T) {
	size := MakeFrameSize(52, 18, 140)
	assert.Equal(t, "52/18/140", size.String())
	assert.Equal(t, "52/18/140", size.Raw)
}
