package palm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToHSVMatchesOpenCVScale(t *testing.T) {
	tests := []struct {
		name    string
		b, g, r uint8
		h, s, v uint8
	}{
		{name: "black", b: 0, g: 0, r: 0, h: 0, s: 0, v: 0},
		{name: "white", b: 255, g: 255, r: 255, h: 0, s: 0, v: 255},
		{name: "gray", b: 128, g: 128, r: 128, h: 0, s: 0, v: 128},
		{name: "red", b: 0, g: 0, r: 255, h: 0, s: 255, v: 255},
		{name: "yellow", b: 0, g: 255, r: 255, h: 30, s: 255, v: 255},
		{name: "green", b: 0, g: 255, r: 0, h: 60, s: 255, v: 255},
		{name: "blue", b: 255, g: 0, r: 0, h: 120, s: 255, v: 255},
		{name: "magenta", b: 255, g: 0, r: 255, h: 150, s: 255, v: 255},
		{name: "skin", b: 105, g: 172, r: 224, h: 17, s: 135, v: 224},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := ToHSV(tt.b, tt.g, tt.r)
			require.Equal(t, []uint8{tt.h, tt.s, tt.v}, []uint8{h, s, v})
		})
	}
}

func TestToHSVHueStaysInRange(t *testing.T) {
	for b := 0; b < 256; b += 15 {
		for g := 0; g < 256; g += 15 {
			for r := 0; r < 256; r += 15 {
				h, _, _ := ToHSV(uint8(b), uint8(g), uint8(r))
				require.Less(t, h, uint8(180), fmt.Sprintf("bgr=(%d,%d,%d)", b, g, r))
			}
		}
	}
}

func TestRoundDivRoundsHalfUp(t *testing.T) {
	require.Equal(t, 17, roundDiv(30*67, 119))
	require.Equal(t, 1, roundDiv(1, 2))
	require.Equal(t, 0, roundDiv(-1, 2))
	require.Equal(t, -1, roundDiv(-3, 4))
	require.Equal(t, -30, roundDiv(-30*255, 255))
}
