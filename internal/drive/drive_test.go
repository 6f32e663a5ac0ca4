package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

const eps = 1e-9

func TestFromGamepad(t *testing.T) {
	tests := []struct {
		name string
		pad  Gamepad
		want WheelPowers
	}{
		{
			name: "centered",
			pad:  Gamepad{},
			want: Stopped,
		},
		{
			name: "full forward",
			pad:  Gamepad{LeftStickY: -1},
			want: WheelPowers{
				Major1: math.Sin(3 * math.Pi / 4), Minor1: math.Cos(3 * math.Pi / 4),
				Minor2: math.Cos(3 * math.Pi / 4), Major2: math.Sin(3 * math.Pi / 4),
			},
		},
		{
			name: "strafe right",
			pad:  Gamepad{LeftStickX: 1},
			want: WheelPowers{
				Major1: math.Sin(math.Pi / 4), Minor1: math.Cos(math.Pi / 4),
				Minor2: math.Cos(math.Pi / 4), Major2: math.Sin(math.Pi / 4),
			},
		},
		{
			name: "turn in place",
			pad:  Gamepad{RightStickX: 0.5},
			want: WheelPowers{Major1: -0.125, Minor1: -0.125, Minor2: 0.125, Major2: 0.125},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromGamepad(tt.pad)
			assert.InDelta(t, tt.want.Major1, got.Major1, eps, "major1")
			assert.InDelta(t, tt.want.Minor1, got.Minor1, eps, "minor1")
			assert.InDelta(t, tt.want.Minor2, got.Minor2, eps, "minor2")
			assert.InDelta(t, tt.want.Major2, got.Major2, eps, "major2")
		})
	}
}

func TestFromGamepad_DiagonalVelocityCapped(t *testing.T) {
	got := FromGamepad(Gamepad{LeftStickX: 1, LeftStickY: -1})
	// 45° at full speed: the major diagonal carries everything.
	assert.InDelta(t, 1.0, got.Major1, eps)
	assert.InDelta(t, 0.0, got.Minor1, eps)
	for _, p := range []float64{got.Major1, got.Minor1, got.Minor2, got.Major2} {
		assert.LessOrEqual(t, math.Abs(p), 1.0+eps)
	}
}

func TestGamepadFrom_MissingKeysReadZero(t *testing.T) {
	g := GamepadFrom(input.Controls{KeyLeftStickX: 0.5, KeyRightStickX: "oops"})
	assert.Equal(t, Gamepad{LeftStickX: 0.5}, g)

	round := GamepadFrom(input.NormalizeControls(Gamepad{LeftStickX: 0.1, LeftStickY: -0.2, RightStickX: 0.3}.Controls()))
	assert.Equal(t, Gamepad{LeftStickX: 0.1, LeftStickY: -0.2, RightStickX: 0.3}, round)
}

func TestActuator_AppliesAndReleases(t *testing.T) {
	var buf bytes.Buffer
	a := NewActuator(NewWriterSink(&buf))

	require.NoError(t, a.ApplyControls(context.Background(), input.Controls{KeyLeftStickY: -1.0}))
	require.NoError(t, a.Release())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, last WheelPowers
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.InDelta(t, math.Sin(3*math.Pi/4), first.Major1, eps)
	assert.Equal(t, Stopped, last)
}

func TestScaledFromGamepad(t *testing.T) {
	pad := Gamepad{LeftStickY: -1, RightStickX: 0.5}
	full := FromGamepad(pad)
	half := ScaledFromGamepad(pad, 0.5)

	rotation := -math.Pow(0.5, 3)
	assert.InDelta(t, (full.Major1-rotation)/2, half.Major1-rotation, eps)
	assert.InDelta(t, (full.Minor2+rotation)/2, half.Minor2+rotation, eps)
	assert.Equal(t, full, ScaledFromGamepad(pad, 1))
}

func TestActuator_VelocityScale(t *testing.T) {
	var buf bytes.Buffer
	a, err := NewActuator(NewWriterSink(&buf)).WithVelocityScale(0.25)
	require.NoError(t, err)

	require.NoError(t, a.ApplyControls(context.Background(), input.Controls{KeyLeftStickY: -1.0}))
	var got WheelPowers
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.InDelta(t, 0.25*math.Sin(3*math.Pi/4), got.Major1, eps)

	for _, bad := range []float64{0, -0.5, 1.01, math.NaN()} {
		_, err := NewActuator(NewWriterSink(&buf)).WithVelocityScale(bad)
		assert.Error(t, err, "scale %v", bad)
	}
}
