// Package drive turns replayed gamepad controls into mecanum wheel powers.
package drive

import (
	"math"

	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// Control keys read from a sample.
const (
	KeyLeftStickX  = "left_stick_x"
	KeyLeftStickY  = "left_stick_y"
	KeyRightStickX = "right_stick_x"
)

// Gamepad holds the stick axes that drive the robot, each in [-1, 1].
// Stick Y axes read negative when pushed forward.
type Gamepad struct {
	LeftStickX  float64 `json:"left_stick_x"`
	LeftStickY  float64 `json:"left_stick_y"`
	RightStickX float64 `json:"right_stick_x"`
}

// GamepadFrom reads stick axes from controls. Missing or non-numeric
// values read as 0.
func GamepadFrom(c input.Controls) Gamepad {
	return Gamepad{
		LeftStickX:  c.Float(KeyLeftStickX),
		LeftStickY:  c.Float(KeyLeftStickY),
		RightStickX: c.Float(KeyRightStickX),
	}
}

// Controls converts g back into a controls snapshot.
func (g Gamepad) Controls() map[string]any {
	return map[string]any{
		KeyLeftStickX:  g.LeftStickX,
		KeyLeftStickY:  g.LeftStickY,
		KeyRightStickX: g.RightStickX,
	}
}

// WheelPowers are the four motor powers of a mecanum drivetrain. The major
// diagonal runs front-left to back-right.
type WheelPowers struct {
	Major1 float64 `json:"major1"`
	Minor1 float64 `json:"minor1"`
	Minor2 float64 `json:"minor2"`
	Major2 float64 `json:"major2"`
}

// Stopped is all motors at zero power.
var Stopped = WheelPowers{}

// Mecanum computes wheel powers for translating at angle (radians,
// counter-clockwise from the robot's right) with velocity in [0, 1] while
// turning at rotation.
func Mecanum(angle, velocity, rotation float64) WheelPowers {
	major := velocity * math.Sin(angle+math.Pi/4)
	minor := velocity * math.Cos(angle+math.Pi/4)
	return WheelPowers{
		Major1: major + rotation,
		Minor1: minor + rotation,
		Minor2: minor - rotation,
		Major2: major - rotation,
	}
}

// FromGamepad maps stick positions to wheel powers. The left stick
// translates, capped at full speed on the diagonals; the right stick
// turns, cubed for finer control near center.
func FromGamepad(g Gamepad) WheelPowers {
	return ScaledFromGamepad(g, 1)
}

// ScaledFromGamepad is FromGamepad with translation speed multiplied by
// scale, so a full stick deflection reaches scale instead of 1. Rotation
// is not scaled.
func ScaledFromGamepad(g Gamepad, scale float64) WheelPowers {
	x := g.LeftStickX
	y := -g.LeftStickY

	velocity := scale * math.Min(1, math.Hypot(x, y))
	angle := math.Atan2(y, x)
	if math.IsNaN(angle) {
		angle = 0
	}
	rotation := -math.Pow(g.RightStickX, 3)
	return Mecanum(angle, velocity, rotation)
}
