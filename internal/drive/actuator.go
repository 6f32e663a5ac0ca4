package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// MotorSink receives wheel powers, e.g. a motor controller bus.
type MotorSink interface {
	SetPowers(ctx context.Context, p WheelPowers) error
}

// Actuator applies replayed controls to a mecanum drivetrain. On Release
// it stops every motor.
type Actuator struct {
	sink  MotorSink
	scale float64
}

// NewActuator creates an Actuator driving sink at full speed.
func NewActuator(sink MotorSink) *Actuator {
	return &Actuator{sink: sink, scale: 1}
}

// WithVelocityScale caps translation speed at scale, in (0, 1].
func (a *Actuator) WithVelocityScale(scale float64) (*Actuator, error) {
	if scale <= 0 || scale > 1 || math.IsNaN(scale) {
		return nil, fmt.Errorf("velocity scale %v must be in (0, 1]", scale)
	}
	a.scale = scale
	return a, nil
}

// ApplyControls drives the wheels from one controls snapshot.
func (a *Actuator) ApplyControls(ctx context.Context, c input.Controls) error {
	return a.sink.SetPowers(ctx, ScaledFromGamepad(GamepadFrom(c), a.scale))
}

// Release stops all motors.
func (a *Actuator) Release() error {
	if err := a.sink.SetPowers(context.Background(), Stopped); err != nil {
		return fmt.Errorf("stopping motors: %w", err)
	}
	return nil
}

// WriterSink writes each power update to w as newline-delimited JSON.
// Thread-safe for concurrent use.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) SetPowers(_ context.Context, p WheelPowers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(p)
}
