package device

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// MotionSensor is a HomeMatic motion detector.
type MotionSensor struct {
	base
}

func (m *MotionSensor) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	return m.endpoint("HomeMatic", "Motion sensor", []string{alexa.CategoryMotionSensor},
		alexa.NewInterface(alexa.NamespaceMotionSensor, "detectionState"),
	), nil
}

func (m *MotionSensor) ReportState(ctx context.Context) ([]alexa.Property, error) {
	motion, err := m.pts.getBool(ctx, RoleMotion)
	if err != nil {
		return nil, err
	}
	state := alexa.NotDetected
	if motion {
		state = alexa.Detected
	}
	health, err := m.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{
		m.property(alexa.NamespaceMotionSensor, "detectionState", state, 0),
		health,
	}, nil
}

// Doorbell is a HomeMatic push button wired as a doorbell. It has no
// retrievable state; presses are reported as DoorbellPress events.
type Doorbell struct {
	base
}

// IsPress reports whether a point change is a press of this doorbell.
func (d *Doorbell) IsPress(pointID string, value any) bool {
	if pointID != d.pts.id(RolePress) {
		return false
	}
	pressed, ok := toBool(value)
	return ok && pressed
}

func (d *Doorbell) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	source := alexa.NewInterface(alexa.NamespaceDoorbellEventSource)
	source.ProactivelyReported = true
	return d.endpoint("HomeMatic", "Doorbell", []string{alexa.CategoryDoorbell}, source), nil
}

func (d *Doorbell) ReportState(ctx context.Context) ([]alexa.Property, error) {
	health, err := d.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{health}, nil
}
