package device

import (
	"context"
	"math"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Accepted HmIP setpoint bounds in °C.
const (
	MinSetpointC = 7.0
	MaxSetpointC = 30.0
)

// Thermostat is a HomeMatic radiator thermostat or wall thermostat.
type Thermostat struct {
	base
}

func (t *Thermostat) SetpointRange() (minC, maxC float64) {
	return MinSetpointC, MaxSetpointC
}

func (t *Thermostat) TargetSetpoint(ctx context.Context) (float64, error) {
	return t.pts.getFloat(ctx, RoleSetPoint)
}

// SetTargetSetpoint writes the setpoint rounded to half a degree, which is
// the device's resolution.
func (t *Thermostat) SetTargetSetpoint(ctx context.Context, celsius float64) error {
	c := math.Round(max(MinSetpointC, min(celsius, MaxSetpointC))*2) / 2
	return t.pts.set(ctx, RoleSetPoint, c)
}

func (t *Thermostat) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	thermostat := alexa.NewInterface(alexa.NamespaceThermostatController, "targetSetpoint")
	thermostat.Configuration = map[string]any{"supportsScheduling": false}

	return t.endpoint("HomeMatic", "Thermostat",
		[]string{alexa.CategoryThermostat, alexa.CategoryTemperature},
		alexa.NewInterface(alexa.NamespaceTemperatureSensor, "temperature"),
		thermostat,
	), nil
}

func (t *Thermostat) ReportState(ctx context.Context) ([]alexa.Property, error) {
	actual, err := t.pts.getFloat(ctx, RoleActualTemperature)
	if err != nil {
		return nil, err
	}
	target, err := t.TargetSetpoint(ctx)
	if err != nil {
		return nil, err
	}
	health, err := t.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{
		t.property(alexa.NamespaceTemperatureSensor, "temperature", celsius(actual), 1000),
		t.property(alexa.NamespaceThermostatController, "targetSetpoint", celsius(target), 500),
		health,
	}, nil
}

// TemperatureSensor is a read-only temperature sensor.
type TemperatureSensor struct {
	base
}

func (s *TemperatureSensor) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	return s.endpoint("HomeMatic", "Temperature sensor", []string{alexa.CategoryTemperature},
		alexa.NewInterface(alexa.NamespaceTemperatureSensor, "temperature"),
	), nil
}

func (s *TemperatureSensor) ReportState(ctx context.Context) ([]alexa.Property, error) {
	actual, err := s.pts.getFloat(ctx, RoleActualTemperature)
	if err != nil {
		return nil, err
	}
	health, err := s.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{
		s.property(alexa.NamespaceTemperatureSensor, "temperature", celsius(actual), 1000),
		health,
	}, nil
}

func celsius(v float64) alexa.Temperature {
	return alexa.Temperature{Value: v, Scale: alexa.ScaleCelsius}
}
