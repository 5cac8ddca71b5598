package device

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Adapter is the contract every registered device satisfies.
type Adapter interface {
	// EndpointID is the normalized protocol endpoint identifier.
	EndpointID() string

	// FriendlyName is the name users speak.
	FriendlyName() string

	// Family names the device family ("hue-light", "blind", ...).
	Family() string

	// Points lists every point ID the device reads. A change on any of them
	// may change the device's state report.
	Points() []string

	// Describe builds the discovery document for the device.
	Describe(ctx context.Context) (alexa.DiscoveryEndpoint, error)

	// ReportState reads current state and returns it as context properties.
	ReportState(ctx context.Context) ([]alexa.Property, error)
}

// PowerController switches a device on and off.
type PowerController interface {
	SetPower(ctx context.Context, on bool) error
}

// BrightnessController reads and sets brightness in percent.
type BrightnessController interface {
	Brightness(ctx context.Context) (int, error)
	SetBrightness(ctx context.Context, percent int) error
}

// PercentageController reads and sets a generic percentage.
type PercentageController interface {
	Percentage(ctx context.Context) (int, error)
	SetPercentage(ctx context.Context, percent int) error
}

// RangeSpec declares one RangeController instance.
type RangeSpec struct {
	Instance  string
	Min       float64
	Max       float64
	Precision float64
	Unit      string
}

// RangeController reads and sets values of named range instances.
type RangeController interface {
	Ranges() []RangeSpec
	RangeValue(ctx context.Context, instance string) (float64, error)
	SetRangeValue(ctx context.Context, instance string, value float64) error
}

// ThermostatController reads and sets the target temperature in °C.
type ThermostatController interface {
	// SetpointRange returns the accepted setpoint bounds in °C.
	SetpointRange() (minC, maxC float64)
	TargetSetpoint(ctx context.Context) (float64, error)
	SetTargetSetpoint(ctx context.Context, celsius float64) error
}

// ColorController sets hue and saturation.
type ColorController interface {
	SetColor(ctx context.Context, color alexa.HSB) error
}

// ColorTemperatureController reads and sets white temperature in Kelvin.
type ColorTemperatureController interface {
	ColorTemperature(ctx context.Context) (int, error)
	SetColorTemperature(ctx context.Context, kelvin int) error
}

// CameraStreamer exposes a camera's upstream stream and still image URLs.
type CameraStreamer interface {
	StreamSource() string
	SnapshotSource() string
	StreamConfiguration() alexa.CameraStreamConfiguration
}

// DoorbellEventSource recognises doorbell presses among point changes.
type DoorbellEventSource interface {
	IsPress(pointID string, value any) bool
}

// InterfaceSupport lets an adapter decline an interface its Go type
// implements but the physical device lacks.
type InterfaceSupport interface {
	Supports(namespace string) bool
}

// As returns adapter a as capability T if it implements T and does not
// decline namespace through InterfaceSupport.
//
//	power, ok := device.As[device.PowerController](a, alexa.NamespacePowerController)
func As[T any](a Adapter, namespace string) (T, bool) {
	c, ok := a.(T)
	if !ok {
		return c, false
	}
	if s, ok := a.(InterfaceSupport); ok && !s.Supports(namespace) {
		var zero T
		return zero, false
	}
	return c, true
}
