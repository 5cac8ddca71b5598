package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Optional Hue features.
const (
	FeatureColor            = "color"
	FeatureColorTemperature = "color_temperature"
)

// Hue white range in Kelvin.
const (
	hueMinKelvin = 2000
	hueMaxKelvin = 6500
)

// HueLight is a Philips Hue lamp bridged by the hue adapter. Brightness is
// stored as 0..254, color as an "h,s,v" string with s and v in 0..100.
type HueLight struct {
	base
}

// Supports declines color interfaces the catalog entry disables.
func (l *HueLight) Supports(namespace string) bool {
	switch namespace {
	case alexa.NamespaceColorController:
		return l.desc.hasFeature(FeatureColor)
	case alexa.NamespaceColorTemperature:
		return l.desc.hasFeature(FeatureColorTemperature)
	}
	return true
}

func (l *HueLight) SetPower(ctx context.Context, on bool) error {
	return l.pts.set(ctx, RoleOn, on)
}

func (l *HueLight) Brightness(ctx context.Context) (int, error) {
	raw, err := l.pts.getFloat(ctx, RoleBrightness)
	if err != nil {
		return 0, err
	}
	return clampInt(roundInt(raw/2.54), 0, 100), nil
}

func (l *HueLight) SetBrightness(ctx context.Context, percent int) error {
	return l.pts.set(ctx, RoleBrightness, clampInt(roundInt(float64(percent)*2.54), 0, 254))
}

func (l *HueLight) color(ctx context.Context) (alexa.HSB, error) {
	v, err := l.pts.get(ctx, RoleHSV)
	if err != nil {
		return alexa.HSB{}, err
	}
	h, s, b, ok := parseHSV(fmt.Sprint(v))
	if !ok {
		return alexa.HSB{}, fmt.Errorf("%w: %s = %v", ErrInvalidPointValue, l.pts.id(RoleHSV), v)
	}
	return alexa.HSB{Hue: h, Saturation: s / 100, Brightness: b / 100}, nil
}

// SetColor writes hue and saturation and keeps the lamp's current
// brightness; the brightness in a SetColor directive is ignored.
func (l *HueLight) SetColor(ctx context.Context, c alexa.HSB) error {
	brightness := roundInt(c.Brightness * 100)
	if current, err := l.color(ctx); err == nil {
		brightness = roundInt(current.Brightness * 100)
	} else if !errors.Is(err, ErrPointMissing) {
		return err
	}

	hue := max(0, min(c.Hue, 360))
	sat := clampInt(roundInt(c.Saturation*100), 0, 100)
	return l.pts.set(ctx, RoleHSV, fmt.Sprintf("%s,%d,%d",
		strconv.FormatFloat(hue, 'f', -1, 64), sat, clampInt(brightness, 0, 100)))
}

func (l *HueLight) ColorTemperature(ctx context.Context) (int, error) {
	k, err := l.pts.getFloat(ctx, RoleColorTemperature)
	if err != nil {
		return 0, err
	}
	return roundInt(k), nil
}

func (l *HueLight) SetColorTemperature(ctx context.Context, kelvin int) error {
	return l.pts.set(ctx, RoleColorTemperature, clampInt(kelvin, hueMinKelvin, hueMaxKelvin))
}

func (l *HueLight) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	caps := []alexa.Capability{
		alexa.NewInterface(alexa.NamespacePowerController, "powerState"),
		alexa.NewInterface(alexa.NamespaceBrightnessController, "brightness"),
	}
	if l.Supports(alexa.NamespaceColorController) {
		caps = append(caps, alexa.NewInterface(alexa.NamespaceColorController, "color"))
	}
	if l.Supports(alexa.NamespaceColorTemperature) {
		caps = append(caps, alexa.NewInterface(alexa.NamespaceColorTemperature, "colorTemperatureInKelvin"))
	}
	return l.endpoint("Philips Hue", "Hue lamp", []string{alexa.CategoryLight}, caps...), nil
}

func (l *HueLight) ReportState(ctx context.Context) ([]alexa.Property, error) {
	on, err := l.pts.getBool(ctx, RoleOn)
	if err != nil {
		return nil, err
	}
	props := []alexa.Property{
		l.property(alexa.NamespacePowerController, "powerState", powerState(on), 500),
	}

	bri, err := l.Brightness(ctx)
	switch {
	case err == nil:
		props = append(props, l.property(alexa.NamespaceBrightnessController, "brightness", bri, 1000))
	case !errors.Is(err, ErrPointMissing):
		return nil, err
	}

	if l.Supports(alexa.NamespaceColorController) {
		c, err := l.color(ctx)
		switch {
		case err == nil:
			props = append(props, l.property(alexa.NamespaceColorController, "color", c, 500))
		case !errors.Is(err, ErrPointMissing):
			return nil, err
		}
	}
	if l.Supports(alexa.NamespaceColorTemperature) {
		k, err := l.ColorTemperature(ctx)
		switch {
		case err == nil:
			props = append(props, l.property(alexa.NamespaceColorTemperature, "colorTemperatureInKelvin", k, 1000))
		case !errors.Is(err, ErrPointMissing):
			return nil, err
		}
	}

	health, err := l.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return append(props, health), nil
}

func parseHSV(s string) (h, sat, b float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var vals [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, false
		}
		vals[i] = f
	}
	return max(0, min(vals[0], 360)), vals[1], vals[2], true
}

// Dimmer is a HomeMatic dimming actuator with a single 0..100 LEVEL.
type Dimmer struct {
	base
}

func (d *Dimmer) SetPower(ctx context.Context, on bool) error {
	level := 0
	if on {
		level = 100
	}
	return d.pts.set(ctx, RoleLevel, level)
}

func (d *Dimmer) level(ctx context.Context) (int, error) {
	v, err := d.pts.getFloat(ctx, RoleLevel)
	if err != nil {
		return 0, err
	}
	return clampInt(roundInt(v), 0, 100), nil
}

func (d *Dimmer) Brightness(ctx context.Context) (int, error) { return d.level(ctx) }
func (d *Dimmer) Percentage(ctx context.Context) (int, error) { return d.level(ctx) }

func (d *Dimmer) SetBrightness(ctx context.Context, percent int) error {
	return d.pts.set(ctx, RoleLevel, clampInt(percent, 0, 100))
}

func (d *Dimmer) SetPercentage(ctx context.Context, percent int) error {
	return d.SetBrightness(ctx, percent)
}

func (d *Dimmer) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	return d.endpoint("HomeMatic", "Dimmer", []string{alexa.CategoryLight},
		alexa.NewInterface(alexa.NamespacePowerController, "powerState"),
		alexa.NewInterface(alexa.NamespaceBrightnessController, "brightness"),
		alexa.NewInterface(alexa.NamespacePercentageController, "percentage"),
	), nil
}

func (d *Dimmer) ReportState(ctx context.Context) ([]alexa.Property, error) {
	level, err := d.level(ctx)
	if err != nil {
		return nil, err
	}
	health, err := d.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{
		d.property(alexa.NamespacePowerController, "powerState", powerState(level > 0), 500),
		d.property(alexa.NamespaceBrightnessController, "brightness", level, 500),
		d.property(alexa.NamespacePercentageController, "percentage", level, 500),
		health,
	}, nil
}

func powerState(on bool) string {
	if on {
		return alexa.PowerOn
	}
	return alexa.PowerOff
}
