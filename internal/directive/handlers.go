package directive

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
)

// Color temperature bounds accepted from the cloud, in Kelvin. Adapters
// clamp further to what the lamp supports.
const (
	MinColorTemperature  = 1000
	MaxColorTemperature  = 10000
	colorTemperatureStep = 500
)

func (r *Router) handleReportState(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	return r.withContext(ctx, d, a, alexa.NewResponse(d, alexa.NamespaceAlexa, alexa.NameStateReport, nil))
}

func (r *Router) handleDiscovery(ctx context.Context, d *alexa.Directive) *alexa.Response {
	if d.Header.Name != NameDiscover {
		return invalidName(d)
	}
	return r.deps.Discovery.Compile(ctx, d)
}

type acceptGrantPayload struct {
	Grant struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"grant"`
	Grantee alexa.Scope `json:"grantee"`
}

func (r *Router) handleAuthorization(ctx context.Context, d *alexa.Directive) *alexa.Response {
	if d.Header.Name != NameAcceptGrant {
		return invalidName(d)
	}

	var p acceptGrantPayload
	if err := d.DecodePayload(&p); err != nil {
		return alexa.NewAcceptGrantError(d, "malformed AcceptGrant payload")
	}
	if p.Grant.Type != "OAuth2.AuthorizationCode" || p.Grant.Code == "" {
		return alexa.NewAcceptGrantError(d, "unsupported grant")
	}
	if _, err := r.deps.Tokens.VerifyAccessToken(p.Grantee.Token); err != nil {
		r.logger.Warn("AcceptGrant grantee token rejected", "error", err)
		return alexa.NewAcceptGrantError(d, "invalid grantee token")
	}
	if r.deps.Grants == nil {
		return alexa.NewAcceptGrantError(d, "")
	}
	if err := r.deps.Grants.AcceptGrant(ctx, p.Grant.Code); err != nil {
		r.logger.Error("AcceptGrant failed", "error", err)
		return alexa.NewAcceptGrantError(d, "")
	}

	r.logger.Info("account link accepted")
	return alexa.NewResponse(d, alexa.NamespaceAuthorization, alexa.NameAcceptGrantResponse, nil)
}

func (r *Router) handlePower(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	pc, ok := device.As[device.PowerController](a, alexa.NamespacePowerController)
	if !ok {
		return unsupported(d)
	}

	var on bool
	switch d.Header.Name {
	case NameTurnOn:
		on = true
	case NameTurnOff:
	default:
		return invalidName(d)
	}

	if err := pc.SetPower(ctx, on); err != nil {
		return r.fail(d, err)
	}
	state := alexa.PowerOff
	if on {
		state = alexa.PowerOn
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespacePowerController, "powerState", state))
}

func (r *Router) handleBrightness(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	bc, ok := device.As[device.BrightnessController](a, alexa.NamespaceBrightnessController)
	if !ok {
		return unsupported(d)
	}

	var p struct {
		Brightness      *float64 `json:"brightness"`
		BrightnessDelta *float64 `json:"brightnessDelta"`
	}
	if err := d.DecodePayload(&p); err != nil {
		return invalidPayload(d, err)
	}

	var target float64
	switch d.Header.Name {
	case NameSetBrightness:
		if p.Brightness == nil {
			return invalidPayload(d, errors.New("brightness is required"))
		}
		target = *p.Brightness
	case NameAdjustBrightness:
		if p.BrightnessDelta == nil {
			return invalidPayload(d, errors.New("brightnessDelta is required"))
		}
		current, err := bc.Brightness(ctx)
		if err != nil {
			return r.fail(d, err)
		}
		target = float64(current) + *p.BrightnessDelta
	default:
		return invalidName(d)
	}

	level := clampRound(target, 0, 100)
	if err := bc.SetBrightness(ctx, level); err != nil {
		return r.fail(d, err)
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespaceBrightnessController, "brightness", level))
}

func (r *Router) handlePercentage(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	pc, ok := device.As[device.PercentageController](a, alexa.NamespacePercentageController)
	if !ok {
		return unsupported(d)
	}

	var p struct {
		Percentage      *float64 `json:"percentage"`
		PercentageDelta *float64 `json:"percentageDelta"`
	}
	if err := d.DecodePayload(&p); err != nil {
		return invalidPayload(d, err)
	}

	var target float64
	switch d.Header.Name {
	case NameSetPercentage:
		if p.Percentage == nil {
			return invalidPayload(d, errors.New("percentage is required"))
		}
		target = *p.Percentage
	case NameAdjustPercentage:
		if p.PercentageDelta == nil {
			return invalidPayload(d, errors.New("percentageDelta is required"))
		}
		current, err := pc.Percentage(ctx)
		if err != nil {
			return r.fail(d, err)
		}
		target = float64(current) + *p.PercentageDelta
	default:
		return invalidName(d)
	}

	percent := clampRound(target, 0, 100)
	if err := pc.SetPercentage(ctx, percent); err != nil {
		return r.fail(d, err)
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespacePercentageController, "percentage", percent))
}

func (r *Router) handleRange(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	rc, ok := device.As[device.RangeController](a, alexa.NamespaceRangeController)
	if !ok {
		return unsupported(d)
	}

	rng, ok := findRange(rc.Ranges(), d.Header.Instance)
	if !ok {
		return alexa.NewErrorResponse(d, alexa.ErrInvalidValue, "unknown instance: "+d.Header.Instance)
	}

	var p struct {
		RangeValue      *float64 `json:"rangeValue"`
		RangeValueDelta *float64 `json:"rangeValueDelta"`
	}
	if err := d.DecodePayload(&p); err != nil {
		return invalidPayload(d, err)
	}

	var target float64
	switch d.Header.Name {
	case NameSetRangeValue:
		if p.RangeValue == nil {
			return invalidPayload(d, errors.New("rangeValue is required"))
		}
		target = *p.RangeValue
	case NameAdjustRangeValue:
		if p.RangeValueDelta == nil {
			return invalidPayload(d, errors.New("rangeValueDelta is required"))
		}
		current, err := rc.RangeValue(ctx, rng.Instance)
		if err != nil {
			return r.fail(d, err)
		}
		target = current + *p.RangeValueDelta
	default:
		return invalidName(d)
	}

	value := max(rng.Min, min(target, rng.Max))
	if err := rc.SetRangeValue(ctx, rng.Instance, value); err != nil {
		return r.fail(d, err)
	}
	set := r.commanded(alexa.NamespaceRangeController, "rangeValue", value)
	set.Instance = rng.Instance
	return r.respond(ctx, d, a, set)
}

// findRange picks the addressed instance. A directive without an instance
// addresses the device's only range, if it has exactly one.
func findRange(ranges []device.RangeSpec, instance string) (device.RangeSpec, bool) {
	if instance == "" && len(ranges) == 1 {
		return ranges[0], true
	}
	for _, r := range ranges {
		if r.Instance == instance {
			return r, true
		}
	}
	return device.RangeSpec{}, false
}

func (r *Router) handleThermostat(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	tc, ok := device.As[device.ThermostatController](a, alexa.NamespaceThermostatController)
	if !ok {
		return unsupported(d)
	}

	var p struct {
		TargetSetpoint      *alexa.Temperature `json:"targetSetpoint"`
		TargetSetpointDelta *alexa.Temperature `json:"targetSetpointDelta"`
	}
	if err := d.DecodePayload(&p); err != nil {
		return invalidPayload(d, err)
	}

	var target float64
	switch d.Header.Name {
	case NameSetTargetTemperature:
		if p.TargetSetpoint == nil {
			return invalidPayload(d, errors.New("targetSetpoint is required"))
		}
		c, err := toCelsius(*p.TargetSetpoint)
		if err != nil {
			return invalidPayload(d, err)
		}
		target = c
	case NameAdjustTargetTemperature:
		if p.TargetSetpointDelta == nil {
			return invalidPayload(d, errors.New("targetSetpointDelta is required"))
		}
		delta, err := deltaToCelsius(*p.TargetSetpointDelta)
		if err != nil {
			return invalidPayload(d, err)
		}
		current, err := tc.TargetSetpoint(ctx)
		if err != nil {
			return r.fail(d, err)
		}
		target = current + delta
	default:
		return invalidName(d)
	}

	lo, hi := tc.SetpointRange()
	setpoint := max(lo, min(target, hi))
	if err := tc.SetTargetSetpoint(ctx, setpoint); err != nil {
		return r.fail(d, err)
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespaceThermostatController, "targetSetpoint",
		alexa.Temperature{Value: setpoint, Scale: alexa.ScaleCelsius}))
}

func toCelsius(t alexa.Temperature) (float64, error) {
	switch t.Scale {
	case alexa.ScaleCelsius, "":
		return t.Value, nil
	case alexa.ScaleFahrenheit:
		return (t.Value - 32) * 5 / 9, nil
	case alexa.ScaleKelvin:
		return t.Value - 273.15, nil
	}
	return 0, fmt.Errorf("unknown temperature scale %q", t.Scale)
}

func deltaToCelsius(t alexa.Temperature) (float64, error) {
	switch t.Scale {
	case alexa.ScaleCelsius, alexa.ScaleKelvin, "":
		return t.Value, nil
	case alexa.ScaleFahrenheit:
		return t.Value * 5 / 9, nil
	}
	return 0, fmt.Errorf("unknown temperature scale %q", t.Scale)
}

func (r *Router) handleColor(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	cc, ok := device.As[device.ColorController](a, alexa.NamespaceColorController)
	if !ok {
		return unsupported(d)
	}
	if d.Header.Name != NameSetColor {
		return invalidName(d)
	}

	var p struct {
		Color *alexa.HSB `json:"color"`
	}
	if err := d.DecodePayload(&p); err != nil {
		return invalidPayload(d, err)
	}
	if p.Color == nil {
		return invalidPayload(d, errors.New("color is required"))
	}
	c := alexa.HSB{
		Hue:        max(0, min(p.Color.Hue, 360)),
		Saturation: max(0, min(p.Color.Saturation, 1)),
		Brightness: max(0, min(p.Color.Brightness, 1)),
	}

	if err := cc.SetColor(ctx, c); err != nil {
		return r.fail(d, err)
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespaceColorController, "color", c))
}

func (r *Router) handleColorTemperature(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	ct, ok := device.As[device.ColorTemperatureController](a, alexa.NamespaceColorTemperature)
	if !ok {
		return unsupported(d)
	}

	var target float64
	switch d.Header.Name {
	case NameSetColorTemperature:
		var p struct {
			Kelvin *float64 `json:"colorTemperatureInKelvin"`
		}
		if err := d.DecodePayload(&p); err != nil {
			return invalidPayload(d, err)
		}
		if p.Kelvin == nil {
			return invalidPayload(d, errors.New("colorTemperatureInKelvin is required"))
		}
		target = *p.Kelvin
	case NameIncreaseColorTemp, NameDecreaseColorTemp:
		current, err := ct.ColorTemperature(ctx)
		if err != nil {
			return r.fail(d, err)
		}
		step := colorTemperatureStep
		if d.Header.Name == NameDecreaseColorTemp {
			step = -step
		}
		target = float64(current + step)
	default:
		return invalidName(d)
	}

	kelvin := clampRound(target, MinColorTemperature, MaxColorTemperature)
	if err := ct.SetColorTemperature(ctx, kelvin); err != nil {
		return r.fail(d, err)
	}
	return r.respond(ctx, d, a, r.commanded(alexa.NamespaceColorTemperature, "colorTemperatureInKelvin", kelvin))
}

// clampRound bounds f in floating point before rounding, so values far
// outside the int range still land on lo or hi.
func clampRound(f float64, lo, hi int) int {
	return int(math.Round(max(float64(lo), min(f, float64(hi)))))
}
