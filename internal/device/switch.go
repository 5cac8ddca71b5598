package device

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Plug is a HomeMatic switch actuator (HmIP-PSM and friends).
type Plug struct {
	base
}

func (p *Plug) SetPower(ctx context.Context, on bool) error {
	return p.pts.set(ctx, RoleState, on)
}

func (p *Plug) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	return p.endpoint("HomeMatic", "Switch actuator", []string{alexa.CategorySmartPlug},
		alexa.NewInterface(alexa.NamespacePowerController, "powerState"),
	), nil
}

func (p *Plug) ReportState(ctx context.Context) ([]alexa.Property, error) {
	on, err := p.pts.getBool(ctx, RoleState)
	if err != nil {
		return nil, err
	}
	health, err := p.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{
		p.property(alexa.NamespacePowerController, "powerState", powerState(on), 500),
		health,
	}, nil
}

// BlindLift is the range instance of a blind actuator.
const BlindLift = "Blind.Lift"

// Blind is a HomeMatic blind actuator (HmIP-FROLL). LEVEL 0 is closed,
// 100 fully open.
type Blind struct {
	base
}

var blindRange = RangeSpec{
	Instance:  BlindLift,
	Min:       0,
	Max:       100,
	Precision: 10,
	Unit:      "Alexa.Unit.Percent",
}

func (b *Blind) Ranges() []RangeSpec {
	return []RangeSpec{blindRange}
}

func (b *Blind) RangeValue(ctx context.Context, instance string) (float64, error) {
	if instance != BlindLift {
		return 0, ErrUnknownInstance
	}
	return b.pts.getFloat(ctx, RoleLevel)
}

func (b *Blind) SetRangeValue(ctx context.Context, instance string, value float64) error {
	if instance != BlindLift {
		return ErrUnknownInstance
	}
	return b.pts.set(ctx, RoleLevel, clampInt(roundInt(value), 0, 100))
}

func (b *Blind) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	lift := alexa.NewInterface(alexa.NamespaceRangeController, "rangeValue")
	lift.Instance = BlindLift
	lift.CapabilityResources = &alexa.CapabilityResources{
		FriendlyNames: []alexa.FriendlyName{alexa.AssetName("Alexa.Setting.Opening")},
	}
	lift.Configuration = alexa.RangeConfiguration{
		SupportedRange: alexa.SupportedRange{
			MinimumValue: blindRange.Min,
			MaximumValue: blindRange.Max,
			Precision:    blindRange.Precision,
		},
		UnitOfMeasure: blindRange.Unit,
	}
	closed := 0.0
	lift.Semantics = &alexa.Semantics{
		ActionMappings: []alexa.ActionMapping{
			rangeAction("Alexa.Actions.Close", "SetRangeValue", map[string]any{"rangeValue": 0}),
			rangeAction("Alexa.Actions.Open", "SetRangeValue", map[string]any{"rangeValue": 100}),
			rangeAction("Alexa.Actions.Lower", "AdjustRangeValue", map[string]any{"rangeValueDelta": -10, "rangeValueDeltaDefault": false}),
			rangeAction("Alexa.Actions.Raise", "AdjustRangeValue", map[string]any{"rangeValueDelta": 10, "rangeValueDeltaDefault": false}),
		},
		StateMappings: []alexa.StateMapping{
			{Type: "StatesToValue", States: []string{"Alexa.States.Closed"}, Value: &closed},
			{Type: "StatesToRange", States: []string{"Alexa.States.Open"}, Range: &alexa.StateRange{MinimumValue: 1, MaximumValue: 100}},
		},
	}

	return b.endpoint("HomeMatic", "Blind actuator", []string{alexa.CategoryExteriorBlind}, lift), nil
}

func rangeAction(action, directive string, payload map[string]any) alexa.ActionMapping {
	return alexa.ActionMapping{
		Type:      "ActionsToDirective",
		Actions:   []string{action},
		Directive: alexa.MappedDirective{Name: directive, Payload: payload},
	}
}

func (b *Blind) ReportState(ctx context.Context) ([]alexa.Property, error) {
	level, err := b.pts.getFloat(ctx, RoleLevel)
	if err != nil {
		return nil, err
	}
	health, err := b.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	lift := b.property(alexa.NamespaceRangeController, "rangeValue", level, 500)
	lift.Instance = BlindLift
	return []alexa.Property{lift, health}, nil
}
