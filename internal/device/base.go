package device

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

// base carries what every family shares: identity, the catalog entry and
// point access.
type base struct {
	endpointID string
	desc       Descriptor
	pts        points
}

func newBase(desc Descriptor, store pointstore.Store) base {
	return base{
		endpointID: alexa.EndpointID(desc.Family, desc.SourceID),
		desc:       desc,
		pts:        newPoints(store, desc),
	}
}

func (b *base) EndpointID() string   { return b.endpointID }
func (b *base) FriendlyName() string { return b.desc.Name }
func (b *base) Family() string       { return b.desc.Family }
func (b *base) Points() []string     { return b.pts.all() }

// endpoint builds the discovery document skeleton: identity, defaults for
// manufacturer and description, the base Alexa interface first and
// EndpointHealth last.
func (b *base) endpoint(manufacturer, model string, categories []string, caps ...alexa.Capability) alexa.DiscoveryEndpoint {
	if b.desc.Manufacturer != "" {
		manufacturer = b.desc.Manufacturer
	}
	if b.desc.Model != "" {
		model = b.desc.Model
	}
	if len(b.desc.Categories) > 0 {
		categories = b.desc.Categories
	}
	description := b.desc.Description
	if description == "" {
		description = manufacturer + " - " + b.desc.SourceID
	}

	all := make([]alexa.Capability, 0, len(caps)+2)
	all = append(all, alexa.BaseInterface())
	all = append(all, caps...)
	all = append(all, alexa.NewInterface(alexa.NamespaceEndpointHealth, "connectivity"))

	return alexa.DiscoveryEndpoint{
		EndpointID:        b.endpointID,
		ManufacturerName:  manufacturer,
		ModelName:         model,
		Description:       description,
		FriendlyName:      b.desc.Name,
		DisplayCategories: append([]string(nil), categories...),
		Capabilities:      all,
	}
}

// property stamps a property with the current time and an uncertainty.
func (b *base) property(namespace, name string, value any, uncertaintyMS int) alexa.Property {
	p := alexa.NewProperty(namespace, name, value, b.pts.now())
	p.UncertaintyInMilliseconds = uncertaintyMS
	return p
}

func (b *base) healthProperty(ctx context.Context) (alexa.Property, error) {
	ok, err := b.pts.reachable(ctx)
	if err != nil {
		return alexa.Property{}, err
	}
	return alexa.HealthProperty(ok, b.pts.now()), nil
}

// New builds the adapter for a catalog entry.
func New(desc Descriptor, store pointstore.Store) (Adapter, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	switch desc.Family {
	case FamilyHueLight:
		return &HueLight{base: newBase(desc, store)}, nil
	case FamilyDimmer:
		return &Dimmer{base: newBase(desc, store)}, nil
	case FamilyPlug:
		return &Plug{base: newBase(desc, store)}, nil
	case FamilyBlind:
		return &Blind{base: newBase(desc, store)}, nil
	case FamilyThermostat:
		return &Thermostat{base: newBase(desc, store)}, nil
	case FamilyTempSensor:
		return &TemperatureSensor{base: newBase(desc, store)}, nil
	case FamilyMotion:
		return &MotionSensor{base: newBase(desc, store)}, nil
	case FamilyDoorbell:
		return &Doorbell{base: newBase(desc, store)}, nil
	case FamilyCamera:
		return &Camera{base: newBase(desc, store)}, nil
	}
	return nil, ErrUnknownFamily
}
