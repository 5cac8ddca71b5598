package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

// Point roles. A family maps each role it uses to a suffix appended to the
// source ID.
const (
	RoleOn                = "on"
	RoleBrightness        = "brightness"
	RoleHSV               = "hsv"
	RoleColorTemperature  = "color_temperature"
	RoleState             = "state"
	RoleLevel             = "level"
	RoleSetPoint          = "set_point"
	RoleActualTemperature = "actual_temperature"
	RoleUnreach           = "unreach"
	RoleMotion            = "motion"
	RolePress             = "press"
)

// familyDefaults maps family → role → point suffix.
var familyDefaults = map[string]map[string]string{
	FamilyHueLight: {
		RoleOn:               ".action.on",
		RoleBrightness:       ".action.brightness",
		RoleHSV:              ".action.hsv",
		RoleColorTemperature: ".action.colorTemperature",
	},
	FamilyDimmer: {
		RoleLevel:   ".1.LEVEL",
		RoleUnreach: ".0.UNREACH",
	},
	FamilyPlug: {
		RoleState:   ".3.STATE",
		RoleUnreach: ".0.UNREACH",
	},
	FamilyBlind: {
		RoleLevel:   ".4.LEVEL",
		RoleUnreach: ".0.UNREACH",
	},
	FamilyThermostat: {
		RoleSetPoint:          ".1.SET_POINT_TEMPERATURE",
		RoleActualTemperature: ".1.ACTUAL_TEMPERATURE",
		RoleUnreach:           ".0.UNREACH",
	},
	FamilyTempSensor: {
		RoleActualTemperature: ".1.ACTUAL_TEMPERATURE",
		RoleUnreach:           ".0.UNREACH",
	},
	FamilyMotion: {
		RoleMotion:  ".1.MOTION",
		RoleUnreach: ".0.UNREACH",
	},
	FamilyDoorbell: {
		RolePress:   ".1.PRESS_SHORT",
		RoleUnreach: ".0.UNREACH",
	},
	FamilyCamera: {},
}

// points is the shared state access helper composed into every family.
type points struct {
	store pointstore.Store
	ids   map[string]string
	now   func() time.Time
}

func newPoints(store pointstore.Store, desc Descriptor) points {
	ids := make(map[string]string)
	for role, suffix := range familyDefaults[desc.Family] {
		ids[role] = desc.SourceID + suffix
	}
	for role, id := range desc.Points {
		ids[role] = id
	}
	return points{store: store, ids: ids, now: time.Now}
}

func (p points) id(role string) string {
	return p.ids[role]
}

func (p points) has(role string) bool {
	_, ok := p.ids[role]
	return ok
}

// all returns the point IDs in a stable order.
func (p points) all() []string {
	ids := make([]string, 0, len(p.ids))
	for _, id := range p.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p points) get(ctx context.Context, role string) (any, error) {
	id := p.id(role)
	v, err := p.store.GetPointValue(ctx, id)
	if err != nil {
		return nil, mapStoreError(id, err)
	}
	return v, nil
}

func (p points) set(ctx context.Context, role string, value any) error {
	id := p.id(role)
	if err := p.store.SetPointValue(ctx, id, value); err != nil {
		return mapStoreError(id, err)
	}
	return nil
}

func (p points) getBool(ctx context.Context, role string) (bool, error) {
	v, err := p.get(ctx, role)
	if err != nil {
		return false, err
	}
	b, ok := toBool(v)
	if !ok {
		return false, fmt.Errorf("%w: %s = %v", ErrInvalidPointValue, p.id(role), v)
	}
	return b, nil
}

func (p points) getFloat(ctx context.Context, role string) (float64, error) {
	v, err := p.get(ctx, role)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s = %v", ErrInvalidPointValue, p.id(role), v)
	}
	return f, nil
}

// reachable reads the unreach point. Devices without one, or whose unreach
// point has never been published, count as reachable.
func (p points) reachable(ctx context.Context) (bool, error) {
	if !p.has(RoleUnreach) {
		return true, nil
	}
	unreach, err := p.getBool(ctx, RoleUnreach)
	if errors.Is(err, ErrPointMissing) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !unreach, nil
}

func mapStoreError(pointID string, err error) error {
	switch {
	case errors.Is(err, pointstore.ErrUnreachable):
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, pointID, err)
	case errors.Is(err, pointstore.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrPointMissing, pointID)
	default:
		return fmt.Errorf("point %s: %w", pointID, err)
	}
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "1":
			return true, true
		case "false", "off", "0":
			return false, true
		}
		return false, false
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
