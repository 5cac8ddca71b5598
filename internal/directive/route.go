package directive

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Route keys the dispatch table. Directives of the bare "Alexa" namespace
// route on namespace and name; every other namespace routes on the
// namespace alone and its handler switches on the name.
type Route struct {
	Namespace string
	Name      string
}

// RouteFor returns the table key for a directive header.
func RouteFor(h alexa.Header) Route {
	if h.Namespace == alexa.NamespaceAlexa {
		return Route{Namespace: h.Namespace, Name: h.Name}
	}
	return Route{Namespace: h.Namespace}
}

type handlerFunc func(ctx context.Context, d *alexa.Directive) *alexa.Response

type route struct {
	handle handlerFunc

	// public routes carry no endpoint scope token to verify.
	public bool
}

// Directive names.
const (
	NameReportState             = "ReportState"
	NameDiscover                = "Discover"
	NameAcceptGrant             = "AcceptGrant"
	NameTurnOn                  = "TurnOn"
	NameTurnOff                 = "TurnOff"
	NameSetBrightness           = "SetBrightness"
	NameAdjustBrightness        = "AdjustBrightness"
	NameSetPercentage           = "SetPercentage"
	NameAdjustPercentage        = "AdjustPercentage"
	NameSetRangeValue           = "SetRangeValue"
	NameAdjustRangeValue        = "AdjustRangeValue"
	NameSetTargetTemperature    = "SetTargetTemperature"
	NameAdjustTargetTemperature = "AdjustTargetTemperature"
	NameSetColor                = "SetColor"
	NameSetColorTemperature     = "SetColorTemperature"
	NameIncreaseColorTemp       = "IncreaseColorTemperature"
	NameDecreaseColorTemp       = "DecreaseColorTemperature"
	NameInitializeCameraStreams = "InitializeCameraStreams"
)

func (r *Router) buildRoutes() map[Route]route {
	return map[Route]route{
		{Namespace: alexa.NamespaceAlexa, Name: NameReportState}: {handle: r.handleReportState},
		{Namespace: alexa.NamespaceDiscovery}:                    {handle: r.handleDiscovery, public: true},
		{Namespace: alexa.NamespaceAuthorization}:                {handle: r.handleAuthorization, public: true},
		{Namespace: alexa.NamespacePowerController}:              {handle: r.handlePower},
		{Namespace: alexa.NamespaceBrightnessController}:         {handle: r.handleBrightness},
		{Namespace: alexa.NamespacePercentageController}:         {handle: r.handlePercentage},
		{Namespace: alexa.NamespaceRangeController}:              {handle: r.handleRange},
		{Namespace: alexa.NamespaceThermostatController}:         {handle: r.handleThermostat},
		{Namespace: alexa.NamespaceColorController}:              {handle: r.handleColor},
		{Namespace: alexa.NamespaceColorTemperature}:             {handle: r.handleColorTemperature},
		{Namespace: alexa.NamespaceCameraStreamController}:       {handle: r.handleCameraStreams},
	}
}
