package alexa

// Protocol limits for discovery documents.
const (
	MaxEndpoints      = 300
	MaxEndpointIDLen  = 256
	MaxFriendlyLen    = 128
	MaxDescriptionLen = 128
	MaxManufacturer   = 128
)

// Display categories used by the device families.
const (
	CategoryLight         = "LIGHT"
	CategorySmartPlug     = "SMARTPLUG"
	CategoryInteriorBlind = "INTERIOR_BLIND"
	CategoryExteriorBlind = "EXTERIOR_BLIND"
	CategoryThermostat    = "THERMOSTAT"
	CategoryTemperature   = "TEMPERATURE_SENSOR"
	CategoryCamera        = "CAMERA"
	CategoryMotionSensor  = "MOTION_SENSOR"
	CategoryContactSensor = "CONTACT_SENSOR"
	CategorySwitch        = "SWITCH"
	CategoryDoorbell      = "DOORBELL"
	CategoryOther         = "OTHER"
)

// DiscoveryEndpoint describes one endpoint in a Discover.Response.
type DiscoveryEndpoint struct {
	EndpointID        string            `json:"endpointId"`
	ManufacturerName  string            `json:"manufacturerName"`
	ModelName         string            `json:"modelName,omitempty"`
	Description       string            `json:"description"`
	FriendlyName      string            `json:"friendlyName"`
	DisplayCategories []string          `json:"displayCategories"`
	Cookie            map[string]string `json:"cookie,omitempty"`
	Capabilities      []Capability      `json:"capabilities"`
}

// Capability is one interface entry of a discovery endpoint.
type Capability struct {
	Type                       string                      `json:"type"`
	Interface                  string                      `json:"interface"`
	Instance                   string                      `json:"instance,omitempty"`
	Version                    string                      `json:"version"`
	Properties                 *CapabilityProperties       `json:"properties,omitempty"`
	CapabilityResources        *CapabilityResources        `json:"capabilityResources,omitempty"`
	Configuration              any                         `json:"configuration,omitempty"`
	Semantics                  *Semantics                  `json:"semantics,omitempty"`
	ProactivelyReported        bool                        `json:"proactivelyReported,omitempty"`
	CameraStreamConfigurations []CameraStreamConfiguration `json:"cameraStreamConfigurations,omitempty"`
}

// CapabilityProperties lists the reportable properties of an interface.
type CapabilityProperties struct {
	Supported           []SupportedProperty `json:"supported"`
	ProactivelyReported bool                `json:"proactivelyReported"`
	Retrievable         bool                `json:"retrievable"`
}

// SupportedProperty names a property.
type SupportedProperty struct {
	Name string `json:"name"`
}

// NewInterface builds an AlexaInterface capability whose properties are
// proactively reported and retrievable.
func NewInterface(iface string, properties ...string) Capability {
	c := Capability{Type: "AlexaInterface", Interface: iface, Version: PayloadVersion}
	if len(properties) > 0 {
		supported := make([]SupportedProperty, len(properties))
		for i, p := range properties {
			supported[i] = SupportedProperty{Name: p}
		}
		c.Properties = &CapabilityProperties{
			Supported:           supported,
			ProactivelyReported: true,
			Retrievable:         true,
		}
	}
	return c
}

// BaseInterface is the bare "Alexa" interface every endpoint declares.
func BaseInterface() Capability {
	return NewInterface(NamespaceAlexa)
}

// CapabilityResources names an instance of a generic controller.
type CapabilityResources struct {
	FriendlyNames []FriendlyName `json:"friendlyNames"`
}

// FriendlyName is either an asset reference or a localized text.
type FriendlyName struct {
	Type  string            `json:"@type"`
	Value FriendlyNameValue `json:"value"`
}

// FriendlyNameValue holds the asset ID or text.
type FriendlyNameValue struct {
	AssetID string `json:"assetId,omitempty"`
	Text    string `json:"text,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// AssetName refers to a built-in asset such as "Alexa.Setting.Opening".
func AssetName(assetID string) FriendlyName {
	return FriendlyName{Type: "asset", Value: FriendlyNameValue{AssetID: assetID}}
}

// RangeConfiguration declares the bounds of a RangeController instance.
type RangeConfiguration struct {
	SupportedRange SupportedRange `json:"supportedRange"`
	UnitOfMeasure  string         `json:"unitOfMeasure,omitempty"`
}

// SupportedRange is an inclusive numeric range.
type SupportedRange struct {
	MinimumValue float64 `json:"minimumValue"`
	MaximumValue float64 `json:"maximumValue"`
	Precision    float64 `json:"precision"`
}

// Semantics maps utterances like "open the blinds" onto range directives.
type Semantics struct {
	ActionMappings []ActionMapping `json:"actionMappings,omitempty"`
	StateMappings  []StateMapping  `json:"stateMappings,omitempty"`
}

// ActionMapping maps semantic actions onto a directive.
type ActionMapping struct {
	Type      string          `json:"@type"`
	Actions   []string        `json:"actions"`
	Directive MappedDirective `json:"directive"`
}

// MappedDirective is the directive an action mapping expands to.
type MappedDirective struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// StateMapping maps semantic states onto values or ranges.
type StateMapping struct {
	Type   string      `json:"@type"`
	States []string    `json:"states"`
	Value  *float64    `json:"value,omitempty"`
	Range  *StateRange `json:"range,omitempty"`
}

// StateRange is a value range in a StatesToRange mapping.
type StateRange struct {
	MinimumValue float64 `json:"minimumValue"`
	MaximumValue float64 `json:"maximumValue"`
}

// CameraStreamConfiguration advertises the stream formats a camera offers.
type CameraStreamConfiguration struct {
	Protocols          []string     `json:"protocols"`
	Resolutions        []Resolution `json:"resolutions"`
	AuthorizationTypes []string     `json:"authorizationTypes"`
	VideoCodecs        []string     `json:"videoCodecs"`
	AudioCodecs        []string     `json:"audioCodecs"`
}

// Resolution is a frame size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
