package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Families supported by the catalog.
const (
	FamilyHueLight   = "hue-light"
	FamilyDimmer     = "dimmer"
	FamilyPlug       = "plug"
	FamilyBlind      = "blind"
	FamilyThermostat = "thermostat"
	FamilyTempSensor = "temperature-sensor"
	FamilyMotion     = "motion-sensor"
	FamilyDoorbell   = "doorbell"
	FamilyCamera     = "camera"
)

// Descriptor is one catalog entry.
type Descriptor struct {
	// Family selects the adapter implementation.
	Family string `yaml:"family"`

	// SourceID is the device's ID in the upstream system. Point IDs are
	// derived from it and it feeds the endpoint ID.
	SourceID string `yaml:"source_id"`

	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	Model        string `yaml:"model,omitempty"`

	// Categories overrides the family's display categories.
	Categories []string `yaml:"categories,omitempty"`

	// Features restricts optional interfaces (e.g. a Hue bulb without
	// "color_temperature"). Empty means all the family offers.
	Features []string `yaml:"features,omitempty"`

	// Points overrides derived point IDs by role.
	Points map[string]string `yaml:"points,omitempty"`

	Camera *CameraConfig `yaml:"camera,omitempty"`
}

// CameraConfig holds the upstream URLs of a camera.
type CameraConfig struct {
	StreamURL   string `yaml:"stream_url"`
	SnapshotURL string `yaml:"snapshot_url"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	VideoCodec  string `yaml:"video_codec"`
	AudioCodec  string `yaml:"audio_codec"`
}

// Catalog is the device catalog file.
type Catalog struct {
	Devices []Descriptor `yaml:"devices"`
}

// LoadCatalog reads and validates a YAML device catalog.
//
// Parameters:
//   - path: Path to the catalog file
//
// Returns:
//   - *Catalog: Parsed catalog with every entry validated
//   - error: If the file cannot be read or parsed, or any entry is invalid
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing device catalog: %w", err)
	}

	var errs []string
	for i := range cat.Devices {
		if err := cat.Devices[i].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d]: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDevice, strings.Join(errs, "; "))
	}
	return &cat, nil
}

// Validate checks a descriptor.
func (d *Descriptor) Validate() error {
	if d.SourceID == "" {
		return errors.New("source_id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("name is required")
	}
	if _, ok := familyDefaults[d.Family]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, d.Family)
	}
	if d.Family == FamilyCamera {
		if d.Camera == nil || d.Camera.StreamURL == "" {
			return errors.New("camera.stream_url is required")
		}
	}
	for role := range d.Points {
		if _, ok := familyDefaults[d.Family][role]; !ok {
			return fmt.Errorf("unknown point role %q for family %s", role, d.Family)
		}
	}
	return nil
}

// hasFeature reports whether an optional feature is enabled.
func (d *Descriptor) hasFeature(name string) bool {
	if len(d.Features) == 0 {
		return true
	}
	for _, f := range d.Features {
		if f == name {
			return true
		}
	}
	return false
}
