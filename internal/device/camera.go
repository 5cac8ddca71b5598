package device

import (
	"context"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// Default stream properties for cameras that do not declare them.
const (
	defaultCameraWidth  = 1280
	defaultCameraHeight = 720
	defaultVideoCodec   = "H264"
	defaultAudioCodec   = "AAC"
)

// Camera is an ONVIF/RTSP camera. The gateway transcodes its RTSP stream
// on demand and serves it over HTTPS.
type Camera struct {
	base
}

func (c *Camera) StreamSource() string {
	return c.desc.Camera.StreamURL
}

func (c *Camera) SnapshotSource() string {
	return c.desc.Camera.SnapshotURL
}

func (c *Camera) StreamConfiguration() alexa.CameraStreamConfiguration {
	cam := c.desc.Camera
	width, height := cam.Width, cam.Height
	if width <= 0 || height <= 0 {
		width, height = defaultCameraWidth, defaultCameraHeight
	}
	video := cam.VideoCodec
	if video == "" {
		video = defaultVideoCodec
	}
	audio := cam.AudioCodec
	if audio == "" {
		audio = defaultAudioCodec
	}
	return alexa.CameraStreamConfiguration{
		Protocols:          []string{"RTSP"},
		Resolutions:        []alexa.Resolution{{Width: width, Height: height}},
		AuthorizationTypes: []string{"NONE"},
		VideoCodecs:        []string{video},
		AudioCodecs:        []string{audio},
	}
}

func (c *Camera) Describe(_ context.Context) (alexa.DiscoveryEndpoint, error) {
	stream := alexa.NewInterface(alexa.NamespaceCameraStreamController)
	stream.CameraStreamConfigurations = []alexa.CameraStreamConfiguration{c.StreamConfiguration()}
	return c.endpoint("ONVIF", "IP camera", []string{alexa.CategoryCamera}, stream), nil
}

// ReportState only reports connectivity; a camera has no point state.
func (c *Camera) ReportState(ctx context.Context) ([]alexa.Property, error) {
	health, err := c.healthProperty(ctx)
	if err != nil {
		return nil, err
	}
	return []alexa.Property{health}, nil
}
