package directive

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
)

// CameraStream is one entry of an InitializeCameraStreams reply.
type CameraStream struct {
	URI                string           `json:"uri"`
	ExpirationTime     string           `json:"expirationTime"`
	IdleTimeoutSeconds int              `json:"idleTimeoutSeconds"`
	Protocol           string           `json:"protocol"`
	Resolution         alexa.Resolution `json:"resolution"`
	AuthorizationType  string           `json:"authorizationType"`
	VideoCodec         string           `json:"videoCodec"`
	AudioCodec         string           `json:"audioCodec"`
}

// CameraStreamsPayload is the payload of the InitializeCameraStreams reply.
type CameraStreamsPayload struct {
	CameraStreams []CameraStream `json:"cameraStreams"`
	ImageURI      string         `json:"imageUri,omitempty"`
}

type cameraStreamsRequest struct {
	CameraStreams []struct {
		Protocol          string           `json:"protocol"`
		Resolution        alexa.Resolution `json:"resolution"`
		AuthorizationType string           `json:"authorizationType"`
		VideoCodec        string           `json:"videoCodec"`
		AudioCodec        string           `json:"audioCodec"`
	} `json:"cameraStreams"`
}

// CameraURLs returns the gateway URLs serving a camera's stream and
// snapshot, authorized by token.
func CameraURLs(publicURL, endpointID, token string) (stream, snapshot string) {
	base := strings.TrimRight(publicURL, "/") + "/camera/" + url.PathEscape(endpointID)
	q := "?token=" + url.QueryEscape(token)
	return base + "/stream" + q, base + "/snapshot" + q
}

func (r *Router) handleCameraStreams(ctx context.Context, d *alexa.Directive) *alexa.Response {
	a, errResp := r.resolve(d)
	if errResp != nil {
		return errResp
	}
	cam, ok := device.As[device.CameraStreamer](a, alexa.NamespaceCameraStreamController)
	if !ok {
		return unsupported(d)
	}
	if d.Header.Name != NameInitializeCameraStreams {
		return invalidName(d)
	}

	var req cameraStreamsRequest
	if err := d.DecodePayload(&req); err != nil {
		return invalidPayload(d, err)
	}

	cfg := cam.StreamConfiguration()
	stream := CameraStream{
		ExpirationTime:     r.now().Add(r.cfg.StreamMaxDuration).UTC().Format("2006-01-02T15:04:05.00Z"),
		IdleTimeoutSeconds: int(r.cfg.StreamIdleTimeout.Seconds()),
		Protocol:           first(cfg.Protocols),
		AuthorizationType:  first(cfg.AuthorizationTypes),
		VideoCodec:         first(cfg.VideoCodecs),
		AudioCodec:         first(cfg.AudioCodecs),
	}
	if len(cfg.Resolutions) > 0 {
		stream.Resolution = cfg.Resolutions[0]
	}
	// Honour the first requested stream shape the camera can deliver.
	for _, want := range req.CameraStreams {
		if slices.Contains(cfg.Protocols, want.Protocol) && slices.Contains(cfg.Resolutions, want.Resolution) {
			stream.Protocol = want.Protocol
			stream.Resolution = want.Resolution
			break
		}
	}

	streamURI, snapshotURI := CameraURLs(r.cfg.PublicURL, a.EndpointID(), d.Endpoint.Token())
	stream.URI = streamURI
	payload := CameraStreamsPayload{CameraStreams: []CameraStream{stream}}
	if cam.SnapshotSource() != "" {
		payload.ImageURI = snapshotURI
	}

	r.logger.Info("camera stream offered", "endpoint_id", a.EndpointID())
	return r.withContext(ctx, d, a, alexa.NewResponse(d, alexa.NamespaceCameraStreamController, alexa.NameResponse, payload))
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
