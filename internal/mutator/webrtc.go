package mutator

import (
	"context"

	"browserprofiles/internal/driver"
	"browserprofiles/internal/profile"
)

const NameWebRTC = "webrtc-leak-suppress"

// webrtcJS removes the media and peer-connection entry points so no local
// interface address can be learned through ICE candidates.
const webrtcJS = `navigator.mediaDevices.getUserMedia = navigator.webkitGetUserMedia = navigator.mozGetUserMedia = navigator.getUserMedia = webkitRTCPeerConnection = RTCPeerConnection = MediaStreamTrack = undefined;`

// WebRTC installs webrtcJS before any page script runs. On a page that
// already navigated it only covers the documents loaded afterwards.
type WebRTC struct{}

func (WebRTC) Name() string { return NameWebRTC }

func (WebRTC) Apply(ctx context.Context, page driver.Page, spec *profile.LaunchSpec) Outcome {
	if !spec.SuppressWebRTC {
		return Skipped("webrtc suppression disabled")
	}
	return FromError("install webrtc script", page.EvalOnNewDocument(ctx, webrtcJS))
}
