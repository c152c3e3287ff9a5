package media

import "github.com/pion/webrtc/v4"

// DefaultRouterCodecs is the fixed codec set every room's router is
// created with: one audio codec and three alternative video codecs.
func DefaultRouterCodecs() []RouterCodec {
	return []RouterCodec{
		{
			Kind:      KindAudio,
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		{
			Kind:      KindVideo,
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
			Parameters: map[string]any{
				"x-google-start-bitrate": 1000,
			},
		},
		{
			Kind:      KindVideo,
			MimeType:  webrtc.MimeTypeVP9,
			ClockRate: 90000,
			Parameters: map[string]any{
				"profile-id": 2,
			},
		},
		{
			Kind:      KindVideo,
			MimeType:  webrtc.MimeTypeH264,
			ClockRate: 90000,
			Parameters: map[string]any{
				"packetization-mode":      1,
				"profile-level-id":        "4d0032",
				"level-asymmetry-allowed": 1,
			},
		},
	}
}
