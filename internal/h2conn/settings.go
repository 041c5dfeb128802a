package h2conn

import (
	"github.com/domsolutions/corehttp/internal/bytesutil"
	"github.com/domsolutions/corehttp/internal/frame"
	"github.com/domsolutions/corehttp/internal/hpack"
	"github.com/domsolutions/corehttp/internal/stream"
)

// Setting identifiers (RFC 7540 §6.5.2).
const (
	SettingsHeaderTableSize      uint16 = 0x1
	SettingsEnablePush           uint16 = 0x2
	SettingsMaxConcurrentStreams uint16 = 0x3
	SettingsInitialWindowSize    uint16 = 0x4
	SettingsMaxFrameSize         uint16 = 0x5
	SettingsMaxHeaderListSize    uint16 = 0x6
)

// Settings is one endpoint's view of the negotiated SETTINGS parameters.
// Defaults mirror the RFC 7540 §6.5.2 table, expressed via this module's
// own package defaults where one already exists.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32 // 0 = unbounded
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32 // 0 = unbounded
}

// DefaultSettings returns the RFC 7540 default values a peer must assume
// before receiving any SETTINGS frame.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      hpack.DefaultMaxTableSize,
		EnablePush:           true,
		MaxConcurrentStreams: 0,
		InitialWindowSize:    stream.DefaultInitialWindow,
		MaxFrameSize:         frame.MaxPayloadSize,
		MaxHeaderListSize:    0,
	}
}

// applySettingsPayload parses a non-ACK SETTINGS frame payload and applies
// each recognized parameter to s in order, per RFC 7540 §6.5: "the
// identifier and value fields... processed in the order they appear" and
// "an unsupported parameter must be ignored". Returns a ConnError for a
// malformed payload (length not a multiple of 6) or a semantically invalid
// value (oversized initial window, frame size out of the legal range).
func applySettingsPayload(s *Settings, payload []byte) error {
	if len(payload)%6 != 0 {
		return connErr(FrameSizeError, "SETTINGS payload length not a multiple of 6")
	}
	for i := 0; i+6 <= len(payload); i += 6 {
		id := uint16(payload[i])<<8 | uint16(payload[i+1])
		val := bytesutil.BytesToUint32(payload[i+2 : i+6])
		switch id {
		case SettingsHeaderTableSize:
			s.HeaderTableSize = val
		case SettingsEnablePush:
			if val > 1 {
				return connErr(ProtocolError, "SETTINGS_ENABLE_PUSH must be 0 or 1")
			}
			s.EnablePush = val == 1
		case SettingsMaxConcurrentStreams:
			s.MaxConcurrentStreams = val
		case SettingsInitialWindowSize:
			if val > 1<<31-1 {
				return connErr(FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE exceeds the maximum flow-control window")
			}
			s.InitialWindowSize = val
		case SettingsMaxFrameSize:
			if val < frame.MaxPayloadSize || val > frame.MaxAllowedPayloadSize {
				return connErr(ProtocolError, "SETTINGS_MAX_FRAME_SIZE out of the legal range")
			}
			s.MaxFrameSize = val
		case SettingsMaxHeaderListSize:
			s.MaxHeaderListSize = val
		default:
			// unknown identifier: ignore, per RFC 7540 §6.5.
		}
	}
	return nil
}

// encodeSettingsPayload serializes s as SETTINGS frame parameters, used
// when this endpoint announces its own configuration. MaxConcurrentStreams
// and MaxHeaderListSize are omitted when 0 (unbounded), since a 0 on the
// wire would be read as a limit of zero.
func encodeSettingsPayload(s Settings) []frame.SettingParam {
	push := uint32(0)
	if s.EnablePush {
		push = 1
	}
	params := []frame.SettingParam{
		{ID: SettingsHeaderTableSize, Value: s.HeaderTableSize},
		{ID: SettingsEnablePush, Value: push},
		{ID: SettingsInitialWindowSize, Value: s.InitialWindowSize},
		{ID: SettingsMaxFrameSize, Value: s.MaxFrameSize},
	}
	if s.MaxConcurrentStreams != 0 {
		params = append(params, frame.SettingParam{ID: SettingsMaxConcurrentStreams, Value: s.MaxConcurrentStreams})
	}
	if s.MaxHeaderListSize != 0 {
		params = append(params, frame.SettingParam{ID: SettingsMaxHeaderListSize, Value: s.MaxHeaderListSize})
	}
	return params
}
