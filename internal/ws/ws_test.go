package ws

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateHandshakeAccepts(t *testing.T) {
	err := ValidateHandshake(HandshakeRequest{
		Upgrade:    "websocket",
		Connection: "Upgrade",
		Version:    "13",
		Key:        "dGhlIHNhbXBsZSBub25jZQ==",
	})
	require.NoError(t, err)
}

func TestValidateHandshakeRejectsBadVersion(t *testing.T) {
	err := ValidateHandshake(HandshakeRequest{
		Upgrade: "websocket", Connection: "Upgrade", Version: "8",
		Key: "dGhlIHNhbXBsZSBub25jZQ==",
	})
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestAcceptKeyRFCExample(t *testing.T) {
	// Worked example from RFC 6455 §1.3.
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestFrameRoundTripClientToServer(t *testing.T) {
	var buf bytes.Buffer
	fr := &Frame{FIN: true, Opcode: OpText, Payload: []byte("hello")}
	require.NoError(t, WriteFrame(&buf, fr, false)) // client writes masked

	got, err := ReadFrame(&buf, true, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got.Payload))
	require.True(t, got.FIN)
}

func TestReadFrameRejectsUnmaskedFromClient(t *testing.T) {
	var buf bytes.Buffer
	fr := &Frame{FIN: true, Opcode: OpText, Payload: []byte("hi")}
	require.NoError(t, WriteFrame(&buf, fr, true)) // server-style unmasked

	_, err := ReadFrame(&buf, true, 0)
	require.ErrorIs(t, err, ErrUnmaskedFromClient)
}

func TestControlFrameSizeLimit(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, 200)
	fr := &Frame{FIN: true, Opcode: OpPing, Payload: big}
	require.NoError(t, WriteFrame(&buf, fr, false))

	_, err := ReadFrame(&buf, true, 0)
	require.ErrorIs(t, err, ErrControlTooLarge)
}

func TestTextFrameRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	fr := &Frame{FIN: true, Opcode: OpText, Payload: []byte{0xff, 0xfe, 0xfd}}
	require.NoError(t, WriteFrame(&buf, fr, false))

	_, err := ReadFrame(&buf, true, 0)
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestCloseCodeRoundTrip(t *testing.T) {
	payload := EncodeClosePayload(CloseNormal, "bye")
	code, reason, ok := ParseClosePayload(payload)
	require.True(t, ok)
	require.Equal(t, CloseNormal, code)
	require.Equal(t, "bye", reason)
}
