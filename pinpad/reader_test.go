package pinpad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-poslink/internal/fakepad"
	"github.com/arloliu/go-poslink/poslink"
)

func waitForHandshakes(t *testing.T, term *fakepad.Terminal, want ...byte) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(term.Handshakes()) >= len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, term.Handshakes())
}

// --- waitForAck ---

func TestWaitForAck_Ack(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.Ack()
	require.NoError(t, s.reader.waitForAck(context.Background()))
}

func TestWaitForAck_Nak(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.Nak()
	require.ErrorIs(t, s.reader.waitForAck(context.Background()), ErrNacked)
	assert.Equal(t, uint64(1), s.conn.metrics.NakRecvCount.Load())
}

func TestWaitForAck_SkipsStrayBytes(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.SendRaw([]byte{'x', poslink.ENQ, 0xFF})
	peer.Ack()
	require.NoError(t, s.reader.waitForAck(context.Background()))
}

func TestWaitForAck_Timeout(t *testing.T) {
	s, _, _ := newTestSession(t, WithAckTimeout(50*time.Millisecond))

	start := time.Now()
	err := s.reader.waitForAck(context.Background())
	require.ErrorIs(t, err, ErrDeviceBusy)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, uint64(1), s.conn.metrics.AckTimeoutCount.Load())
}

func TestWaitForAck_ContextCanceled(t *testing.T) {
	s, _, _ := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.reader.waitForAck(ctx), context.Canceled)
}

// --- readMessage ---

func TestReadMessage_AcknowledgesFrame(t *testing.T) {
	s, peer, term := newTestSession(t)

	peer.Send("R1", poslink.TagDisplay, "1", "PRESENT CARD")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)

	dsp, ok := resp.(*poslink.DisplayMessage)
	require.True(t, ok)
	assert.Equal(t, "PRESENT CARD", dsp.Text)
	assert.Equal(t, "R1", dsp.Reference())
	waitForHandshakes(t, term, poslink.ACK)
	assert.Equal(t, uint64(1), s.conn.metrics.FrameRecvCount.Load())
}

func TestReadMessage_SkipsBareAck(t *testing.T) {
	s, peer, term := newTestSession(t)

	peer.Ack()
	peer.Send("R1", poslink.TagDisplay, "1", "HELLO")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, poslink.TagDisplay, resp.MessageType())
	waitForHandshakes(t, term, poslink.ACK)
}

func TestReadMessage_BareNak(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.Nak()
	_, err := s.reader.readMessage(context.Background())
	require.ErrorIs(t, err, ErrNacked)
}

func TestReadMessage_NaksBadLRCAndContinues(t *testing.T) {
	s, peer, term := newTestSession(t)

	bad := poslink.AppendFrame(nil, "R1", poslink.TagDisplay, "1", "FIRST")
	bad[len(bad)-1] ^= 0x55
	peer.SendRaw(bad)
	peer.Send("R1", poslink.TagDisplay, "1", "SECOND")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SECOND", resp.(*poslink.DisplayMessage).Text)

	waitForHandshakes(t, term, poslink.NAK, poslink.ACK)
	assert.Equal(t, uint64(1), s.conn.metrics.NakSendCount.Load())
}

func TestReadMessage_NaksUnparsableAmount(t *testing.T) {
	s, peer, term := newTestSession(t)

	peer.Send("R1", poslink.TagPurchase, "1", "ten", "000000.00", "00", "APPROVED")
	peer.Send("R1", poslink.TagDisplay, "1", "AFTER")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, poslink.TagDisplay, resp.MessageType())
	waitForHandshakes(t, term, poslink.NAK, poslink.ACK)
}

func TestReadMessage_SkipsUnknownType(t *testing.T) {
	s, peer, term := newTestSession(t)

	peer.Send("R1", "ZZZ", "1", "whatever")
	peer.Send("R1", poslink.TagDisplay, "1", "KNOWN")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "KNOWN", resp.(*poslink.DisplayMessage).Text)
	waitForHandshakes(t, term, poslink.ACK, poslink.ACK)
}

func TestReadMessage_RestartsOnStx(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.SendRaw([]byte{poslink.STX, 'g', 'a', 'r', 'b'})
	peer.Send("R1", poslink.TagDisplay, "1", "WHOLE")

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "WHOLE", resp.(*poslink.DisplayMessage).Text)
}

func TestReadMessage_EscapedControlBytes(t *testing.T) {
	s, peer, _ := newTestSession(t)

	text := "A,B\x03C\x02D"
	peer.Send("R1", poslink.TagDisplay, "1", text)

	resp, err := s.reader.readMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, text, resp.(*poslink.DisplayMessage).Text)
}

func TestReadMessage_ShortFrame(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.SendRaw([]byte{poslink.STX, poslink.ETX, poslink.ETX})

	_, err := s.reader.readMessage(context.Background())
	require.ErrorIs(t, err, poslink.ErrProtocol)
}

func TestReadMessage_OversizedFrame(t *testing.T) {
	s, peer, _ := newTestSession(t)

	data := make([]byte, poslink.MaxFrameLength+10)
	for i := range data {
		data[i] = 'A'
	}
	data[0] = poslink.STX
	peer.SendRaw(data)

	_, err := s.reader.readMessage(context.Background())
	require.ErrorIs(t, err, poslink.ErrProtocol)
}

func TestReadMessage_Timeout(t *testing.T) {
	s, _, _ := newTestSession(t, WithResponseTimeout(100*time.Millisecond))

	_, err := s.reader.readMessage(context.Background())
	require.ErrorIs(t, err, ErrDeviceBusy)
}

func TestReadMessage_ClosedConnection(t *testing.T) {
	s, peer, _ := newTestSession(t)

	peer.Close()
	_, err := s.reader.readMessage(context.Background())
	require.ErrorIs(t, err, ErrDeviceBusy)
}

// --- writer ---

func TestWriter_WriteFrame(t *testing.T) {
	s, _, term := newTestSession(t)

	req := &poslink.PollRequest{Header: poslink.Header{MerchantReference: "R7", Merchant: 2}}
	frame, err := poslink.Encode(req)
	require.NoError(t, err)
	require.NoError(t, s.writer.writeFrame(frame))

	waitForCount(t, term, poslink.TagPoll, 1)
	got := term.Frames()[0]
	assert.Equal(t, frame, got.Raw)
	assert.Equal(t, []string{"R7", poslink.TagPoll, "2", poslink.ProtocolVersion}, got.Fields)
	assert.Equal(t, uint64(1), s.conn.metrics.FrameSendCount.Load())
}

func TestWriter_WriteNak(t *testing.T) {
	s, _, term := newTestSession(t)

	require.NoError(t, s.writer.writeNak())
	waitForHandshakes(t, term, poslink.NAK)
	assert.Empty(t, term.Frames())
	assert.Equal(t, uint64(1), s.conn.metrics.NakSendCount.Load())
}

func TestWriter_ClosedConnection(t *testing.T) {
	s, _, _ := newTestSession(t)

	s.close()
	err := s.writer.writeAck()
	require.ErrorIs(t, err, errLinkFault)
}
