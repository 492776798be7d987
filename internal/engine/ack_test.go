package engine

import (
	"context"
	"testing"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandlePuback_ForwardsToSession(t *testing.T) {
	c, _ := newTestConn()
	session := new(fakeSession)
	session.On("Puback", mock.Anything, mock.Anything, uint16(4), code.Success).Return(nil)
	c.Session = session

	puback := packet.NewPuback(4, packet.V3_1_1, code.Success)
	err := handlePuback(context.Background(), c, puback)

	require.NoError(t, err)
	session.AssertExpectations(t)
}

func TestHandlePubrec_SendsPubrelOnSuccess(t *testing.T) {
	c, sp := newTestConn()
	session := new(fakeSession)
	session.On("Pubrec", mock.Anything, mock.Anything, mock.Anything, code.Success).Return(nil)
	c.Session = session

	pubrec := packet.NewPubrec(11, packet.V3_1_1, code.Success)
	err := handlePubrec(context.Background(), c, pubrec)

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
}

func TestHandlePubrec_NoFollowUpOnFailureReason(t *testing.T) {
	c, sp := newTestConn()
	session := new(fakeSession)
	session.On("Pubrec", mock.Anything, mock.Anything, mock.Anything, code.UnspecifiedError).Return(nil)
	c.Session = session

	pubrec := packet.NewPubrec(11, packet.V3_1_1, code.UnspecifiedError)
	err := handlePubrec(context.Background(), c, pubrec)

	require.NoError(t, err)
	require.Empty(t, sp.frames)
}

func TestHandlePubrel_SendsPubcomp(t *testing.T) {
	c, sp := newTestConn()
	session := new(fakeSession)
	session.On("Pubrel", mock.Anything, mock.Anything, mock.Anything, code.Success).Return(nil)
	c.Session = session

	pubrel := packet.NewPubrel(12, packet.V3_1_1, code.Success)
	err := handlePubrel(context.Background(), c, pubrel)

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
}

func TestHandlePingreq_SendsPingresp(t *testing.T) {
	c, sp := newTestConn()

	err := handlePingreq(c)

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
}
