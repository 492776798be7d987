package engine

import (
	"context"
	"time"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/stretchr/testify/mock"
)

// fakeSession, fakeACL, fakeCaps, fakeConnMgr, fakeBroker, fakeMetrics and
// fakeSelf are testify/mock collaborator doubles shared across this
// package's tests, per SPEC_FULL §10.5 (testify/mock chosen over
// golang/mock, which needs mockgen code generation this exercise cannot
// run).

type fakeSession struct{ mock.Mock }

func (f *fakeSession) Open(ctx context.Context, params OpenParams) (SessionHandle, bool, error) {
	args := f.Called(ctx, params)
	h, _ := args.Get(0).(SessionHandle)
	return h, args.Bool(1), args.Error(2)
}
func (f *fakeSession) Publish(ctx context.Context, h SessionHandle, pid uint16, msg Message) error {
	return f.Called(ctx, h, pid, msg).Error(0)
}
func (f *fakeSession) Puback(ctx context.Context, h SessionHandle, pid uint16, r code.Code) error {
	return f.Called(ctx, h, pid, r).Error(0)
}
func (f *fakeSession) Pubrec(ctx context.Context, h SessionHandle, pid uint16, r code.Code) error {
	return f.Called(ctx, h, pid, r).Error(0)
}
func (f *fakeSession) Pubrel(ctx context.Context, h SessionHandle, pid uint16, r code.Code) error {
	return f.Called(ctx, h, pid, r).Error(0)
}
func (f *fakeSession) Pubcomp(ctx context.Context, h SessionHandle, pid uint16, r code.Code) error {
	return f.Called(ctx, h, pid, r).Error(0)
}
func (f *fakeSession) Subscribe(ctx context.Context, h SessionHandle, pid uint16, props packet.Properties, filters []packet.SubFilter) error {
	return f.Called(ctx, h, pid, props, filters).Error(0)
}
func (f *fakeSession) Unsubscribe(ctx context.Context, h SessionHandle, pid uint16, filters [][]byte) error {
	return f.Called(ctx, h, pid, filters).Error(0)
}

type fakeACL struct{ mock.Mock }

func (f *fakeACL) Authenticate(ctx context.Context, creds Credentials, password []byte) (AuthResult, error) {
	args := f.Called(ctx, creds, password)
	res, _ := args.Get(0).(AuthResult)
	return res, args.Error(1)
}
func (f *fakeACL) CheckACL(ctx context.Context, creds Credentials, action Action, topic []byte) bool {
	return f.Called(ctx, creds, action, topic).Bool(0)
}

type fakeCaps struct{ mock.Mock }

func (f *fakeCaps) CheckPub(zone string, p PubCaps) (code.Code, bool) {
	args := f.Called(zone, p)
	return args.Get(0).(code.Code), args.Bool(1)
}
func (f *fakeCaps) CheckSub(zone string, filters []packet.SubFilter) []AnnotatedFilter {
	args := f.Called(zone, filters)
	out, _ := args.Get(0).([]AnnotatedFilter)
	return out
}
func (f *fakeCaps) GetCaps(zone string) Caps {
	args := f.Called(zone)
	out, _ := args.Get(0).(Caps)
	return out
}

type fakeConnMgr struct{ mock.Mock }

func (f *fakeConnMgr) Register(clientID []byte, self interface{}, info ConnInfo) {
	f.Called(clientID, self, info)
}
func (f *fakeConnMgr) Unregister(clientID []byte) { f.Called(clientID) }

type fakeBroker struct{ mock.Mock }

func (f *fakeBroker) PublishWill(ctx context.Context, msg Message) error {
	return f.Called(ctx, msg).Error(0)
}

type fakeMetrics struct{ mock.Mock }

func (f *fakeMetrics) NotifySent(clientID []byte, packetType string, isMessage bool) {
	f.Called(clientID, packetType, isMessage)
}

type fakeSelf struct{ mock.Mock }

func (f *fakeSelf) ArmKeepalive(d time.Duration) { f.Called(d) }
func (f *fakeSelf) CancelKeepalive()              { f.Called() }

// sentPackets captures every byte slice sent through a Conn's SendFn, so
// tests can decode and assert on what the engine wrote to the wire.
type sentPackets struct {
	frames [][]byte
}

func (s *sentPackets) sendFn(b []byte) error {
	cp := append([]byte(nil), b...)
	s.frames = append(s.frames, cp)
	return nil
}

// newTestConn builds a minimally-wired Conn for handler-level tests: every
// collaborator is a fresh mock, capture of outbound bytes via sentPackets,
// protocol version V3_1_1, connected=true, mountpoint empty.
func newTestConn() (*Conn, *sentPackets) {
	sp := &sentPackets{}
	c := &Conn{
		SendFn:           sp.sendFn,
		Zone:             "default",
		ProtoVersion:     packet.V3_1_1,
		Connected:        true,
		ClientID:         []byte("client-1"),
		MaxClientIDLen:   23,
		KeepaliveBackoff: 0.75,
	}
	return c, sp
}
