// Package transport is the thin framer/socket glue spec SPEC_FULL §11
// names: a net.Listener-based TCP framer and a gorilla/websocket framer,
// both decoding bytes into internal/packet values and feeding
// engine.Received, matching chenquan-lighthouse/internal/server's TCP+WS
// listener split. Explicitly out of scope for protocol semantics.
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beaconmq/beacon/config"
	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/goroutine"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xlog"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var log = xlog.LoggerModule("transport")

// Collaborators is the fixed bundle of engine dependencies every accepted
// connection is wired with; Server holds one and threads it into every
// Init call.
type Collaborators struct {
	Session       engine.Session
	ACL           engine.AccessControl
	Caps          engine.CapabilityPolicy
	ConnMgr       engine.ConnectionManager
	BrokerRouting engine.Broker
	Hooks         *hook.Bus
	Metrics       engine.MetricsSink
	Attach        func(clientID []byte, push func(ctx context.Context, ev engine.Event) error)
	Detach        func(clientID []byte)
}

// frameConn is the byte-stream abstraction a TCP socket and a websocket
// connection both satisfy once wrapped: ReadPacket returns the next decoded
// packet, WriteBytes sends raw encoded bytes, Close tears the transport
// down.
type frameConn interface {
	ReadPacket(maxPacketSize uint32, version packet.Version) (packet.Packet, error)
	WriteBytes(b []byte) error
	Close() error
	RemoteAddr() string
}

// selfHandle implements engine.SelfHandle with a plain time.Timer, firing
// Shutdown(keepalive_timeout) on expiry (spec §5 "Timeouts").
type selfHandle struct {
	mu    sync.Mutex
	timer *time.Timer
	onFire func()
}

func (s *selfHandle) ArmKeepalive(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		if s.onFire != nil {
			s.onFire()
		}
	})
}

func (s *selfHandle) CancelKeepalive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Server accepts TCP and WebSocket MQTT connections and drives each one's
// engine.Conn from its own pooled goroutine.
type Server struct {
	tcpListen string
	wsListen  string

	zone     config.Zone
	zoneName string

	collab Collaborators

	mu    sync.Mutex
	tcpLn net.Listener
	wsSrv *http.Server

	upgrader websocket.Upgrader
}

// New builds a Server bound to the given zone policy and listen addresses.
func New(tcpListen, wsListen string, zoneName string, zone config.Zone, collab Collaborators) *Server {
	return &Server{
		tcpListen: tcpListen,
		wsListen:  wsListen,
		zone:      zone,
		zoneName:  zoneName,
		collab:    collab,
		upgrader:  websocket.Upgrader{Subprotocols: []string{"mqtt"}},
	}
}

// ServeTCP accepts connections on tcpListen until the listener is closed,
// dispatching each to the shared goroutine pool (matching
// chenquan-lighthouse/internal/server's `goroutine.Go(func() { c.listen() })`
// call site).
func (s *Server) ServeTCP() error {
	ln, err := net.Listen("tcp", s.tcpListen)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tcpLn = ln
	s.mu.Unlock()
	log.Info("listening", zap.String("transport", "tcp"), zap.String("addr", s.tcpListen))

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		fc := &tcpFrame{conn: conn}
		goroutine.Go(func() {
			s.serve(fc)
		})
	}
}

// ServeWS accepts MQTT-over-WebSocket connections on wsListen until Stop is
// called, dispatching each to the shared goroutine pool the same way
// ServeTCP does.
func (s *Server) ServeWS() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mqtt", func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("ws upgrade failed", zap.Error(err))
			return
		}
		fc := &wsFrame{conn: conn}
		goroutine.Go(func() {
			s.serve(fc)
		})
	})
	srv := &http.Server{Addr: s.wsListen, Handler: mux}
	s.mu.Lock()
	s.wsSrv = srv
	s.mu.Unlock()
	log.Info("listening", zap.String("transport", "websocket"), zap.String("addr", s.wsListen))
	return srv.ListenAndServe()
}

// Stop closes the TCP listener and WebSocket server, unblocking ServeTCP
// and ServeWS.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn != nil {
		if err := s.tcpLn.Close(); err != nil {
			return err
		}
	}
	if s.wsSrv != nil {
		return s.wsSrv.Close()
	}
	return nil
}

// serve runs one connection's read loop end to end: Init, then repeatedly
// ReadPacket → engine.Received, until the transport closes or Received
// reports a terminal error; Shutdown always runs exactly once (spec §4.H,
// §5).
func (s *Server) serve(fc frameConn) {
	ctx := context.Background()
	self := &selfHandle{}

	c := engine.Init(engine.InitParams{
		Zone:             s.zoneName,
		PeerAddress:      fc.RemoteAddr(),
		Self:             self,
		Session:          s.collab.Session,
		ACL:              s.collab.ACL,
		Caps:             s.collab.Caps,
		ConnMgr:          s.collab.ConnMgr,
		BrokerRouting:    s.collab.BrokerRouting,
		Hooks:            s.collab.Hooks,
		Metrics:          s.collab.Metrics,
		MaxPacketSize:    s.zone.MaxPacketSize,
		Mountpoint:       s.zone.Mountpoint,
		EnableACL:        s.zone.EnableACL,
		MaxClientIDLen:   s.zone.MaxClientIDLen,
		KeepaliveBackoff: s.zone.KeepaliveBackoff,
		ServerTopicAliasMax: s.zone.TopicAliasMax,
	})
	c.SendFn = func(b []byte) error { return fc.WriteBytes(b) }

	// reasonCode is written by at most one of the timer goroutine (keepalive
	// fire) or this read loop before fc.Close unblocks the other; atomic
	// keeps that handoff race-free (spec §5: Shutdown runs exactly once).
	var reasonCode int32 // 0=transport_closed, 1=keepalive_timeout, 2=normal
	self.onFire = func() {
		atomic.CompareAndSwapInt32(&reasonCode, 0, 1)
		_ = fc.Close()
	}

	defer func() {
		reason := engine.ReasonTransportClosed
		switch atomic.LoadInt32(&reasonCode) {
		case 1:
			reason = engine.ReasonKeepaliveTimeout
		case 2:
			reason = engine.ReasonNormal
		}
		engine.Shutdown(ctx, c, reason)
		if s.collab.Detach != nil && len(c.ClientID) > 0 {
			s.collab.Detach(c.ClientID)
		}
		_ = fc.Close()
	}()

	for {
		p, err := fc.ReadPacket(c.MaxPacketSize, c.ProtoVersion)
		if err != nil {
			if err != io.EOF {
				log.Debug("read failed", zap.Error(err), zap.String("remote", fc.RemoteAddr()))
			}
			return
		}
		if err := engine.Received(ctx, c, p); err != nil {
			return
		}
		if _, ok := p.(*packet.Connect); ok && len(c.ClientID) > 0 && s.collab.Attach != nil {
			s.collab.Attach(c.ClientID, func(ctx context.Context, ev engine.Event) error {
				return engine.Deliver(c, ev)
			})
		}
		if _, ok := p.(*packet.Disconnect); ok {
			atomic.StoreInt32(&reasonCode, 2)
			return
		}
	}
}

// tcpFrame adapts a raw net.Conn to frameConn.
type tcpFrame struct {
	conn net.Conn
}

func (f *tcpFrame) ReadPacket(maxPacketSize uint32, version packet.Version) (packet.Packet, error) {
	fh, err := packet.ReadFixedHeader(f.conn)
	if err != nil {
		return nil, err
	}
	if maxPacketSize > 0 && fh.RemainLength > maxPacketSize {
		return nil, io.ErrShortBuffer
	}
	return packet.Decode(fh, version, f.conn)
}

func (f *tcpFrame) WriteBytes(b []byte) error {
	_, err := f.conn.Write(b)
	return err
}

func (f *tcpFrame) Close() error        { return f.conn.Close() }
func (f *tcpFrame) RemoteAddr() string  { return f.conn.RemoteAddr().String() }

// wsFrame adapts a gorilla/websocket connection to frameConn: each MQTT
// control packet is carried in its own binary WS message, the convention
// chenquan-lighthouse's server split between a TCP and a WS listener.
type wsFrame struct {
	conn *websocket.Conn
	buf  bytes.Buffer
}

func (f *wsFrame) ReadPacket(maxPacketSize uint32, version packet.Version) (packet.Packet, error) {
	for f.buf.Len() == 0 {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		f.buf.Write(data)
	}
	fh, err := packet.ReadFixedHeader(&f.buf)
	if err != nil {
		return nil, err
	}
	if maxPacketSize > 0 && fh.RemainLength > maxPacketSize {
		return nil, io.ErrShortBuffer
	}
	return packet.Decode(fh, version, &f.buf)
}

func (f *wsFrame) WriteBytes(b []byte) error {
	return f.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (f *wsFrame) Close() error       { return f.conn.Close() }
func (f *wsFrame) RemoteAddr() string { return f.conn.RemoteAddr().String() }
