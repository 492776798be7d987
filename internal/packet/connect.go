/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/xerror"
)

type (
	// Connect represents the MQTT CONNECT packet.
	Connect struct {
		FixedHeader *FixedHeader

		Version       Version
		ProtocolName  []byte
		ProtocolLevel byte
		ConnectFlags

		// KeepAlive is a time interval measured in seconds. Expressed as a
		// 16-bit word, it is the maximum time interval permitted to elapse
		// between the point at which the client finishes transmitting one
		// control packet and the point it starts sending the next.
		KeepAlive uint16

		Properties     Properties
		WillProperties Properties
		WillTopic      []byte
		WillMessage    []byte

		ClientId []byte
		Username []byte
		Password []byte
	}

	// ConnectFlags are the parameters packed into the CONNECT flags byte.
	ConnectFlags struct {
		CleanSession bool
		WillFlag     bool
		WillQoS      byte
		WillRetain   bool
		PasswordFlag bool
		UsernameFlag bool
	}
)

// NewConnect decodes a CONNECT packet from r.
func NewConnect(fixedHeader *FixedHeader, r io.Reader) (*Connect, error) {
	if fixedHeader.Flags != FixedHeaderFlagReserved {
		return nil, xerror.ErrMalformed
	}
	p := &Connect{FixedHeader: fixedHeader}
	if err := p.Decode(r); err != nil {
		return nil, err
	}
	return p, nil
}

var ProtocolNamePrefix = []byte{0x00, 0x04}

const (
	_ = 1 << iota
	cleanSessionTrue
	willFlagTrue
	willQoS1
	willQoS2
	willRetainTrue
	passwordFlagTrue
	usernameFlagTrue
)

// Encode writes the CONNECT packet's wire form to w.
func (c *Connect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.Write(ProtocolNamePrefix)
	buf.Write(c.ProtocolName)
	buf.WriteByte(c.ProtocolLevel)

	var usernameFlag, passwordFlag, willRetain, willFlag, willQoS, cleanSession byte
	if c.UsernameFlag {
		usernameFlag = usernameFlagTrue
	}
	if c.PasswordFlag {
		passwordFlag = passwordFlagTrue
	}
	if c.WillRetain {
		willRetain = willRetainTrue
	}
	switch c.WillQoS {
	case 1:
		willQoS = willQoS1
	case 2:
		willQoS = willQoS2
	}
	if c.WillFlag {
		willFlag = willFlagTrue
	}
	if c.CleanSession {
		cleanSession = cleanSessionTrue
	}
	buf.WriteByte(usernameFlag | passwordFlag | willRetain | willFlag | willQoS | cleanSession)
	if err := writeUint16(buf, c.KeepAlive); err != nil {
		return err
	}

	if c.Version == V5 {
		if err := EncodeProperties(buf, c.Properties); err != nil {
			return err
		}
	}

	clientIDBytes, _, err := UTF8EncodedStrings(c.ClientId)
	if err != nil {
		return err
	}
	buf.Write(clientIDBytes)

	if c.WillFlag {
		if c.Version == V5 {
			if err := EncodeProperties(buf, c.WillProperties); err != nil {
				return err
			}
		}
		willTopicBytes, _, err := UTF8EncodedStrings(c.WillTopic)
		if err != nil {
			return err
		}
		buf.Write(willTopicBytes)
		willMsgBytes, _, err := UTF8EncodedStrings(c.WillMessage)
		if err != nil {
			return err
		}
		buf.Write(willMsgBytes)
	}
	if c.UsernameFlag {
		usernameBytes, _, err := UTF8EncodedStrings(c.Username)
		if err != nil {
			return err
		}
		buf.Write(usernameBytes)
	}
	if c.PasswordFlag {
		passwordBytes, _, err := UTF8EncodedStrings(c.Password)
		if err != nil {
			return err
		}
		buf.Write(passwordBytes)
	}
	return encode(c.FixedHeader, buf, w)
}

// Decode reads the variable header and payload of a CONNECT packet from r.
func (c *Connect) Decode(r io.Reader) error {
	restBuffer := make([]byte, c.FixedHeader.RemainLength)
	if _, err := io.ReadFull(r, restBuffer); err != nil {
		return err
	}
	buf := bytes.NewBuffer(restBuffer)

	protocolName, err := UTF8DecodedStrings(true, buf)
	if err != nil {
		return err
	}
	c.ProtocolName = protocolName

	c.ProtocolLevel, err = buf.ReadByte()
	if err != nil {
		return xerror.ErrMalformed
	}
	c.Version = Version(c.ProtocolLevel)

	connectFlags, err := buf.ReadByte()
	if err != nil {
		return xerror.ErrMalformed
	}
	if reserved := 1 & connectFlags; reserved != 0 { // [MQTT-3.1.2-3]
		return xerror.ErrMalformed
	}
	c.CleanSession = (1 & (connectFlags >> 1)) > 0
	c.WillFlag = (1 & (connectFlags >> 2)) > 0
	c.WillQoS = 3 & (connectFlags >> 3)
	if !c.WillFlag && c.WillQoS != 0 { // [MQTT-3.1.2-11]
		return xerror.ErrMalformed
	}
	c.WillRetain = (1 & (connectFlags >> 5)) > 0
	if !c.WillFlag && c.WillRetain { // [MQTT-3.1.2-11]
		return xerror.ErrMalformed
	}
	c.PasswordFlag = (1 & (connectFlags >> 6)) > 0
	c.UsernameFlag = (1 & (connectFlags >> 7)) > 0

	c.KeepAlive, err = readUint16(buf)
	if err != nil {
		return err
	}

	if c.Version == V5 {
		props, err := DecodeProperties(buf)
		if err != nil {
			return err
		}
		c.Properties = props
	}

	return c.decodePayload(buf)
}

func (c *Connect) decodePayload(buf *bytes.Buffer) error {
	var err error
	c.ClientId, err = UTF8DecodedStrings(true, buf)
	if err != nil {
		return err
	}

	if IsVersion3(c.Version) && len(c.ClientId) == 0 && !c.CleanSession { // [MQTT-3.1.3-7]
		return xerror.ErrV3IdentifierRejected
	}

	if c.WillFlag {
		if c.Version == V5 {
			props, err := DecodeProperties(buf)
			if err != nil {
				return err
			}
			c.WillProperties = props
		}
		c.WillTopic, err = UTF8DecodedStrings(true, buf)
		if err != nil {
			return err
		}
		c.WillMessage, err = UTF8DecodedStrings(true, buf)
		if err != nil {
			return err
		}
	}
	if c.UsernameFlag {
		c.Username, err = UTF8DecodedStrings(true, buf)
		if err != nil {
			return err
		}
	}
	if c.PasswordFlag {
		c.Password, err = UTF8DecodedStrings(true, buf)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Connect) String() string {
	return fmt.Sprintf(
		"Connect - Version: %v, UsernameFlag: %v, PasswordFlag: %v, ProtocolName: %s, CleanSession: %v, KeepAlive: %v, ClientId: %s, WillFlag: %v, WillRetain: %v, WillQoS: %v",
		c.Version, c.UsernameFlag, c.PasswordFlag, c.ProtocolName, c.CleanSession, c.KeepAlive, c.ClientId, c.WillFlag, c.WillRetain, c.WillQoS)
}

// NewConnackPacket builds the CONNACK response to this CONNECT, applying the
// session-present rule [MQTT-3.2.2-2]: only set when the client did not ask
// for a clean session, the server actually reused prior state, and the
// handshake succeeded.
func (c *Connect) NewConnackPacket(reason code.Code, sessionReuse bool) *Connack {
	ack := &Connack{Version: c.Version, Reason: reason}
	if !c.CleanSession && sessionReuse && reason == code.Success {
		ack.SessionPresent = true
	}
	return ack
}
