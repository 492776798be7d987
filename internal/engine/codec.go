package engine

import (
	"bytes"

	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/xerror"
)

// sendPacket encodes p and writes it through c.SendFn. Encode failures and
// send failures both surface as xerror.SendFailure (spec §7): the engine
// never retries either.
func sendPacket(c *Conn, p packet.Packet) error {
	buf := &bytes.Buffer{}
	if err := p.Encode(buf); err != nil {
		return xerror.SendFailure
	}
	if err := c.send(buf.Bytes()); err != nil {
		return xerror.SendFailure
	}
	return nil
}
