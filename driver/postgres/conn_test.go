package postgres

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/postgres/protocol"
)

// scriptedConn builds a Conn whose reader replays canned backend frames.
func scriptedConn(t *testing.T, frames []byte) *Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return &Conn{
		netc:   client,
		reader: protocol.NewReader(bytes.NewReader(frames)),
		writer: protocol.NewWriter(),
		params: map[string]string{},
	}
}

func TestCorruptRowDescriptionCondemnsConn(t *testing.T) {
	// RowDescription whose payload is cut off before the field count
	c := scriptedConn(t, []byte{'T', 0, 0, 0, 5, 0})

	_, err := c.collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindProtocol, core.KindOf(err))
	assert.True(t, c.closed, "unread frames may still be buffered; the conn must not be reused")

	// every later round trip fails fast instead of reading stale frames
	_, err = c.roundTrip(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Equal(t, core.KindConnectionDisconnected, core.KindOf(err))
}

func TestUnexpectedMessageCondemnsConn(t *testing.T) {
	c := scriptedConn(t, []byte{'X', 0, 0, 0, 4})

	_, err := c.collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindProtocol, core.KindOf(err))
	assert.True(t, c.closed)
}

func TestUndecodableDataRowCondemnsConn(t *testing.T) {
	var frames []byte
	// RowDescription: one int8 column named "id"
	payload := []byte{0, 1}
	payload = append(payload, "id\x00"...)
	payload = append(payload,
		0, 0, 0, 0, // table oid
		0, 0, // attnum
		0, 0, 0, 20, // type oid: int8
		0, 8, // type length
		0, 0, 0, 0, // type modifier
		0, 0, // text format
	)
	frames = append(frames, 'T', 0, 0, 0, byte(4+len(payload)))
	frames = append(frames, payload...)
	// DataRow whose single cell is not a number
	cell := []byte("not-a-number")
	row := []byte{0, 1, 0, 0, 0, byte(len(cell))}
	row = append(row, cell...)
	frames = append(frames, 'D', 0, 0, 0, byte(4+len(row)))
	frames = append(frames, row...)

	c := scriptedConn(t, frames)
	_, err := c.collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindProtocol, core.KindOf(err))
	assert.True(t, c.closed)
}
