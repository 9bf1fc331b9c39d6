package protocol

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// DefaultMaxMessageSize caps a single backend message at 8 MiB. Oversized
// frames indicate a corrupt stream or a misconfigured server and are
// reported as protocol errors rather than allocated.
const DefaultMaxMessageSize = 8 << 20

// Reader decodes framed backend messages from the server stream.
type Reader struct {
	r       *bufio.Reader
	maxSize int
	// payload buffer reused across messages
	buf []byte
}

// NewReader wraps rd with the default message size limit.
func NewReader(rd io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(rd, 8192), maxSize: DefaultMaxMessageSize}
}

// SetMaxMessageSize overrides the frame size limit. Zero restores the
// default.
func (r *Reader) SetMaxMessageSize(n int) {
	if n <= 0 {
		n = DefaultMaxMessageSize
	}
	r.maxSize = n
}

// ReadByte reads a single raw byte, used for the SSL negotiation answer
// which is sent outside normal framing.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, core.WrapError(core.KindConnectionDisconnected, "read", err)
	}
	return b, nil
}

// Next reads one backend message and returns its type byte and payload.
// The payload is valid until the next call.
func (r *Reader) Next() (byte, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, core.Errorf(core.KindConnectionDisconnected, "server closed the connection")
		}
		return 0, nil, core.WrapError(core.KindConnectionDisconnected, "read message header", err)
	}
	typ := header[0]
	length := int(binary.BigEndian.Uint32(header[1:]))
	if length < 4 {
		return 0, nil, core.Errorf(core.KindProtocol, "invalid message length %d for type %q", length, typ)
	}
	payload := length - 4
	if payload > r.maxSize {
		return 0, nil, core.Errorf(core.KindProtocol,
			"message of %d bytes exceeds the %d byte limit", payload, r.maxSize)
	}
	if cap(r.buf) < payload {
		r.buf = make([]byte, payload)
	}
	r.buf = r.buf[:payload]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return 0, nil, core.WrapError(core.KindConnectionDisconnected, "read message body", err)
	}
	return typ, r.buf, nil
}

// Buf is a cursor over one message payload.
type Buf struct {
	data []byte
	pos  int
	err  error
}

// NewBuf wraps a payload.
func NewBuf(data []byte) *Buf {
	return &Buf{data: data}
}

// Err reports the first decode error, if any.
func (b *Buf) Err() error {
	return b.err
}

func (b *Buf) fail() {
	if b.err == nil {
		b.err = core.Errorf(core.KindProtocol, "truncated message payload")
	}
}

// Byte reads one byte.
func (b *Buf) Byte() byte {
	if b.pos >= len(b.data) {
		b.fail()
		return 0
	}
	v := b.data[b.pos]
	b.pos++
	return v
}

// Int16 reads a big-endian int16.
func (b *Buf) Int16() int16 {
	if b.pos+2 > len(b.data) {
		b.fail()
		return 0
	}
	v := int16(binary.BigEndian.Uint16(b.data[b.pos:]))
	b.pos += 2
	return v
}

// Int32 reads a big-endian int32.
func (b *Buf) Int32() int32 {
	if b.pos+4 > len(b.data) {
		b.fail()
		return 0
	}
	v := int32(binary.BigEndian.Uint32(b.data[b.pos:]))
	b.pos += 4
	return v
}

// String reads a NUL-terminated string.
func (b *Buf) String() string {
	for i := b.pos; i < len(b.data); i++ {
		if b.data[i] == 0 {
			s := string(b.data[b.pos:i])
			b.pos = i + 1
			return s
		}
	}
	b.fail()
	return ""
}

// Bytes reads exactly n bytes.
func (b *Buf) Bytes(n int) []byte {
	if n < 0 || b.pos+n > len(b.data) {
		b.fail()
		return nil
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v
}

// Rest returns the unread remainder of the payload.
func (b *Buf) Rest() []byte {
	v := b.data[b.pos:]
	b.pos = len(b.data)
	return v
}

// FieldDescription is one column entry of a RowDescription message.
type FieldDescription struct {
	Name    string
	TableID uint32
	AttrNum int16
	TypeOID uint32
	TypeLen int16
	TypeMod int32
	Format  int16
}

// ParseRowDescription decodes a 'T' payload.
func ParseRowDescription(payload []byte) ([]FieldDescription, error) {
	b := NewBuf(payload)
	n := int(b.Int16())
	fields := make([]FieldDescription, 0, n)
	for i := 0; i < n; i++ {
		fields = append(fields, FieldDescription{
			Name:    b.String(),
			TableID: uint32(b.Int32()),
			AttrNum: b.Int16(),
			TypeOID: uint32(b.Int32()),
			TypeLen: b.Int16(),
			TypeMod: b.Int32(),
			Format:  b.Int16(),
		})
	}
	return fields, b.Err()
}

// ParseDataRow decodes a 'D' payload into raw column values; a nil element
// is SQL NULL.
func ParseDataRow(payload []byte) ([][]byte, error) {
	b := NewBuf(payload)
	n := int(b.Int16())
	values := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		size := int(b.Int32())
		if size < 0 {
			values = append(values, nil)
			continue
		}
		raw := b.Bytes(size)
		if raw == nil {
			break
		}
		// copy out of the shared read buffer
		v := make([]byte, size)
		copy(v, raw)
		values = append(values, v)
	}
	return values, b.Err()
}

// ErrorFields holds the tagged fields of an ErrorResponse or NoticeResponse.
type ErrorFields struct {
	Severity string
	Code     string
	Message  string
	Detail   string
	Hint     string
	Position int
	Where    string
	Schema   string
	Table    string
	Column   string
	Routine  string
}

// ParseErrorFields decodes an 'E' or 'N' payload.
func ParseErrorFields(payload []byte) ErrorFields {
	b := NewBuf(payload)
	var f ErrorFields
	for {
		tag := b.Byte()
		if tag == 0 || b.Err() != nil {
			break
		}
		v := b.String()
		switch tag {
		case 'S':
			f.Severity = v
		case 'C':
			f.Code = v
		case 'M':
			f.Message = v
		case 'D':
			f.Detail = v
		case 'H':
			f.Hint = v
		case 'P':
			f.Position = atoi(v)
		case 'W':
			f.Where = v
		case 's':
			f.Schema = v
		case 't':
			f.Table = v
		case 'c':
			f.Column = v
		case 'R':
			f.Routine = v
		}
	}
	return f
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// ParseCommandComplete extracts the affected row count from a
// CommandComplete tag like "INSERT 0 5", "UPDATE 3" or "SELECT 10".
func ParseCommandComplete(payload []byte) (string, int64) {
	tag := string(payload)
	if n := len(tag); n > 0 && tag[n-1] == 0 {
		tag = tag[:n-1]
	}
	last := -1
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == ' ' {
			last = i
			break
		}
	}
	if last < 0 {
		return tag, 0
	}
	var rows int64
	for i := last + 1; i < len(tag); i++ {
		c := tag[i]
		if c < '0' || c > '9' {
			return tag, 0
		}
		rows = rows*10 + int64(c-'0')
	}
	return tag[:last], rows
}
