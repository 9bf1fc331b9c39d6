// Package protocol implements the PostgreSQL frontend/backend wire
// protocol, version 3.0: message framing, the frontend message writers and
// the backend message parsers used by the native driver.
package protocol

import (
	"encoding/binary"
)

// Backend message type bytes.
const (
	MsgAuthentication     = 'R'
	MsgBackendKeyData     = 'K'
	MsgBindComplete       = '2'
	MsgCloseComplete      = '3'
	MsgCommandComplete    = 'C'
	MsgDataRow            = 'D'
	MsgEmptyQueryResponse = 'I'
	MsgErrorResponse      = 'E'
	MsgNoData             = 'n'
	MsgNoticeResponse     = 'N'
	MsgParameterDesc      = 't'
	MsgParameterStatus    = 'S'
	MsgParseComplete      = '1'
	MsgPortalSuspended    = 's'
	MsgReadyForQuery      = 'Z'
	MsgRowDescription     = 'T'
)

// Authentication sub-codes carried in an 'R' message.
const (
	AuthOK                = 0
	AuthCleartextPassword = 3
	AuthMD5Password       = 5
	AuthSASL              = 10
	AuthSASLContinue      = 11
	AuthSASLFinal         = 12
)

// Protocol version 3.0 and the SSLRequest pseudo-version.
const (
	ProtocolVersion = 196608
	SSLRequestCode  = 80877103
)

// Transaction status bytes reported by ReadyForQuery.
const (
	TxStatusIdle   = 'I'
	TxStatusInTx   = 'T'
	TxStatusFailed = 'E'
)

// Writer accumulates frontend messages. Each message is framed as a 1-byte
// type, a 4-byte big-endian length that includes itself, and the payload.
// The startup and SSL request messages carry no type byte.
type Writer struct {
	buf []byte
	// start of the current message's length word
	lenAt int
}

// NewWriter returns a Writer with a modest preallocated buffer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 512)}
}

// Reset discards any buffered messages.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Bytes returns the framed messages buffered so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) begin(typ byte) {
	if typ != 0 {
		w.buf = append(w.buf, typ)
	}
	w.lenAt = len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
}

func (w *Writer) finish() {
	binary.BigEndian.PutUint32(w.buf[w.lenAt:], uint32(len(w.buf)-w.lenAt))
}

func (w *Writer) string(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) int16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) int32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// SSLRequest asks the server whether it is willing to negotiate TLS. The
// server answers with a single 'S' or 'N' byte outside normal framing.
func (w *Writer) SSLRequest() {
	w.begin(0)
	w.int32(SSLRequestCode)
	w.finish()
}

// Startup writes the startup message with the given parameter pairs
// (user, database, application_name, ...).
func (w *Writer) Startup(params map[string]string) {
	w.begin(0)
	w.int32(ProtocolVersion)
	for k, v := range params {
		w.string(k)
		w.string(v)
	}
	w.buf = append(w.buf, 0)
	w.finish()
}

// Password writes a 'p' message carrying a cleartext or md5 response.
func (w *Writer) Password(response string) {
	w.begin('p')
	w.string(response)
	w.finish()
}

// SASLInitialResponse writes a 'p' message naming the mechanism and the
// client-first SCRAM payload.
func (w *Writer) SASLInitialResponse(mechanism string, payload []byte) {
	w.begin('p')
	w.string(mechanism)
	w.int32(int32(len(payload)))
	w.buf = append(w.buf, payload...)
	w.finish()
}

// SASLResponse writes a 'p' message carrying the client-final SCRAM payload.
func (w *Writer) SASLResponse(payload []byte) {
	w.begin('p')
	w.buf = append(w.buf, payload...)
	w.finish()
}

// Parse writes a 'P' message creating a named (or unnamed, name == "")
// prepared statement. Parameter type OIDs may be zero to let the server
// infer them.
func (w *Writer) Parse(name, query string, paramOIDs []uint32) {
	w.begin('P')
	w.string(name)
	w.string(query)
	w.int16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.int32(int32(oid))
	}
	w.finish()
}

// Bind writes a 'B' message binding text-format parameters to a portal.
// A nil element of params is sent as SQL NULL (-1 length).
func (w *Writer) Bind(portal, statement string, params [][]byte) {
	w.begin('B')
	w.string(portal)
	w.string(statement)
	// all parameters in text format
	w.int16(0)
	w.int16(int16(len(params)))
	for _, p := range params {
		if p == nil {
			w.int32(-1)
			continue
		}
		w.int32(int32(len(p)))
		w.buf = append(w.buf, p...)
	}
	// all results in text format
	w.int16(0)
	w.finish()
}

// Describe writes a 'D' message for a statement ('S') or portal ('P').
func (w *Writer) Describe(kind byte, name string) {
	w.begin('D')
	w.buf = append(w.buf, kind)
	w.string(name)
	w.finish()
}

// Execute writes an 'E' message running a portal. maxRows 0 means no limit.
func (w *Writer) Execute(portal string, maxRows int32) {
	w.begin('E')
	w.string(portal)
	w.int32(maxRows)
	w.finish()
}

// Close writes a 'C' message closing a statement ('S') or portal ('P').
func (w *Writer) Close(kind byte, name string) {
	w.begin('C')
	w.buf = append(w.buf, kind)
	w.string(name)
	w.finish()
}

// Sync writes an 'S' message ending the current extended-query batch.
func (w *Writer) Sync() {
	w.begin('S')
	w.finish()
}

// Query writes a 'Q' simple-query message.
func (w *Writer) Query(sql string) {
	w.begin('Q')
	w.string(sql)
	w.finish()
}

// Terminate writes an 'X' message announcing a graceful disconnect.
func (w *Writer) Terminate() {
	w.begin('X')
	w.finish()
}

// CancelRequest writes the out-of-band cancel message carrying the backend
// pid and secret key from BackendKeyData.
func (w *Writer) CancelRequest(pid, secret int32) {
	w.begin(0)
	w.int32(80877102)
	w.int32(pid)
	w.int32(secret)
	w.finish()
}
