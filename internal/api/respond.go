// respond.go - Response encoding with optional MessagePack negotiation
package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is served when the client lists it in Accept.
const MIMEApplicationMsgpack = "application/msgpack"

// wantsMsgpack reports whether the client asked for MessagePack.
func wantsMsgpack(c echo.Context) bool {
	for _, part := range strings.Split(c.Request().Header.Get(echo.HeaderAccept), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mt, MIMEApplicationMsgpack) || strings.EqualFold(mt, "application/x-msgpack") {
			return true
		}
	}
	return false
}

// rawPayload is implemented by values that carry the backend's reply as received.
type rawPayload interface {
	RawJSON() json.RawMessage
}

// respond writes v as JSON, or as MessagePack using the same field names when negotiated.
// A backend payload is relayed as received, not re-encoded from its typed fields.
func respond(c echo.Context, status int, v interface{}) error {
	var raw json.RawMessage
	if p, ok := v.(rawPayload); ok {
		raw = p.RawJSON()
	}

	if !wantsMsgpack(c) {
		if len(raw) > 0 {
			return c.JSONBlob(status, raw)
		}
		return c.JSON(status, v)
	}

	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var generic interface{}
		if err := dec.Decode(&generic); err != nil {
			return NewInternalError("failed to decode backend payload", err)
		}
		v = normalizeNumbers(generic)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return NewInternalError("failed to encode response", err)
	}
	return c.Blob(status, MIMEApplicationMsgpack, buf.Bytes())
}

// normalizeNumbers turns json.Number values into int64 or float64 so integral
// counts stay integers on the MessagePack wire.
func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
	case []interface{}:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}
