// Copyright 2012 SocialCode. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package gelf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Message represents the contents of a GELF message.  It is serialized
// to JSON, optionally compressed, and possibly chunked before sending.
type Message struct {
	Version  string                 `json:"version"`
	Host     string                 `json:"host"`
	Short    string                 `json:"short_message"`
	Full     string                 `json:"full_message,omitempty"`
	TimeUnix float64                `json:"timestamp"`
	Level    int32                  `json:"level"`
	Facility string                 `json:"facility,omitempty"`
	Extra    map[string]interface{} `json:"-"`
	RawExtra json.RawMessage        `json:"-"`
}

// Syslog severity levels used for the GELF level field.
const (
	LOG_EMERG   = 0
	LOG_ALERT   = 1
	LOG_CRIT    = 2
	LOG_ERR     = 3
	LOG_WARNING = 4
	LOG_NOTICE  = 5
	LOG_INFO    = 6
	LOG_DEBUG   = 7
)

// clampLevel forces lvl onto the syslog 0..7 scale.  Custom levels
// outside the range map to the nearest bound instead of being dropped.
func clampLevel(lvl int32) int32 {
	if lvl < LOG_EMERG {
		return LOG_EMERG
	}
	if lvl > LOG_DEBUG {
		return LOG_DEBUG
	}
	return lvl
}

// MarshalJSONBuf serializes the message into buf as a single GELF JSON
// object, merging in Extra and RawExtra before the closing brace.
func (m *Message) MarshalJSONBuf(buf *bytes.Buffer) error {
	mm := *m
	mm.Level = clampLevel(mm.Level)
	if mm.Short == "" {
		// an empty short_message is invalid GELF; send a placeholder
		mm.Short = "-"
	}

	b, err := json.Marshal(&mm)
	if err != nil {
		return err
	}

	// write up to the final '}'
	if _, err = buf.Write(b[:len(b)-1]); err != nil {
		return err
	}

	if len(mm.Extra) > 0 {
		norm, err := normalizeExtra(mm.Extra)
		if err != nil {
			return err
		}
		eb, err := json.Marshal(norm)
		if err != nil {
			return err
		}
		// merge the two maps
		if len(eb) > 2 {
			buf.WriteByte(',')
			buf.Write(eb[1 : len(eb)-1])
		}
	}

	if len(mm.RawExtra) > 0 {
		raw := bytes.TrimSpace(mm.RawExtra)
		if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
			return fmt.Errorf("gelf: RawExtra must be a JSON object")
		}
		if inner := bytes.TrimSpace(raw[1 : len(raw)-1]); len(inner) > 0 {
			buf.WriteByte(',')
			buf.Write(inner)
		}
	}

	buf.WriteByte('}')
	return nil
}

func (m *Message) toBytes(buf *bytes.Buffer) ([]byte, error) {
	if err := m.MarshalJSONBuf(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Message) UnmarshalJSON(data []byte) error {
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "version":
			m.Version, _ = v.(string)
		case "host":
			m.Host, _ = v.(string)
		case "short_message":
			m.Short, _ = v.(string)
		case "full_message":
			m.Full, _ = v.(string)
		case "timestamp":
			ts, _ := v.(float64)
			m.TimeUnix = ts
		case "level":
			lvl, _ := v.(float64)
			m.Level = int32(lvl)
		case "facility":
			m.Facility, _ = v.(string)
		default:
			if len(k) > 0 && k[0] == '_' {
				if m.Extra == nil {
					m.Extra = make(map[string]interface{})
				}
				m.Extra[k] = v
			}
		}
	}
	return nil
}

// normalizeExtra maps caller-supplied additional-field names onto
// valid GELF ones and coerces values to JSON scalars.  Numeric values
// stay JSON numbers, everything else becomes a string.
func normalizeExtra(extra map[string]interface{}) (map[string]interface{}, error) {
	norm := make(map[string]interface{}, len(extra))
	for k, v := range extra {
		nk, err := normalizeExtraKey(k)
		if err != nil {
			return nil, err
		}
		norm[nk] = normalizeExtraValue(v)
	}
	return norm, nil
}

// normalizeExtraKey strips leading non-alphanumeric characters and
// prefixes the rest with "_".  Names that vanish entirely or collide
// with the reserved "id" and "version" fields are reported as errors
// instead of being silently mangled.
func normalizeExtraKey(key string) (string, error) {
	trimmed := strings.TrimLeftFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return "", fmt.Errorf("gelf: extra field %q: empty name after normalization", key)
	}
	switch trimmed {
	case "id", "version":
		return "", fmt.Errorf("gelf: extra field %q collides with reserved field %q", key, trimmed)
	}
	return "_" + trimmed, nil
}

func normalizeExtraValue(v interface{}) interface{} {
	switch v.(type) {
	case nil:
		return nil
	case string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	default:
		return fmt.Sprint(v)
	}
}
