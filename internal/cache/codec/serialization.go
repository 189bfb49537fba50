package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"time"

	"cache-engine/internal/common/errors"
)

// Format identifies a value serialization format.
type Format string

const (
	// FormatJSON is the portable, human-inspectable format
	FormatJSON Format = "json"
	// FormatGob is the compact binary format
	FormatGob Format = "gob"
)

func init() {
	// Concrete types that may appear behind interface{} values
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register(time.Time{})
}

// ParseFormat converts a string into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatGob:
		return Format(s), nil
	default:
		return "", errors.Validation("unknown serialization format: " + s)
	}
}

// Serializer converts typed values to and from bytes. The format is
// selectable per call; DefaultFormat is used when the caller passes an
// empty format.
type Serializer struct {
	defaultFormat Format
}

// NewSerializer creates a Serializer with the given default format.
func NewSerializer(defaultFormat Format) *Serializer {
	return &Serializer{defaultFormat: defaultFormat}
}

// DefaultFormat returns the globally configured format.
func (s *Serializer) DefaultFormat() Format {
	return s.defaultFormat
}

// Resolve returns format if set, otherwise the configured default.
func (s *Serializer) Resolve(format Format) Format {
	if format == "" {
		return s.defaultFormat
	}
	return format
}

// Encode converts a value to bytes in the given format.
func (s *Serializer) Encode(value interface{}, format Format) ([]byte, error) {
	switch s.Resolve(format) {
	case FormatJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Serialization("failed to encode value as json", err)
		}
		return data, nil
	case FormatGob:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
			return nil, errors.Serialization("failed to encode value as gob", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Serialization("unknown serialization format: "+string(format), nil)
	}
}

// Decode converts bytes back into a value. A payload claiming an
// unrecognized format fails, never silently coerces.
func (s *Serializer) Decode(data []byte, format Format) (interface{}, error) {
	switch format {
	case FormatJSON:
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, errors.Serialization("failed to decode json payload", err)
		}
		return value, nil
	case FormatGob:
		var value interface{}
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&value); err != nil {
			return nil, errors.Serialization("failed to decode gob payload", err)
		}
		return value, nil
	default:
		return nil, errors.Serialization("unknown serialization format: "+string(format), nil)
	}
}
