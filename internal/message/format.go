package message

import (
	"fmt"
	"mime"
)

// PayloadFormat tags how payload bytes should be interpreted.
type PayloadFormat uint8

const (
	FormatUnspecified PayloadFormat = iota
	FormatProtobuf
	FormatJSON
	FormatRaw
	FormatText
)

// String returns the format name.
func (f PayloadFormat) String() string {
	switch f {
	case FormatUnspecified:
		return "unspecified"
	case FormatProtobuf:
		return "protobuf"
	case FormatJSON:
		return "json"
	case FormatRaw:
		return "raw"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("PayloadFormat(%d)", uint8(f))
	}
}

// Valid reports whether f is a known format.
func (f PayloadFormat) Valid() bool {
	return f <= FormatText
}

// ContentType returns the MIME type used on the wire, or "" for unspecified.
func (f PayloadFormat) ContentType() string {
	switch f {
	case FormatProtobuf:
		return "application/x-protobuf"
	case FormatJSON:
		return "application/json"
	case FormatRaw:
		return "application/octet-stream"
	case FormatText:
		return "text/plain"
	default:
		return ""
	}
}

// ParseContentType maps a MIME type back to a PayloadFormat. Parameters
// such as charset are ignored. Unknown types yield FormatUnspecified.
func ParseContentType(contentType string) PayloadFormat {
	if contentType == "" {
		return FormatUnspecified
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatUnspecified
	}
	switch mediaType {
	case "application/x-protobuf", "application/protobuf":
		return FormatProtobuf
	case "application/json":
		return FormatJSON
	case "application/octet-stream":
		return FormatRaw
	case "text/plain":
		return FormatText
	default:
		return FormatUnspecified
	}
}
