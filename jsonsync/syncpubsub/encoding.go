package syncpubsub

import (
	"encoding/base64"
	"fmt"

	"jsonstore/jsonsync/common"
	"jsonstore/jsonsync/syncevent"
)

// Encoder turns an event into a payload.
type Encoder interface {
	Encode(e *syncevent.Event) ([]byte, error)
}

// Decoder turns a payload back into an event.
type Decoder interface {
	Decode(data []byte) (*syncevent.Event, error)
}

// EncoderDecoder combines Encoder and Decoder.
type EncoderDecoder interface {
	Encoder
	Decoder
}

// JSONEncoderDecoder uses the event wire form as is.
type JSONEncoderDecoder struct{}

func (ed *JSONEncoderDecoder) Encode(e *syncevent.Event) ([]byte, error) {
	return e.Encode()
}

func (ed *JSONEncoderDecoder) Decode(data []byte) (*syncevent.Event, error) {
	return syncevent.Decode(data)
}

// Base64EncoderDecoder wraps another codec in standard base64.
type Base64EncoderDecoder struct {
	underlying EncoderDecoder
}

// NewBase64EncoderDecoder wraps underlying, or the JSON codec when nil.
func NewBase64EncoderDecoder(underlying EncoderDecoder) *Base64EncoderDecoder {
	if underlying == nil {
		underlying = &JSONEncoderDecoder{}
	}
	return &Base64EncoderDecoder{underlying: underlying}
}

func (ed *Base64EncoderDecoder) Encode(e *syncevent.Event) ([]byte, error) {
	data, err := ed.underlying.Encode(e)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

func (ed *Base64EncoderDecoder) Decode(data []byte) (*syncevent.Event, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return nil, common.ErrMalformedEvent{Message: "bad base64 payload: " + err.Error()}
	}
	return ed.underlying.Decode(decoded[:n])
}

// GetEncoderDecoder returns the codec for format.
func GetEncoderDecoder(format EncodingFormat) (EncoderDecoder, error) {
	switch format {
	case EncodingFormatJSON, "":
		return &JSONEncoderDecoder{}, nil
	case EncodingFormatBase64:
		return NewBase64EncoderDecoder(&JSONEncoderDecoder{}), nil
	default:
		return nil, fmt.Errorf("unsupported encoding format: %s", format)
	}
}

// DecodeEvent decodes a payload received in format. Undecodable payloads
// yield common.ErrMalformedEvent.
func DecodeEvent(data []byte, format EncodingFormat) (*syncevent.Event, error) {
	codec, err := GetEncoderDecoder(format)
	if err != nil {
		return nil, common.ErrMalformedEvent{Message: err.Error()}
	}
	return codec.Decode(data)
}

// EncodeEvent encodes e in format.
func EncodeEvent(e *syncevent.Event, format EncodingFormat) ([]byte, error) {
	codec, err := GetEncoderDecoder(format)
	if err != nil {
		return nil, err
	}
	return codec.Encode(e)
}
