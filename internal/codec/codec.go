package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

const (
	// SampleRate is the fixed rate of the PCM stream in Hz.
	SampleRate = 48_000

	typeSpectrum = "spectrum"
	typeDigital  = "digital"
)

var (
	// ErrMalformedFrame is returned for any inbound message that cannot be decoded.
	// Callers drop the frame and keep reading.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnsupportedMessage is returned for transport messages that carry no payload type
	// known to the stream, such as ping or close frames.
	ErrUnsupportedMessage = errors.New("unsupported message type")
)

// Kind identifies the decoded variant of a Message.
type Kind uint8

const (
	KindSpectrum Kind = iota + 1
	KindDigital
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindSpectrum:
		return "spectrum"
	case KindDigital:
		return "digital"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Message is one classified inbound transport message. Exactly one of
// Spectrum, Digital and Audio is set, matching Kind.
type Message struct {
	Kind     Kind
	Spectrum *spectrum.Frame
	Digital  *spectrum.DigitalEvent
	Audio    []int16
}

type envelope struct {
	Type string `json:"type"`
}

// Decode classifies a transport message by its websocket message type and unpacks it.
func Decode(messageType int, payload []byte) (Message, error) {
	switch messageType {
	case websocket.TextMessage:
		return DecodeText(payload)
	case websocket.BinaryMessage:
		samples, err := DecodePCM(payload)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindAudio, Audio: samples}, nil
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedMessage, messageType)
	}
}

// DecodeText parses a JSON control/spectrum envelope.
func DecodeText(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("%w: parsing envelope: %w", ErrMalformedFrame, err)
	}

	switch env.Type {
	case typeSpectrum:
		var f spectrum.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			return Message{}, fmt.Errorf("%w: parsing spectrum: %w", ErrMalformedFrame, err)
		}
		if err := validateFrame(&f); err != nil {
			return Message{}, err
		}
		return Message{Kind: KindSpectrum, Spectrum: &f}, nil

	case typeDigital:
		var ev spectrum.DigitalEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Message{}, fmt.Errorf("%w: parsing digital event: %w", ErrMalformedFrame, err)
		}
		return Message{Kind: KindDigital, Digital: &ev}, nil

	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, env.Type)
	}
}

// DecodePCM unpacks little-endian signed 16-bit mono samples.
func DecodePCM(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty audio chunk", ErrMalformedFrame)
	}
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: odd audio chunk length %d", ErrMalformedFrame, len(payload))
	}

	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return samples, nil
}

// EncodePCM packs samples the way the server sends them.
func EncodePCM(samples []int16) []byte {
	p := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return p
}

func validateFrame(f *spectrum.Frame) error {
	if len(f.Frequencies) != len(f.Power) {
		return fmt.Errorf("%w: %d frequencies for %d power bins", ErrMalformedFrame, len(f.Frequencies), len(f.Power))
	}
	for i := 1; i < len(f.Frequencies); i++ {
		if f.Frequencies[i] <= f.Frequencies[i-1] {
			return fmt.Errorf("%w: frequencies not increasing at bin %d", ErrMalformedFrame, i)
		}
	}
	return nil
}
