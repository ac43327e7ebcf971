package host

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	quic "github.com/quic-go/quic-go"
)

// frameHeaderSize is the big-endian length prefix in front of every frame
const frameHeaderSize = 4

// streamCanceled is the QUIC error code used when a requester gives up
const streamCanceled quic.StreamErrorCode = 1

// Response status byte
const (
	statusOK byte = iota
	statusError
	statusNoHandler
)

// ErrMessageTooLarge is returned when a frame exceeds the configured maximum
var ErrMessageTooLarge = errors.New("message too large")

// RemoteError carries the error a remote handler returned
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}

func writeFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if uint64(length) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, length, maxSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// encodeResponse prefixes the handler result with a status byte
func encodeResponse(reply []byte, err error) []byte {
	switch {
	case errors.Is(err, ErrNoHandler):
		return []byte{statusNoHandler}
	case err != nil:
		return append([]byte{statusError}, err.Error()...)
	default:
		return append([]byte{statusOK}, reply...)
	}
}

func decodeResponse(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	switch data[0] {
	case statusOK:
		return data[1:], nil
	case statusError:
		return nil, &RemoteError{Message: string(data[1:])}
	case statusNoHandler:
		return nil, ErrNoHandler
	default:
		return nil, fmt.Errorf("unknown response status %d", data[0])
	}
}
