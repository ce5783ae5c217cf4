package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dmitrijs2005/chatmesh/internal/common"
)

// ReadFrame reads one length-prefixed payload from r and returns it
// without the prefix. Payloads larger than max are rejected with
// common.ErrFrameTooLarge before any of the body is read; max <= 0 means
// no limit.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if max > 0 && int64(n) > int64(max) {
		return nil, fmt.Errorf("%w: %d > %d", common.ErrFrameTooLarge, n, max)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w behind its length prefix in a single
// Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(Frame(payload))
	return err
}
