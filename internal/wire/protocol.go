// Package wire defines the request/response framing for TRAIN_MODEL,
// SEND_DATASET, and RECV_DATASET (C6): one TCP connection carries exactly
// one request and one response, then closes.
package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pangea-net/traincoord/internal/codec"
	"github.com/pangea-net/traincoord/internal/dataset"
)

// Status is the fixed u8 status-code enum. READ_ERROR is local-only and
// never appears on the wire.
type Status uint8

const (
	StatusOK Status = iota
	StatusIdle
	StatusBusy
	StatusGoAhead
	StatusDuplData
	StatusDataFollows
	StatusDatasetUnknown
	StatusFactoryUnknown
	StatusDataError
	StatusReadError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusIdle:
		return "IDLE"
	case StatusBusy:
		return "BUSY"
	case StatusGoAhead:
		return "GO_AHEAD"
	case StatusDuplData:
		return "DUPL_DATA"
	case StatusDataFollows:
		return "DATA_FOLLOWS"
	case StatusDatasetUnknown:
		return "DATASET_UNKNOWN"
	case StatusFactoryUnknown:
		return "FACTORY_UNKNOWN"
	case StatusDataError:
		return "DATA_ERROR"
	case StatusReadError:
		return "READ_ERROR"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// InvalidResponseFlag is OR'd onto an unexpected response byte to mark it
// invalid, per the protocol-mismatch error taxonomy.
const InvalidResponseFlag = 0x80

// IsInvalid reports whether s was marked invalid by InvalidResponseFlag.
func (s Status) IsInvalid() bool {
	return uint8(s)&InvalidResponseFlag != 0
}

// Request identifies which of the three request shapes a client is
// sending.
type Request uint8

const (
	RequestTrainModel Request = iota
	RequestSendDataset
	RequestRecvDataset
)

// FetchDecision is the client's score-gate verdict on a TRAIN_MODEL
// response.
type FetchDecision uint8

const (
	DiscardCode FetchDecision = iota
	SendCode
)

// Header is the 3-byte value every accepted connection receives
// immediately: status (IDLE/BUSY), current worker count, and worker-count
// ceiling — in that order, matching net.c's send_header.
type Header struct {
	Status         Status
	CurrentWorkers uint8
	MaxWorkers     uint8
}

func WriteHeader(w *bufio.Writer, h Header) error {
	if err := codec.WriteU8(w, byte(h.Status)); err != nil {
		return err
	}
	if err := codec.WriteU8(w, h.CurrentWorkers); err != nil {
		return err
	}
	return codec.WriteU8(w, h.MaxWorkers)
}

func ReadHeader(r *bufio.Reader) (Header, error) {
	status, err := codec.ReadU8(r)
	if err != nil {
		return Header{}, err
	}
	cur, err := codec.ReadU8(r)
	if err != nil {
		return Header{}, err
	}
	max, err := codec.ReadU8(r)
	if err != nil {
		return Header{}, err
	}
	return Header{Status: Status(status), CurrentWorkers: cur, MaxWorkers: max}, nil
}

// WriteHash writes a dataset.Hash as HashSize raw bytes (no length prefix:
// its width is fixed).
func WriteHash(w *bufio.Writer, h dataset.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func ReadHash(r *bufio.Reader) (dataset.Hash, error) {
	var h dataset.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, err
	}
	return h, nil
}
