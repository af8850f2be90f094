package resultemitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	capturesession "github.com/e7canasta/orion-care-sensor/modules/capture-session"
)

// Result status values carried in Summary.Status.
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Summary is the wire form of one CaptureResult. Pixel data is never
// published, only per-buffer status.
type Summary struct {
	CameraID    uint32 `json:"camera_id" cbor:"camera_id" msgpack:"camera_id"`
	PipelineID  uint32 `json:"pipeline_id" cbor:"pipeline_id" msgpack:"pipeline_id"`
	FrameNumber uint32 `json:"frame_number" cbor:"frame_number" msgpack:"frame_number"`
	TraceID     string `json:"trace_id,omitempty" cbor:"trace_id,omitempty" msgpack:"trace_id,omitempty"`
	Status      string `json:"status" cbor:"status" msgpack:"status"`
	Error       string `json:"error,omitempty" cbor:"error,omitempty" msgpack:"error,omitempty"`

	SensorTimestampNS int64  `json:"sensor_timestamp_ns,omitempty" cbor:"sensor_timestamp_ns,omitempty" msgpack:"sensor_timestamp_ns,omitempty"`
	ExposureNS        int64  `json:"exposure_ns,omitempty" cbor:"exposure_ns,omitempty" msgpack:"exposure_ns,omitempty"`
	Sensitivity       int32  `json:"sensitivity,omitempty" cbor:"sensitivity,omitempty" msgpack:"sensitivity,omitempty"`
	AEState           string `json:"ae_state,omitempty" cbor:"ae_state,omitempty" msgpack:"ae_state,omitempty"`
	AFState           string `json:"af_state,omitempty" cbor:"af_state,omitempty" msgpack:"af_state,omitempty"`
	AWBState          string `json:"awb_state,omitempty" cbor:"awb_state,omitempty" msgpack:"awb_state,omitempty"`

	Buffers []BufferSummary `json:"buffers" cbor:"buffers" msgpack:"buffers"`
}

// BufferSummary is the status of one output buffer.
type BufferSummary struct {
	StreamID  uint32 `json:"stream_id" cbor:"stream_id" msgpack:"stream_id"`
	Status    string `json:"status" cbor:"status" msgpack:"status"`
	BytesUsed int    `json:"bytes_used" cbor:"bytes_used" msgpack:"bytes_used"`
	Error     string `json:"error,omitempty" cbor:"error,omitempty" msgpack:"error,omitempty"`
}

// NewSummary condenses a result for publishing.
func NewSummary(cameraID uint32, r *capturesession.CaptureResult) Summary {
	s := Summary{
		CameraID:    cameraID,
		PipelineID:  r.PipelineID,
		FrameNumber: r.FrameNumber,
		TraceID:     r.TraceID,
		Status:      StatusOK,
		Buffers:     make([]BufferSummary, 0, len(r.OutputBuffers)),
	}

	failed := 0
	for _, b := range r.OutputBuffers {
		bs := BufferSummary{
			StreamID:  b.StreamID,
			Status:    b.Status.String(),
			BytesUsed: b.BytesUsed,
		}
		if b.Err != nil {
			bs.Error = b.Err.Error()
		}
		if b.Status != capturesession.BufferStatusOK {
			failed++
		}
		s.Buffers = append(s.Buffers, bs)
	}

	switch {
	case errors.Is(r.Err, capturesession.ErrRequestCancelled):
		s.Status = StatusCancelled
	case r.Err != nil:
		s.Status = StatusFailed
	case failed > 0:
		s.Status = StatusPartial
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}

	if md := r.Metadata; md != nil {
		if !md.SensorTimestamp.IsZero() {
			s.SensorTimestampNS = md.SensorTimestamp.UnixNano()
		}
		s.ExposureNS = md.ExposureTime.Nanoseconds()
		s.Sensitivity = md.Sensitivity
		s.AEState = md.AEState.String()
		s.AFState = md.AFState.String()
		s.AWBState = md.AWBState.String()
	}
	return s
}

// Encoding selects the payload codec.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingCBOR    Encoding = "cbor"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding maps a case-insensitive name to an Encoding. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR, EncodingMsgpack:
		return e, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (want json, cbor or msgpack)", s)
	}
}

// Encode serializes s.
func (e Encoding) Encode(s Summary) ([]byte, error) {
	switch e {
	case EncodingJSON, "":
		return json.Marshal(s)
	case EncodingCBOR:
		return cbor.Marshal(s)
	case EncodingMsgpack:
		return msgpack.Marshal(s)
	default:
		return nil, fmt.Errorf("unknown encoding %q", string(e))
	}
}

// Decode is the inverse of Encode, used by subscribers and tests.
func (e Encoding) Decode(data []byte) (Summary, error) {
	var s Summary
	var err error
	switch e {
	case EncodingJSON, "":
		err = json.Unmarshal(data, &s)
	case EncodingCBOR:
		err = cbor.Unmarshal(data, &s)
	case EncodingMsgpack:
		err = msgpack.Unmarshal(data, &s)
	default:
		err = fmt.Errorf("unknown encoding %q", string(e))
	}
	return s, err
}

// ContentType is the MIME type of the encoding.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingCBOR:
		return "application/cbor"
	case EncodingMsgpack:
		return "application/msgpack"
	default:
		return "application/json"
	}
}
