package transport

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed inbound.schema.json
var inboundSchemaJSON []byte

const inboundSchemaURL = "https://interview-assistant.local/schemas/inbound.json"

var (
	inboundSchemaOnce sync.Once
	inboundSchema     *jsonschema.Schema
	inboundSchemaErr  error
)

func compiledInboundSchema() (*jsonschema.Schema, error) {
	inboundSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(inboundSchemaURL, bytes.NewReader(inboundSchemaJSON)); err != nil {
			inboundSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		inboundSchema, inboundSchemaErr = compiler.Compile(inboundSchemaURL)
		if inboundSchemaErr != nil {
			inboundSchemaErr = fmt.Errorf("compile schema: %w", inboundSchemaErr)
		}
	})
	return inboundSchema, inboundSchemaErr
}

// ProtocolError reports a malformed inbound frame. The frame is dropped and
// the connection stays open.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Reason
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

type inboundFrame struct {
	Type InboundType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type audioChunkFrame struct {
	AudioData  string  `json:"audio_data"`
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
}

// DecodeInbound validates raw against the inbound schema and decodes it.
// Unknown types decode without error so the caller can log and skip them.
func DecodeInbound(raw []byte) (Inbound, error) {
	schema, err := compiledInboundSchema()
	if err != nil {
		return Inbound{}, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Inbound{}, &ProtocolError{Reason: "invalid_json", Err: err}
	}
	if err := schema.Validate(payload); err != nil {
		return Inbound{}, &ProtocolError{Reason: "schema_violation", Err: err}
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Inbound{}, &ProtocolError{Reason: "invalid_frame", Err: err}
	}
	inbound := Inbound{Type: frame.Type}
	data := frame.Data
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}

	switch frame.Type {
	case InboundAudioChunk:
		var chunk audioChunkFrame
		if err := json.Unmarshal(data, &chunk); err != nil {
			return Inbound{}, &ProtocolError{Reason: "invalid_audio_chunk", Err: err}
		}
		audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(chunk.AudioData))
		if err != nil {
			return Inbound{}, &ProtocolError{Reason: "invalid_audio_data", Err: err}
		}
		inbound.AudioChunk = &AudioChunk{Audio: audio, SampleRate: chunk.SampleRate, Duration: chunk.Duration}
	case InboundConfigUpdate:
		var update ConfigUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			return Inbound{}, &ProtocolError{Reason: "invalid_config_update", Err: err}
		}
		inbound.ConfigUpdate = &update
	}
	return inbound, nil
}

type outboundFrame struct {
	Type      OutboundType `json:"type"`
	SessionID string       `json:"session_id"`
	Timestamp string       `json:"timestamp"`
	Data      any          `json:"data"`
}

// EncodeOutbound renders msg as a JSON frame. A zero timestamp is stamped
// with the current time.
func EncodeOutbound(msg Outbound) ([]byte, error) {
	if err := msg.Type.Validate(); err != nil {
		return nil, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data := msg.Data
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(outboundFrame{
		Type:      msg.Type,
		SessionID: msg.SessionID,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
}
