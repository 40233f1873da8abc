package luxi

import (
	"encoding/json"
	"fmt"
)

// ETX terminates every message on the wire
const ETX byte = 0x03

// Request is the call envelope
type Request struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// Response is the reply envelope. On failure Result holds the error
// message.
type Response struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// BuildCall serializes op into a call envelope
func BuildCall(op Op) ([]byte, error) {
	method, args := Encode(op)
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s arguments: %w", method, err)
	}
	return json.Marshal(Request{Method: method, Args: raw})
}

// ParseCall splits a call envelope into method name and raw arguments
func ParseCall(msg []byte) (string, json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return "", nil, &ProtocolError{Reason: fmt.Sprintf("invalid request: %v", err)}
	}
	if req.Method == "" {
		return "", nil, &ProtocolError{Reason: "request without method"}
	}
	return req.Method, req.Args, nil
}

// BuildResponse serializes a successful result or an error message
func BuildResponse(success bool, result interface{}) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return json.Marshal(Response{Success: success, Result: raw})
}

// ParseResponse returns the result payload of a successful response. A
// failed response becomes a *RemoteError.
func ParseResponse(msg []byte) (json.RawMessage, error) {
	var resp struct {
		Success *bool           `json:"success"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid response: %v", err)}
	}
	if resp.Success == nil {
		return nil, &ProtocolError{Reason: "response without success flag"}
	}
	if !*resp.Success {
		return nil, &RemoteError{Message: errorMessage(resp.Result)}
	}
	return resp.Result, nil
}

// errorMessage extracts a readable message from a failure payload, which
// is normally a string but may be an arbitrary value
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
