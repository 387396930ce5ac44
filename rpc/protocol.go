// Package rpc serves a JSON-RPC 2.0 agent endpoint over WebSocket. Clients
// send agent tasks, inspect and edit the workspace, and run commands in it.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const Version = "2.0"

// Standard and server-defined JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func success(id json.RawMessage, result interface{}) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

func failure(id json.RawMessage, err *Error) Response {
	return Response{JSONRPC: Version, ID: id, Error: err}
}

// decodeParams maps the request params object onto target using its
// mapstructure tags. Absent params decode to the zero value.
func decodeParams(raw json.RawMessage, target interface{}) *Error {
	params := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &params); err != nil {
			return newError(CodeInvalidParams, "Invalid params: expected an object")
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "mapstructure",
	})
	if err != nil {
		return newError(CodeServerError, "failed to create params decoder: %v", err)
	}
	if err := decoder.Decode(params); err != nil {
		return newError(CodeInvalidParams, "Invalid params: %v", err)
	}
	return nil
}
