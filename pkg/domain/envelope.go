package domain

import "encoding/json"

// Status is the outcome carried by a Response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is the envelope sent by the backend for every operation.
type Request struct {
	Function string         `json:"function"`
	Args     []any          `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`
}

// MethodInfo describes a registered command for introspection.
// Args never includes SessionParam.
type MethodInfo struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	Doc  string   `json:"doc"`
}

// Response is the envelope returned for every Request.
type Response struct {
	Status  Status
	Result  any
	Error   string
	Methods []MethodInfo
}

// Success builds a success response carrying result.
func Success(result any) Response {
	return Response{Status: StatusSuccess, Result: result}
}

// Failure builds an error response from err.
func Failure(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// Methods builds the introspection response.
func Methods(methods []MethodInfo) Response {
	if methods == nil {
		methods = []MethodInfo{}
	}
	return Response{Status: StatusSuccess, Methods: methods}
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON emits exactly one of result, error or methods next to status.
func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.Status == StatusError:
		return json.Marshal(struct {
			Status Status `json:"status"`
			Error  string `json:"error"`
		}{r.Status, r.Error})
	case r.Methods != nil:
		return json.Marshal(struct {
			Status  Status       `json:"status"`
			Methods []MethodInfo `json:"methods"`
		}{r.Status, r.Methods})
	default:
		return json.Marshal(struct {
			Status Status `json:"status"`
			Result any    `json:"result"`
		}{r.Status, r.Result})
	}
}

// UnmarshalJSON accepts any of the three response shapes.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status  Status       `json:"status"`
		Result  any          `json:"result"`
		Error   string       `json:"error"`
		Methods []MethodInfo `json:"methods"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response{
		Status:  raw.Status,
		Result:  raw.Result,
		Error:   raw.Error,
		Methods: raw.Methods,
	}
	return nil
}
