package domain

import "time"

// Arg is one named, literal argument of a recorded call.
type Arg struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Record is one executed call, as appended to a session's replay script.
// Args hold the resolved values in declaration order; SessionParam is never present.
type Record struct {
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	Args      []Arg     `json:"args,omitempty"`
	Time      time.Time `json:"time"`
}

// Kwargs returns the arguments as a map, suitable for a Request.
func (r Record) Kwargs() map[string]any {
	kwargs := make(map[string]any, len(r.Args))
	for _, a := range r.Args {
		kwargs[a.Name] = a.Value
	}
	return kwargs
}
