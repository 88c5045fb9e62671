package router

import "github.com/caucehq/cauce/engine/lane"

// Intent assigned when the router cannot produce a real classification.
const FallbackIntent = "general_info"

// Decision is the router's verdict for one turn. Values are sanitized before
// the controller sees them: the lane is always configured, confidence is in
// [0,1], and reasons hold at most five entries.
type Decision struct {
	Lane       lane.Lane `json:"lane"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons,omitempty"`
}

// maxReasons bounds the reasoning list carried through logs and state.
const maxReasons = 5
