package api

import "github.com/kelly-sim/kelly-sim/sim"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SimulationResponse is the body of a successful POST /api/v1/simulations.
type SimulationResponse struct {
	Status string       `json:"status"`
	Result *sim.Results `json:"result"`
}
