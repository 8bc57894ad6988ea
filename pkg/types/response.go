package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusOK is the acknowledgement body returned by write endpoints.
type StatusOK struct {
	Status string `json:"status"`
}

func OK() StatusOK {
	return StatusOK{Status: "ok"}
}
