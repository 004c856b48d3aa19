package provider

// Outcome is the canonical tri-state result of a provider call. Anything the
// gateway cannot positively classify is Processing, never Success.
type Outcome string

const (
	Success    Outcome = "success"
	Failed     Outcome = "failed"
	Processing Outcome = "processing"
)

// Request is one delivery order against an upstream VTU API. Destination is
// a phone number, meter number or smart-card IUC depending on the service.
type Request struct {
	Network     string
	Service     string
	Destination string
	PlanCode    string
	Amount      int64
	Reference   string
	MeterType   string
}

// Result carries the normalized outcome together with the raw body so the
// transaction record can keep it for audit and support.
type Result struct {
	Outcome    Outcome
	Message    string
	HTTPStatus int
	Raw        []byte
}
