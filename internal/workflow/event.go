package workflow

type EventType string

const (
	EventStart      EventType = "start"
	EventStepStart  EventType = "step-start"
	EventStepOutput EventType = "step-output"
	EventStepResult EventType = "step-result"
	EventFinish     EventType = "finish"
)

const (
	FromWorkflow = "WORKFLOW"
	FromAgent    = "AGENT"

	OutputTextDelta = "text-delta"
)

const (
	StepClassify  = "classify"
	StepResearch  = "research"
	StepWrite     = "write"
	StepAssistant = "assistant"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is one entry of a run's event stream. Every event of a run carries
// the same RunID.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"runId"`
	From    string    `json:"from"`
	Payload any       `json:"payload"`
}

type StartPayload struct {
	HasDocument bool `json:"hasDocument"`
	Messages    int  `json:"messages"`
}

type StepStartPayload struct {
	StepName   string `json:"stepName"`
	StepCallID string `json:"stepCallId"`
}

type TextDelta struct {
	Text string `json:"text"`
}

type AgentOutput struct {
	Type    string    `json:"type"`
	From    string    `json:"from"`
	Payload TextDelta `json:"payload"`
}

type StepOutputPayload struct {
	Output     AgentOutput `json:"output"`
	StepCallID string      `json:"stepCallId"`
	StepName   string      `json:"stepName"`
}

type StepResultPayload struct {
	StepName   string `json:"stepName"`
	StepCallID string `json:"stepCallId"`
	Status     string `json:"status"`
	Result     any    `json:"result"`
}

type ClassifyResult struct {
	Route string `json:"route"`
}

type TextResult struct {
	Result string `json:"result"`
}

type FinishPayload struct {
	Status string `json:"status"`
}

// RunResult is the outcome of a finished run.
type RunResult struct {
	Status string     `json:"status"`
	Result TextResult `json:"result"`
	Error  string     `json:"error,omitempty"`
}
