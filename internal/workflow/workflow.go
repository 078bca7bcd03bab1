package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"inksink-backend/internal/agents"
	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
)

var ErrRunClosed = errors.New("workflow run closed")

type State int

const (
	StateStart State = iota
	StateClassifying
	StateResearching
	StateWriting
	StateAssisting
	StateClarifying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateClassifying:
		return "classifying"
	case StateResearching:
		return "researching"
	case StateWriting:
		return "writing"
	case StateAssisting:
		return "assisting"
	case StateClarifying:
		return "clarifying"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

type Classifier interface {
	Classify(ctx context.Context, messages []models.ChatMessage, content string) (agents.Route, error)
}

type Responder interface {
	Respond(ctx context.Context, messages []models.ChatMessage, content string) (*agents.TokenStream, error)
}

type RunInput struct {
	Messages []models.ChatMessage
	Content  string
}

// Workflow classifies a conversation and hands it to exactly one responder.
type Workflow struct {
	classifier Classifier
	research   Responder
	write      Responder
	assistant  Responder
	log        *logger.Logger
}

func New(classifier Classifier, research, write, assistant Responder, log *logger.Logger) *Workflow {
	return &Workflow{
		classifier: classifier,
		research:   research,
		write:      write,
		assistant:  assistant,
		log:        log.With("component", "workflow"),
	}
}

// Start creates a run. Nothing happens until the first Recv.
func (w *Workflow) Start(ctx context.Context, in RunInput) *Run {
	return &Run{
		id:    uuid.New().String(),
		ctx:   ctx,
		in:    in,
		wf:    w,
		state: StateStart,
	}
}

// Run is a single pull-driven execution. It is not safe for concurrent use.
type Run struct {
	id  string
	ctx context.Context
	in  RunInput
	wf  *Workflow

	state    State
	pending  []Event
	branch   Responder
	question string
	stream   *agents.TokenStream
	stepName string
	stepID   string

	result RunResult
	err    error
}

func (r *Run) ID() string { return r.id }

func (r *Run) State() State { return r.state }

// Result is only meaningful once Recv has returned io.EOF or an error.
func (r *Run) Result() RunResult { return r.result }

// Recv returns the next event, io.EOF once the run finished successfully, or
// the error that failed it.
func (r *Run) Recv() (Event, error) {
	for len(r.pending) == 0 {
		if r.state == StateFinished {
			if r.err != nil {
				return Event{}, r.err
			}
			return Event{}, io.EOF
		}
		if err := r.advance(); err != nil {
			r.fail(err)
			return Event{}, err
		}
	}
	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

// Close releases the responder stream. An unfinished run is marked failed.
func (r *Run) Close() {
	if r.state != StateFinished {
		r.fail(ErrRunClosed)
	}
}

func (r *Run) advance() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	switch r.state {
	case StateStart:
		r.emit(EventStart, FromWorkflow, StartPayload{
			HasDocument: r.in.Content != "",
			Messages:    len(r.in.Messages),
		})
		r.startStep(StepClassify)
		r.state = StateClassifying
		return nil

	case StateClassifying:
		route, err := r.wf.classifier.Classify(r.ctx, r.in.Messages, r.in.Content)
		if err != nil {
			return err
		}
		r.finishStep(ClassifyResult{Route: route.Label()})
		return r.selectBranch(route)

	case StateResearching, StateWriting, StateAssisting, StateClarifying:
		if r.stream == nil {
			return r.openBranch()
		}
		return r.pump()

	default:
		return fmt.Errorf("workflow in unexpected state %s", r.state)
	}
}

func (r *Run) selectBranch(route agents.Route) error {
	switch route.Kind {
	case agents.RouteResearch:
		r.state, r.branch, r.stepName = StateResearching, r.wf.research, StepResearch
	case agents.RouteWrite:
		r.state, r.branch, r.stepName = StateWriting, r.wf.write, StepWrite
	case agents.RouteAssist:
		r.state, r.branch, r.stepName = StateAssisting, r.wf.assistant, StepAssistant
	case agents.RouteClarify:
		if route.Question == "" {
			r.state, r.branch, r.stepName = StateAssisting, r.wf.assistant, StepAssistant
			break
		}
		r.state, r.question, r.stepName = StateClarifying, route.Question, StepAssistant
	default:
		return fmt.Errorf("no branch for route %s", route.Kind)
	}

	r.wf.log.Debug("Route selected", "run_id", r.id, "route", route.Kind.String(), "state", r.state.String())
	return nil
}

func (r *Run) openBranch() error {
	var stream *agents.TokenStream
	if r.state == StateClarifying {
		stream = agents.TextStream(r.question)
	} else {
		s, err := r.branch.Respond(r.ctx, r.in.Messages, r.in.Content)
		if err != nil {
			return err
		}
		stream = s
	}
	r.stream = stream
	r.startStep(r.stepName)
	return nil
}

func (r *Run) pump() error {
	delta, err := r.stream.Recv()
	if errors.Is(err, io.EOF) {
		text := r.stream.Text()
		r.stream.Close()
		r.finishStep(TextResult{Result: text})
		r.emit(EventFinish, FromWorkflow, FinishPayload{Status: StatusSuccess})
		r.result = RunResult{Status: StatusSuccess, Result: TextResult{Result: text}}
		r.state = StateFinished
		return nil
	}
	if err != nil {
		return err
	}

	r.emit(EventStepOutput, FromWorkflow, StepOutputPayload{
		Output: AgentOutput{
			Type:    OutputTextDelta,
			From:    FromAgent,
			Payload: TextDelta{Text: delta},
		},
		StepCallID: r.stepID,
		StepName:   r.stepName,
	})
	return nil
}

func (r *Run) fail(err error) {
	var partial string
	if r.stream != nil {
		partial = r.stream.Text()
		r.stream.Close()
	}
	r.pending = nil
	r.state = StateFinished
	r.err = err
	r.result = RunResult{
		Status: StatusFailed,
		Result: TextResult{Result: partial},
		Error:  err.Error(),
	}
	r.wf.log.Warn("Workflow run failed", "run_id", r.id, "error", err)
}

func (r *Run) startStep(name string) {
	r.stepID = uuid.New().String()
	r.emit(EventStepStart, FromWorkflow, StepStartPayload{StepName: name, StepCallID: r.stepID})
}

func (r *Run) finishStep(result any) {
	name := StepClassify
	if r.state != StateClassifying {
		name = r.stepName
	}
	r.emit(EventStepResult, FromWorkflow, StepResultPayload{
		StepName:   name,
		StepCallID: r.stepID,
		Status:     StatusSuccess,
		Result:     result,
	})
}

func (r *Run) emit(typ EventType, from string, payload any) {
	r.pending = append(r.pending, Event{Type: typ, RunID: r.id, From: from, Payload: payload})
}
