package agentflow

// Interrupt is the suspension signal a node emits instead of a state
// update. The payload is presented to a human by the boundary layer; the
// signal is discarded once a resume call supplies feedback and execution
// continues.
type Interrupt struct {
	Payload   any  `json:"payload"`
	Resumable bool `json:"resumable"`
}

// Clarification is the standard interrupt payload shape so the HTTP
// boundary renders every clarification request uniformly.
type Clarification struct {
	Message string `json:"message"`
}

// Outcome is the result of one node invocation: either a partial state
// update to continue with, or an interrupt to suspend on. Exactly one of
// the two is set.
type Outcome struct {
	update    *Update
	interrupt *Interrupt
}

// Continue wraps a partial state update. A nil update is a valid no-op.
func Continue(update *Update) Outcome {
	return Outcome{update: update}
}

// Suspend wraps an interrupt carrying the given payload.
func Suspend(interrupt *Interrupt) Outcome {
	return Outcome{interrupt: interrupt}
}

// RequestClarification builds the suspension outcome for a node that needs
// human input before it can proceed. Nodes must emit it at most once per
// invocation and re-check their condition when re-entered after resume.
func RequestClarification(message string) Outcome {
	return Suspend(&Interrupt{
		Payload:   &Clarification{Message: message},
		Resumable: true,
	})
}

// Suspended reports whether the outcome is a suspension request.
func (o Outcome) Suspended() bool {
	return o.interrupt != nil
}

// Update returns the partial state update, nil for suspensions.
func (o Outcome) Update() *Update {
	return o.update
}

// Interrupt returns the interrupt signal, nil for continuations.
func (o Outcome) Interrupt() *Interrupt {
	return o.interrupt
}
