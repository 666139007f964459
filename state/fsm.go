// Package state implements the client-side IKE session state machine:
// a small table-driven FSM that drives IKE_SA_INIT, IKE_AUTH (with an
// optional EAP detour), Child SA installation, and teardown.
package state

// Event names a transition trigger: either a message class the peer
// sent, or an outcome one of the session's own callbacks produced.
type Event int

const (
	NO_EVENT Event = iota
	SMI_START
	MSG_INIT
	MSG_AUTH
	MSG_CHILD_SA
	MSG_INFORMATIONAL
	SUCCESS
	FAIL
	INIT_FAIL
	AUTH_FAIL
	EAP_CONTINUE
	EAP_SUCCESS
	EAP_FAIL
	DELETE_IKE_SA
	FINISHED
	RETRANSMIT_TIMEOUT
)

var eventNames = map[Event]string{
	NO_EVENT:           "NO_EVENT",
	SMI_START:          "SMI_START",
	MSG_INIT:           "MSG_INIT",
	MSG_AUTH:           "MSG_AUTH",
	MSG_CHILD_SA:       "MSG_CHILD_SA",
	MSG_INFORMATIONAL:  "MSG_INFORMATIONAL",
	SUCCESS:            "SUCCESS",
	FAIL:               "FAIL",
	INIT_FAIL:          "INIT_FAIL",
	AUTH_FAIL:          "AUTH_FAIL",
	EAP_CONTINUE:       "EAP_CONTINUE",
	EAP_SUCCESS:        "EAP_SUCCESS",
	EAP_FAIL:           "EAP_FAIL",
	DELETE_IKE_SA:      "DELETE_IKE_SA",
	FINISHED:           "FINISHED",
	RETRANSMIT_TIMEOUT: "RETRANSMIT_TIMEOUT",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "UNKNOWN_EVENT"
}

// StateType names one state of the FSM.
type StateType int

const (
	STATE_IDLE StateType = iota
	STATE_START
	STATE_INIT
	STATE_AUTH
	STATE_EAP
	STATE_MATURE
	STATE_DELETE
	STATE_FINISHED
)

var stateNames = map[StateType]string{
	STATE_IDLE:     "IDLE",
	STATE_START:    "START",
	STATE_INIT:     "INIT",
	STATE_AUTH:     "AUTH",
	STATE_EAP:      "EAP",
	STATE_MATURE:   "MATURE",
	STATE_DELETE:   "DELETE",
	STATE_FINISHED: "FINISHED",
}

func (s StateType) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN_STATE"
}

// StateEvent is both a trigger posted to the FSM and the value an
// Action returns to chain a follow-up transition.
type StateEvent struct {
	Event Event
	Data  interface{}
}

// Action runs when its (State, Event) pair fires. Its return value, if
// its Event is not NO_EVENT, is posted back to the FSM - this is how a
// single peer message (e.g. MSG_AUTH) can cascade through several
// internal transitions (HandleIkeAuth -> SUCCESS -> CheckSa -> SUCCESS -> InstallSa)
// within one call to HandleEvent's caller.
type Action func(data interface{}) StateEvent

// Transition is one table entry: the Action to run and the state to
// move to before running it.
type Transition struct {
	Next   StateType
	Action Action
}

// Table is a transition table: current state -> triggering event -> transition.
type Table map[StateType]map[Event]Transition

func merge(tables ...Table) Table {
	out := Table{}
	for _, t := range tables {
		for st, byEvent := range t {
			if out[st] == nil {
				out[st] = map[Event]Transition{}
			}
			for ev, tr := range byEvent {
				out[st][ev] = tr
			}
		}
	}
	return out
}

// Fsm is a running instance of the state machine: current state, the
// merged transition table, and the event queue the owning Session reads
// from in its select loop.
type Fsm struct {
	State       StateType
	transitions Table
	events      chan StateEvent
}

// NewFsm builds an Fsm from one or more transition tables (e.g. the
// initiator-only table plus the table shared with a responder role),
// later tables' entries winning on conflict.
func NewFsm(tables ...Table) *Fsm {
	return &Fsm{
		State:       STATE_IDLE,
		transitions: merge(tables...),
		events:      make(chan StateEvent, 10),
	}
}

func (f *Fsm) Events() <-chan StateEvent { return f.events }

// PostEvent enqueues evt for processing on the next call to HandleEvent
// from the Session's run loop. Safe to call from within an Action.
func (f *Fsm) PostEvent(evt StateEvent) {
	f.events <- evt
}

// CloseEvents shuts the event queue down; only safe once the owning
// Session's run loop has stopped reading from Events().
func (f *Fsm) CloseEvents() { close(f.events) }

// HandleEvent looks up the transition for (f.State, evt.Event), and if
// one exists, updates State and runs its Action, chaining its result.
func (f *Fsm) HandleEvent(evt StateEvent) {
	byEvent, ok := f.transitions[f.State]
	if !ok {
		return
	}
	tr, ok := byEvent[evt.Event]
	if !ok {
		return
	}
	f.State = tr.Next
	if tr.Action == nil {
		return
	}
	if next := tr.Action(evt.Data); next.Event != NO_EVENT {
		f.PostEvent(next)
	}
}
