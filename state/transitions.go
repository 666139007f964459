package state

// Context is everything the transition tables need from a Session: one
// method per callback/handler the FSM drives. Declaring it here, rather
// than importing the ike package, is what lets state be imported by ike
// without a cycle - ike.Session satisfies this interface structurally.
type Context interface {
	SendInit() StateEvent
	SendAuth() StateEvent
	InstallSa() StateEvent
	RemoveSa() StateEvent
	Finished() StateEvent
	StartRetryTimeout() StateEvent

	HandleIkeSaInit(data interface{}) StateEvent
	HandleIkeAuth(data interface{}) StateEvent
	CheckSa(data interface{}) StateEvent
	HandleClose(data interface{}) StateEvent
	HandleCreateChildSa(data interface{}) StateEvent
	CheckError(data interface{}) StateEvent
}

func action(f func(interface{}) StateEvent) Action { return Action(f) }

func noArg(f func() StateEvent) Action {
	return func(interface{}) StateEvent { return f() }
}

// InitiatorTransitions builds the part of the table that only applies
// to a session that started the exchange (sending IKE_SA_INIT itself
// rather than waiting to receive one).
func InitiatorTransitions(ctx Context) Table {
	return Table{
		STATE_IDLE: {
			SMI_START: {Next: STATE_INIT, Action: noArg(ctx.SendInit)},
		},
		STATE_INIT: {
			MSG_INIT:  {Next: STATE_INIT, Action: action(ctx.HandleIkeSaInit)},
			SUCCESS:   {Next: STATE_AUTH, Action: noArg(ctx.SendAuth)},
			INIT_FAIL: {Next: STATE_DELETE, Action: action(ctx.CheckError)},
		},
		STATE_AUTH: {
			MSG_AUTH:  {Next: STATE_AUTH, Action: action(ctx.HandleIkeAuth)},
			SUCCESS:   {Next: STATE_MATURE, Action: action(ctx.CheckSa)},
			AUTH_FAIL: {Next: STATE_DELETE, Action: action(ctx.CheckError)},
		},
	}
}

// CommonTransitions builds the part of the table shared by both roles:
// Child SA installation, teardown, and error/close handling once the
// IKE SA is mature.
func CommonTransitions(ctx Context) Table {
	return Table{
		STATE_INIT: {
			DELETE_IKE_SA: {Next: STATE_DELETE, Action: noArg(ctx.Finished)},
		},
		STATE_AUTH: {
			FAIL:          {Next: STATE_DELETE, Action: action(ctx.CheckError)},
			DELETE_IKE_SA: {Next: STATE_DELETE, Action: noArg(ctx.Finished)},
		},
		STATE_MATURE: {
			SUCCESS:            {Next: STATE_MATURE, Action: noArg(ctx.InstallSa)},
			MSG_CHILD_SA:       {Next: STATE_MATURE, Action: action(ctx.HandleCreateChildSa)},
			DELETE_IKE_SA:      {Next: STATE_DELETE, Action: noArg(ctx.RemoveSa)},
			RETRANSMIT_TIMEOUT: {Next: STATE_MATURE, Action: noArg(ctx.StartRetryTimeout)},
		},
		STATE_DELETE: {
			FINISHED:      {Next: STATE_FINISHED, Action: noArg(ctx.Finished)},
			DELETE_IKE_SA: {Next: STATE_FINISHED, Action: noArg(ctx.Finished)},
		},
		STATE_FINISHED: {
			FINISHED: {Next: STATE_FINISHED, Action: noArg(ctx.Finished)},
		},
	}
}
