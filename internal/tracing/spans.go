package tracing

// Span attribute keys for container operations.
const (
	AttrStateName     = "state.name"
	AttrChangeID      = "state.change.id"
	AttrChangeKeys    = "state.change.keys"
	AttrOverwrite     = "state.overwrite"
	AttrNotified      = "state.notified"
	AttrSubscribers   = "state.subscribers"
	AttrSubscriberKey = "state.subscriber.key"
	AttrErrorMessage  = "error.message"
)

// Span names.
const (
	SpanPrefixState = "state."
	SpanNext        = SpanPrefixState + "next"
	SpanOverwrite   = SpanPrefixState + "overwrite"
	SpanReset       = SpanPrefixState + "reset"
	SpanSubscribe   = SpanPrefixState + "subscribe"
)

// Event names for span events.
const (
	EventValueRejected  = "value.rejected"
	EventCallbackPanic  = "callback.panic"
	EventImmediateFired = "subscriber.immediate"
)
