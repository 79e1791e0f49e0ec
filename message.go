package spanz

// Message is what a MessageSupplier renders when an entry finishes.
type Message struct {
	Detail map[string]any
	Text   string
}

// MessageSupplier produces an entry's message. It is invoked lazily, once,
// when the entry ends.
type MessageSupplier interface {
	Message() Message
}

// MessageSupplierFunc adapts a function to MessageSupplier.
type MessageSupplierFunc func() Message

// Message implements MessageSupplier.
func (f MessageSupplierFunc) Message() Message { return f() }

type staticMessage string

func (s staticMessage) Message() Message { return Message{Text: string(s)} }

// StaticMessage returns a supplier for a fixed text.
func StaticMessage(text string) MessageSupplier {
	return staticMessage(text)
}

// QueryMessage wraps a query's text when it becomes a record name.
type QueryMessage struct {
	Detail map[string]any
	Prefix string
	Suffix string
}

// QueryMessageSupplier produces a query entry's message at finish time.
type QueryMessageSupplier interface {
	QueryMessage() QueryMessage
}

// QueryMessageSupplierFunc adapts a function to QueryMessageSupplier.
type QueryMessageSupplierFunc func() QueryMessage

// QueryMessage implements QueryMessageSupplier.
func (f QueryMessageSupplierFunc) QueryMessage() QueryMessage { return f() }

// StaticQueryMessage returns a supplier wrapping queries in prefix and suffix.
func StaticQueryMessage(prefix, suffix string) QueryMessageSupplier {
	return QueryMessageSupplierFunc(func() QueryMessage {
		return QueryMessage{Prefix: prefix, Suffix: suffix}
	})
}

// RequestInfo describes the inbound request a flow is serving. It travels
// with the flow into auxiliary contexts.
type RequestInfo struct {
	Method      string
	ContextPath string
	ServletPath string
	PathInfo    string
	URI         string
}
