package relay

// Metrics receives the relay's counter updates. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ConnectionAdded()
	ConnectionRemoved()
	MessageReceived()
	MessageSent()
	SendFailed()
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAdded()   {}
func (noopMetrics) ConnectionRemoved() {}
func (noopMetrics) MessageReceived()   {}
func (noopMetrics) MessageSent()       {}
func (noopMetrics) SendFailed()        {}
