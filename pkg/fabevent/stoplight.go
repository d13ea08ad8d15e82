package fabevent

// Stoplight is the three-phase lifecycle barrier for the whole runtime.
//
// Threads should:
//  1. Do initialization actions.
//  2. WaitForReady.
//  3. Do their main work in a loop until CheckShouldStop.
//  4. Do their shutdown actions.
//
// The driver should:
//  1. Construct and start all plugins and construct all services.
//  2. SignalReady.
//  3. WaitForShutdownComplete.
//
// The stopping path should:
//  1. Someone calls SignalShouldStop.
//  2. Stop and destruct each plugin and destruct each service, in reverse
//     construction order.
//  3. SignalShutdownComplete.
type Stoplight struct {
	ready            *Event
	shouldStop       *Event
	shutdownComplete *Event
}

// NewStoplight returns a Stoplight with all three phases unset.
func NewStoplight() *Stoplight {
	return &Stoplight{
		ready:            NewEvent(),
		shouldStop:       NewEvent(),
		shutdownComplete: NewEvent(),
	}
}

// WaitForReady blocks until SignalReady has been called. A thread returning
// from this call is guaranteed, in the happens-before sense, to observe
// every service registration and every bus Schedule call made by any
// plugin before the driver called SignalReady.
func (s *Stoplight) WaitForReady() {
	s.ready.Wait()
}

// SignalReady transitions the ready phase from false to true.
func (s *Stoplight) SignalReady() {
	s.ready.Set(true)
}

// CheckShouldStop reports whether SignalShouldStop has been called.
func (s *Stoplight) CheckShouldStop() bool {
	return s.shouldStop.IsSet()
}

// WaitForShouldStop blocks until SignalShouldStop has been called, by
// whoever calls it first: a signal handler, a run-duration timer, or a
// plugin driving its own shutdown.
func (s *Stoplight) WaitForShouldStop() {
	s.shouldStop.Wait()
}

// SignalShouldStop transitions the should-stop phase from false to true.
func (s *Stoplight) SignalShouldStop() {
	s.shouldStop.Set(true)
}

// WaitForShutdownComplete blocks until SignalShutdownComplete has been called.
func (s *Stoplight) WaitForShutdownComplete() {
	s.shutdownComplete.Wait()
}

// CheckShutdownComplete reports whether SignalShutdownComplete has been called.
func (s *Stoplight) CheckShutdownComplete() bool {
	return s.shutdownComplete.IsSet()
}

// SignalShutdownComplete transitions the shutdown-complete phase from false to true.
func (s *Stoplight) SignalShutdownComplete() {
	s.shutdownComplete.Set(true)
}
