package notify

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	BrakeEvents      []BrakeEvent
	ReflectionEvents []ReflectionEvent
	SystemEvents     []SystemEvent

	// PublishError, if set, is returned by every publish method.
	PublishError error

	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishBrake records the brake event.
func (f *FakePublisher) PublishBrake(event BrakeEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.BrakeEvents = append(f.BrakeEvents, event)
	return nil
}

// PublishReflection records the reflection event.
func (f *FakePublisher) PublishReflection(event ReflectionEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.ReflectionEvents = append(f.ReflectionEvents, event)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

// PublishBrake discards the event.
func (NopPublisher) PublishBrake(BrakeEvent) error { return nil }

// PublishReflection discards the event.
func (NopPublisher) PublishReflection(ReflectionEvent) error { return nil }

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
