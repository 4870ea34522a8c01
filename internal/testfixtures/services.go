package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/music-school-scheduler/internal/application"
	"github.com/example/music-school-scheduler/internal/persistence/memory"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(""),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SchedulingServiceDeps captures dependencies for constructing a scheduling
// service. Nil Activities defaults to an unbacked memory store.
type SchedulingServiceDeps struct {
	Activities  application.ActivityRepository
	Directory   application.Directory
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
	Options     []application.Option
}

// NewSchedulingService builds a scheduling service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewSchedulingService(deps SchedulingServiceDeps) *application.SchedulingService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	activities := deps.Activities
	if activities == nil {
		activities = memory.New(nil)
	}
	return application.NewSchedulingServiceWithLogger(
		activities,
		deps.Directory,
		idGen,
		now,
		deps.Logger,
		deps.Options...,
	)
}

// UsageRecorder collects usage events for assertions.
type UsageRecorder struct {
	mu     sync.Mutex
	events []application.UsageEvent
}

// RecordUsage implements application.UsageSink.
func (r *UsageRecorder) RecordUsage(_ context.Context, event application.UsageEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *UsageRecorder) Events() []application.UsageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]application.UsageEvent(nil), r.events...)
}
