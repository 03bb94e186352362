package testfixtures

import (
	"testing"
	"time"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

// SecretKey signs fixture tokens and salts fixture code hashes.
const SecretKey = "fixture-secret-key-0123456789"

// Services bundles the application services wired over one store.
type Services struct {
	Store     persistence.Store
	Hasher    *application.CodeHasher
	Tokens    *application.TokenIssuer
	Records   *application.RecordService
	Tasks     *application.TaskService
	Access    *application.AccessService
	Chat      *application.ChatService
	Search    *application.SearchService
	Templates *application.TemplateService
}

// ServiceFactory builds services with deterministic time.
type ServiceFactory struct {
	Clock      *Clock
	HashScheme string
	SessionTTL time.Duration
	Assistant  application.Assistant
	External   application.TaskSource
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a factory with a reference clock and the
// sha256 hash scheme.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:      NewClock(time.Time{}),
		HashScheme: application.HashSchemeSHA256,
		SessionTTL: application.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	return factory
}

// WithClock overrides the factory clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.Clock = clock
	}
}

// WithHashScheme selects the access code hash scheme.
func WithHashScheme(scheme string) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.HashScheme = scheme
	}
}

// WithAssistant sets the AI collaborator used by chat and search.
func WithAssistant(assistant application.Assistant) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.Assistant = assistant
	}
}

// WithExternalTasks configures an external task source.
func WithExternalTasks(source application.TaskSource) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.External = source
	}
}

// Build wires every service over store.
func (f *ServiceFactory) Build(tb testing.TB, store persistence.Store) *Services {
	tb.Helper()

	hasher, err := application.NewCodeHasher(SecretKey, f.HashScheme)
	if err != nil {
		tb.Fatalf("failed to build code hasher: %v", err)
	}
	now := f.Clock.NowFunc()
	logger := DiscardLogger()
	tokens := application.NewTokenIssuer(SecretKey, f.SessionTTL, now)
	records := application.NewRecordService(store, now, logger)

	return &Services{
		Store:     store,
		Hasher:    hasher,
		Tokens:    tokens,
		Records:   records,
		Tasks:     application.NewTaskService(records, application.NewStoreTaskSource(store, now), f.External, application.DefaultTaskSourceTimeout, logger),
		Access:    application.NewAccessService(store, hasher, tokens, logger),
		Chat:      application.NewChatService(store, f.Assistant, logger),
		Search:    application.NewSearchService(store, f.Assistant, logger),
		Templates: application.NewTemplateService(records, logger),
	}
}
