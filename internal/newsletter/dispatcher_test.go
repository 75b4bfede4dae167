package newsletter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkfire/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockSubscriberSource struct {
	listEmailsFn func(ctx context.Context) ([]string, error)
	listCalled   bool
}

func (m *mockSubscriberSource) ListEmails(ctx context.Context) ([]string, error) {
	m.listCalled = true
	if m.listEmailsFn != nil {
		return m.listEmailsFn(ctx)
	}
	return nil, nil
}

type mockNameResolver struct {
	names map[string]string
	err   error
}

func (m *mockNameResolver) ListNamesByEmail(_ context.Context, _ []string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.names == nil {
		return map[string]string{}, nil
	}
	return m.names, nil
}

type mockProvider struct {
	sendFn func(ctx context.Context, input types.SendInput) (string, error)

	mu     sync.Mutex
	inputs []types.SendInput
}

func (m *mockProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, input)
	}
	return "msg-id", nil
}

func (m *mockProvider) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.inputs))
	for _, in := range m.inputs {
		out = append(out, in.To)
	}
	return out
}

type recordingMetrics struct {
	mu         sync.Mutex
	sends      []SendResult
	dispatches []types.DispatchReport
}

func (m *recordingMetrics) RecordSend(_ context.Context, result SendResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, result)
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, report types.DispatchReport, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, report)
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestDispatcher(t *testing.T, subs *mockSubscriberSource, names *mockNameResolver, provider *mockProvider) (*Dispatcher, *recordingMetrics) {
	t.Helper()

	renderer, err := NewRenderer(testBrand())
	require.NoError(t, err)

	metrics := &recordingMetrics{}
	d := NewDispatcher(DispatcherConfig{
		Subscribers: subs,
		Names:       names,
		Renderer:    renderer,
		Provider:    provider,
		Metrics:     metrics,
		From: types.SenderIdentity{
			Address: "kitchen@forkandfire.com",
			Name:    "Fork & Fire",
		},
	})
	return d, metrics
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestDispatcher_Send_MissingSubject(t *testing.T) {
	subs := &mockSubscriberSource{}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, &mockProvider{})

	_, err := d.Send(context.Background(), "   ", "<p>content</p>")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "Subject and content are required.", appErr.Message)
	assert.False(t, subs.listCalled, "validation must run before any I/O")
}

func TestDispatcher_Send_MissingContent(t *testing.T) {
	subs := &mockSubscriberSource{}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, &mockProvider{})

	_, err := d.Send(context.Background(), "Spring Recipes", "")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.False(t, subs.listCalled)
}

func TestDispatcher_Send_NoSubscribers(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) { return nil, nil },
	}
	provider := &mockProvider{}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundNoSubscribers, appErr.Code)
	assert.Equal(t, "No subscribers found.", appErr.Message)
	assert.Empty(t, provider.inputs, "no sends should be attempted")
}

// =============================================================================
// Fan-out Tests
// =============================================================================

func TestDispatcher_Send_AllSucceed(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com", "b@example.com", "c@example.com"}, nil
		},
	}
	provider := &mockProvider{}
	d, metrics := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	report, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)
	assert.Equal(t, &types.DispatchReport{Total: 3, Successes: 3, Failures: 0}, report)
	assert.True(t, report.Complete())
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com"}, provider.sentTo())
	require.Len(t, metrics.dispatches, 1)
	assert.Equal(t, *report, metrics.dispatches[0])
}

func TestDispatcher_Send_PartialFailure(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com", "b@example.com", "c@example.com"}, nil
		},
	}
	provider := &mockProvider{
		sendFn: func(_ context.Context, input types.SendInput) (string, error) {
			if input.To == "b@example.com" {
				return "", types.NewAppError(types.ErrCodeEmailBlocked, "message rejected", nil)
			}
			return "msg-id", nil
		},
	}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	report, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err, "per-recipient failures never escape the fan-out")
	assert.Equal(t, &types.DispatchReport{Total: 3, Successes: 2, Failures: 1}, report)
	assert.False(t, report.Complete())

	// The failed recipient did not prevent delivery to the others.
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com"}, provider.sentTo())
}

func TestDispatcher_Send_AllFailStillReturnsReport(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com", "b@example.com"}, nil
		},
	}
	provider := &mockProvider{
		sendFn: func(_ context.Context, _ types.SendInput) (string, error) {
			return "", errors.New("smtp unreachable")
		},
	}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	report, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)
	assert.Equal(t, &types.DispatchReport{Total: 2, Successes: 0, Failures: 2}, report)
	assert.False(t, report.Complete())
}

func TestDispatcher_Send_PersonalizesFromRegistry(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"jane@example.com", "guest@example.com"}, nil
		},
	}
	names := &mockNameResolver{names: map[string]string{"jane@example.com": "Jane Baker"}}
	provider := &mockProvider{}
	d, _ := newTestDispatcher(t, subs, names, provider)

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)

	bodies := map[string]string{}
	for _, in := range provider.inputs {
		bodies[in.To] = in.BodyHTML
	}
	assert.Contains(t, bodies["jane@example.com"], "Hi Jane,")
	assert.Contains(t, bodies["guest@example.com"], "Hi "+FallbackName+",")
}

func TestDispatcher_Send_SenderIdentity(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com"}, nil
		},
	}
	provider := &mockProvider{}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)

	require.Len(t, provider.inputs, 1)
	assert.Equal(t, "kitchen@forkandfire.com", provider.inputs[0].From.Address)
	assert.Equal(t, "Spring Recipes", provider.inputs[0].Subject)
}

func TestDispatcher_Send_SurvivesCallerCancellation(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com", "b@example.com"}, nil
		},
	}
	provider := &mockProvider{
		sendFn: func(ctx context.Context, _ types.SendInput) (string, error) {
			// The fan-out context must not carry the caller's cancellation.
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "msg-id", nil
		},
	}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Send(ctx, "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Successes)
}

func TestDispatcher_Send_RespectsConcurrencyLimit(t *testing.T) {
	const total = 20

	emails := make([]string, total)
	for i := range emails {
		emails[i] = string(rune('a'+i)) + "@example.com"
	}
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) { return emails, nil },
	}

	var inFlight, peak atomic.Int64
	provider := &mockProvider{
		sendFn: func(_ context.Context, _ types.SendInput) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return "msg-id", nil
		},
	}

	renderer, err := NewRenderer(testBrand())
	require.NoError(t, err)

	d := NewDispatcher(DispatcherConfig{
		Subscribers:        subs,
		Names:              &mockNameResolver{},
		Renderer:           renderer,
		Provider:           provider,
		From:               types.SenderIdentity{Address: "kitchen@forkandfire.com"},
		MaxConcurrentSends: 4,
	})

	report, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)
	assert.Equal(t, total, report.Successes)
	assert.LessOrEqual(t, peak.Load(), int64(4))
}

func TestDispatcher_Send_MetricsPerRecipient(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com", "b@example.com"}, nil
		},
	}
	provider := &mockProvider{
		sendFn: func(_ context.Context, input types.SendInput) (string, error) {
			if input.To == "b@example.com" {
				return "", errors.New("rejected")
			}
			return "msg-id", nil
		},
	}
	d, metrics := newTestDispatcher(t, subs, &mockNameResolver{}, provider)

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.NoError(t, err)

	var ok, failed int
	for _, r := range metrics.sends {
		if r == SendResultSuccess {
			ok++
		} else {
			failed++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestDispatcher_Send_ListError(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribers", nil)
		},
	}
	d, _ := newTestDispatcher(t, subs, &mockNameResolver{}, &mockProvider{})

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestDispatcher_Send_NameResolutionError(t *testing.T) {
	subs := &mockSubscriberSource{
		listEmailsFn: func(_ context.Context) ([]string, error) {
			return []string{"a@example.com"}, nil
		},
	}
	names := &mockNameResolver{err: types.NewAppError(types.ErrCodeInternalDB, "failed to resolve subscriber names", nil)}
	provider := &mockProvider{}
	d, _ := newTestDispatcher(t, subs, names, provider)

	_, err := d.Send(context.Background(), "Spring Recipes", "<p>content</p>")
	require.Error(t, err)
	assert.Empty(t, provider.inputs, "name resolution failure halts the dispatch before any send")
}
