package timeclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/clock"
	"github.com/timeclock-api/internal/pkg/duration"
	"github.com/timeclock-api/internal/pkg/keymutex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) FindOpen(ctx context.Context, user string) (*domain.Session, error) {
	args := m.Called(ctx, user)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Create(ctx context.Context, user string, timeIn time.Time) (*domain.Session, error) {
	args := m.Called(ctx, user, timeIn)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Close(ctx context.Context, id int64, timeOut time.Time, total duration.Triple) error {
	return m.Called(ctx, id, timeOut, total).Error(0)
}
func (m *mockStore) ListByUser(ctx context.Context, user string) ([]domain.Session, error) {
	args := m.Called(ctx, user)
	if s, _ := args.Get(0).([]domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) NotifyUser(ctx context.Context, user, title, body string, fields []notify.Field) error {
	return m.Called(ctx, user, title, body, fields).Error(0)
}
func (m *mockSink) NotifyAudit(ctx context.Context, title, body string, fields []notify.Field) error {
	return m.Called(ctx, title, body, fields).Error(0)
}

// --- helpers ---

var est = time.FixedZone("EST", -5*3600)

func nineAM() time.Time {
	return time.Date(2024, 3, 11, 9, 0, 0, 0, est)
}

func newSvc(store *mockStore, sink *mockSink, clk clock.Clock) Service {
	return NewService(ServiceDeps{
		Store: store,
		Clock: clk,
		Sink:  sink,
		Locks: keymutex.New(),
	})
}

func notFound(user string) error {
	return fmt.Errorf("no open session for user %s: %w", user, domain.ErrNotFound)
}

// --- ClockIn ---

func TestClockIn_OpensSession(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	now := nineAM()

	created := &domain.Session{SessionID: 1, UserID: "u1", TimeIn: now}
	store.On("FindOpen", mock.Anything, "u1").Return(nil, notFound("u1"))
	store.On("Create", mock.Anything, "u1", now).Return(created, nil)
	sink.On("NotifyAudit", mock.Anything, "User Clocked In", mock.Anything, mock.Anything).Return(nil)

	result, err := newSvc(store, sink, clock.NewFake(now)).ClockIn(context.Background(), Actor{UserID: "u1"})

	require.NoError(t, err)
	assert.False(t, result.AlreadyClockedIn)
	assert.Equal(t, int64(1), result.Session.SessionID)
	assert.Equal(t, now, result.Session.TimeIn)
	sink.AssertNumberOfCalls(t, "NotifyAudit", 1)
}

func TestClockIn_Twice_ReturnsOriginalSession(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	opened := nineAM()

	existing := &domain.Session{SessionID: 7, UserID: "u1", TimeIn: opened}
	store.On("FindOpen", mock.Anything, "u1").Return(existing, nil)

	clk := clock.NewFake(opened.Add(45 * time.Minute))
	result, err := newSvc(store, sink, clk).ClockIn(context.Background(), Actor{UserID: "u1"})

	require.NoError(t, err)
	assert.True(t, result.AlreadyClockedIn)
	assert.Equal(t, opened, result.Session.TimeIn)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "NotifyAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClockIn_StorageError_Propagates(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	store.On("FindOpen", mock.Anything, "u1").Return(nil, fmt.Errorf("query open session: %w: timeout", domain.ErrStorage))

	_, err := newSvc(store, sink, clock.NewFake(nineAM())).ClockIn(context.Background(), Actor{UserID: "u1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestClockIn_InvariantViolation_Propagates(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	store.On("FindOpen", mock.Anything, "u1").Return(nil, fmt.Errorf("2 open sessions for user u1: %w", domain.ErrInvariant))

	_, err := newSvc(store, sink, clock.NewFake(nineAM())).ClockIn(context.Background(), Actor{UserID: "u1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvariant))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

// --- ClockOut ---

func TestClockOut_ClosesSessionWithTotal(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	timeIn := nineAM()
	now := timeIn.Add(2*time.Hour + 15*time.Minute)

	open := &domain.Session{SessionID: 3, UserID: "u1", TimeIn: timeIn}
	store.On("FindOpen", mock.Anything, "u1").Return(open, nil)
	store.On("Close", mock.Anything, int64(3), now, duration.Triple{Hours: 2, Minutes: 15, Seconds: 0}).Return(nil)
	sink.On("NotifyAudit", mock.Anything, "User Clocked Out", mock.Anything, mock.Anything).Return(nil)
	sink.On("NotifyUser", mock.Anything, "u1", "You've Been Clocked Out", mock.Anything, mock.Anything).Return(nil)

	result, err := newSvc(store, sink, clock.NewFake(now)).ClockOut(context.Background(), Actor{UserID: "u1", DisplayName: "Alice"})

	require.NoError(t, err)
	assert.False(t, result.NotClockedIn)
	assert.Equal(t, duration.Triple{Hours: 2, Minutes: 15, Seconds: 0}, result.Total)
	require.NotNil(t, result.Session.TimeOut)
	assert.Equal(t, now, *result.Session.TimeOut)
	store.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestClockOut_AuditFieldsOrdered(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	timeIn := nineAM()
	now := timeIn.Add(time.Hour)

	open := &domain.Session{SessionID: 3, UserID: "u1", TimeIn: timeIn}
	store.On("FindOpen", mock.Anything, "u1").Return(open, nil)
	store.On("Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var gotFields []notify.Field
	sink.On("NotifyAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { gotFields = args.Get(3).([]notify.Field) }).Return(nil)
	sink.On("NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := newSvc(store, sink, clock.NewFake(now)).ClockOut(context.Background(), Actor{UserID: "u1", DisplayName: "Alice"})

	require.NoError(t, err)
	require.Len(t, gotFields, 4)
	assert.Equal(t, "Name", gotFields[0].Label)
	assert.Equal(t, "Alice", gotFields[0].Value)
	assert.Equal(t, "Start Time", gotFields[1].Label)
	assert.Equal(t, "09:00:00 AM EST", gotFields[1].Value)
	assert.Equal(t, "End Time", gotFields[2].Label)
	assert.Equal(t, "10:00:00 AM EST", gotFields[2].Value)
	assert.Equal(t, "Total Time", gotFields[3].Label)
	assert.Equal(t, "1 hour, 0 minutes, 0 seconds", gotFields[3].Value)
}

func TestClockOut_NotClockedIn_MutatesNothing(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	store.On("FindOpen", mock.Anything, "u1").Return(nil, notFound("u1"))

	result, err := newSvc(store, sink, clock.NewFake(nineAM())).ClockOut(context.Background(), Actor{UserID: "u1"})

	require.NoError(t, err)
	assert.True(t, result.NotClockedIn)
	assert.Nil(t, result.Session)
	store.AssertNotCalled(t, "Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sink.AssertNotCalled(t, "NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClockOut_SinkFailure_DoesNotFailCommand(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	timeIn := nineAM()
	now := timeIn.Add(30 * time.Minute)

	open := &domain.Session{SessionID: 3, UserID: "u1", TimeIn: timeIn}
	store.On("FindOpen", mock.Anything, "u1").Return(open, nil)
	store.On("Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sink.On("NotifyAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns unreachable"))
	sink.On("NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns unreachable"))

	result, err := newSvc(store, sink, clock.NewFake(now)).ClockOut(context.Background(), Actor{UserID: "u1"})

	require.NoError(t, err)
	assert.False(t, result.NotClockedIn)
}

func TestClockOut_StorageErrorOnClose_Propagates(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	timeIn := nineAM()

	open := &domain.Session{SessionID: 3, UserID: "u1", TimeIn: timeIn}
	store.On("FindOpen", mock.Anything, "u1").Return(open, nil)
	store.On("Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("close session: %w: throttled", domain.ErrStorage))

	_, err := newSvc(store, sink, clock.NewFake(timeIn.Add(time.Hour))).ClockOut(context.Background(), Actor{UserID: "u1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
}

// --- concurrency ---

// seqStore is a minimal in-memory store used to drive real clock-in/clock-out
// sequences concurrently.
type seqStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Session
}

func newSeqStore() *seqStore { return &seqStore{rows: make(map[int64]*domain.Session)} }

func (s *seqStore) FindOpen(_ context.Context, user string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.Session
	for _, row := range s.rows {
		if row.UserID == user && row.Open() {
			if found != nil {
				return nil, fmt.Errorf("2 open sessions for user %s: %w", user, domain.ErrInvariant)
			}
			cp := *row
			found = &cp
		}
	}
	if found == nil {
		return nil, notFound(user)
	}
	return found, nil
}

func (s *seqStore) Create(_ context.Context, user string, timeIn time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	row := &domain.Session{SessionID: s.nextID, UserID: user, TimeIn: timeIn}
	s.rows[row.SessionID] = row
	cp := *row
	return &cp, nil
}

func (s *seqStore) Close(_ context.Context, id int64, timeOut time.Time, total duration.Triple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || !row.Open() {
		return fmt.Errorf("close of session %d that is missing or already closed: %w", id, domain.ErrInvariant)
	}
	row.TimeOut = &timeOut
	row.TotalTime = &total
	return nil
}

func (s *seqStore) ListByUser(_ context.Context, user string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, row := range s.rows {
		if row.UserID == user {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *seqStore) openCount(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == user && row.Open() {
			n++
		}
	}
	return n
}

func TestConcurrentClockIns_AtMostOneOpenSession(t *testing.T) {
	store := newSeqStore()
	sink := &mockSink{}
	sink.On("NotifyAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sink.On("NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(ServiceDeps{
		Store: store,
		Clock: clock.NewFake(nineAM()),
		Sink:  sink,
		Locks: keymutex.New(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClockIn(context.Background(), Actor{UserID: "u1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.openCount("u1"))
	assert.Equal(t, int64(1), store.nextID)
}

func TestClockInOutSequence_NeverMoreThanOneOpen(t *testing.T) {
	store := newSeqStore()
	sink := &mockSink{}
	sink.On("NotifyAudit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	sink.On("NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clk := clock.NewFake(nineAM())
	svc := NewService(ServiceDeps{Store: store, Clock: clk, Sink: sink, Locks: keymutex.New()})

	for i := 0; i < 5; i++ {
		_, err := svc.ClockIn(context.Background(), Actor{UserID: "u1"})
		require.NoError(t, err)
		assert.LessOrEqual(t, store.openCount("u1"), 1)

		clk.Advance(10 * time.Minute)
		_, err = svc.ClockOut(context.Background(), Actor{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 0, store.openCount("u1"))
	}
}

// --- ListSessions ---

func TestListSessions_BoundedByClockInDate(t *testing.T) {
	store, sink := &mockStore{}, &mockSink{}
	base := nineAM()
	rows := []domain.Session{
		{SessionID: 1, UserID: "u1", TimeIn: base.AddDate(0, 0, -2)},
		{SessionID: 2, UserID: "u1", TimeIn: base},
		{SessionID: 3, UserID: "u1", TimeIn: base.AddDate(0, 0, 2)},
	}
	store.On("ListByUser", mock.Anything, "u1").Return(rows, nil)

	from := base.AddDate(0, 0, -1)
	to := base.AddDate(0, 0, 1)
	got, err := newSvc(store, sink, clock.NewFake(base)).ListSessions(context.Background(), "u1", &from, &to)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].SessionID)
}
