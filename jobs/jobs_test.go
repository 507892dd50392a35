package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

type touchCall struct {
	userID string
	at     time.Time
}

type fakeWriter struct {
	calls []touchCall
	err   error
}

func (f *fakeWriter) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	f.calls = append(f.calls, touchCall{userID: userID, at: at})
	return f.err
}

type fakeRecorder struct {
	tasks []string
	errs  []error
}

func (f *fakeRecorder) RecordJob(task string, err error) {
	f.tasks = append(f.tasks, task)
	f.errs = append(f.errs, err)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientRecordLoginEnqueuesTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq}
	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.FixedZone("WIB", 7*3600))

	require.NoError(t, client.RecordLogin(context.Background(), "user-1", at))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskRecordLastLogin, enq.tasks[0].Type())
	assert.JSONEq(t, `{"user_id":"user-1","at":"2024-05-01T01:30:00Z"}`, string(enq.tasks[0].Payload()))
	assert.NoError(t, client.Close())
}

func TestClientRecordLoginPropagatesEnqueueError(t *testing.T) {
	client := &Client{client: &fakeEnqueuer{err: errors.New("redis down")}}
	assert.Error(t, client.RecordLogin(context.Background(), "user-1", time.Now()))
}

func TestLastLoginJobTouchesUser(t *testing.T) {
	writer := &fakeWriter{}
	recorder := &fakeRecorder{}
	job := NewLastLoginJob(writer, discardLogger(), recorder)
	at := time.Date(2024, 5, 1, 1, 30, 0, 0, time.UTC)
	task, err := NewRecordLoginTask(RecordLoginPayload{UserID: "user-1", At: at})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, writer.calls, 1)
	assert.Equal(t, "user-1", writer.calls[0].userID)
	assert.True(t, at.Equal(writer.calls[0].at))
	assert.Equal(t, []string{TaskRecordLastLogin}, recorder.tasks)
	assert.NoError(t, recorder.errs[0])
}

func TestLastLoginJobIgnoresStaleOrMissingUser(t *testing.T) {
	job := NewLastLoginJob(&fakeWriter{err: shared.ErrNotFound}, discardLogger(), nil)
	task, err := NewRecordLoginTask(RecordLoginPayload{UserID: "gone", At: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
}

func TestLastLoginJobRetriesStorageErrors(t *testing.T) {
	recorder := &fakeRecorder{}
	job := NewLastLoginJob(&fakeWriter{err: errors.New("connection reset")}, discardLogger(), recorder)
	task, err := NewRecordLoginTask(RecordLoginPayload{UserID: "user-1", At: time.Now()})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Error(t, recorder.errs[0])
}

func TestLastLoginJobSkipsMalformedPayload(t *testing.T) {
	writer := &fakeWriter{}
	job := NewLastLoginJob(writer, discardLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskRecordLastLogin, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskRecordLastLogin, []byte(`{"user_id":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, writer.calls)
}

func TestNewRecordLoginTaskRejectsIncompletePayload(t *testing.T) {
	_, err := NewRecordLoginTask(RecordLoginPayload{UserID: "user-1"})
	assert.Error(t, err)

	enq := &fakeEnqueuer{}
	client := &Client{client: enq}
	assert.Error(t, client.RecordLogin(context.Background(), "", time.Now()))
	assert.Empty(t, enq.tasks)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

type settingsPrincipal struct{ perms []rbac.Permission }

func (p settingsPrincipal) IdentityState() rbac.IdentityState { return rbac.IdentityAuthenticated }
func (p settingsPrincipal) CurrentRole() *rbac.Role {
	return &rbac.Role{ID: "r", Name: "Admin", Permissions: p.perms}
}

func healthRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func guardWith(perms ...rbac.Permission) rbac.Guard {
	return rbac.Guard{Principal: func(context.Context) rbac.Principal { return settingsPrincipal{perms: perms} }}
}

func TestHealthReportsQueueInfo(t *testing.T) {
	h := &Handler{
		inspector: fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Failed: 1}},
		logger:    discardLogger(),
		guard:     guardWith(rbac.PermAccessSettings),
	}
	rec := httptest.NewRecorder()
	healthRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"retry":0,"failed_today":1,"processed_today":0}`, rec.Body.String())
}

func TestHealthUnavailableQueue(t *testing.T) {
	h := &Handler{inspector: fakeInspector{err: errors.New("dial")}, logger: discardLogger(), guard: guardWith(rbac.PermAccessSettings)}
	rec := httptest.NewRecorder()
	healthRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthRequiresSettingsPermission(t *testing.T) {
	h := NewHandler(nil, discardLogger(), guardWith(rbac.PermCheckIn))
	rec := httptest.NewRecorder()
	healthRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
