package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/domainscout/core/internal/domain"
	"github.com/domainscout/core/internal/jobs/availability"
	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/jobs/pricing"
	"github.com/domainscout/core/internal/platform/config"
	"github.com/domainscout/core/internal/platform/logger"
	"github.com/domainscout/core/internal/providers"
	"github.com/domainscout/core/internal/repos"
	"github.com/domainscout/core/internal/store"
)

type fakeProvider struct{}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) SupportsTools() bool { return true }
func (f *fakeProvider) Generate(_ context.Context, _ providers.GenerateRequest) (providers.GenerateResult, error) {
	return providers.GenerateResult{}, nil
}
func (f *fakeProvider) GenerateWithTools(_ context.Context, _ providers.GenerateRequest, _ providers.ToolSpec) (providers.GenerateResult, error) {
	return providers.GenerateResult{ToolArgs: map[string]any{"domains": []any{"acme.com"}}, InputTokens: 1, OutputTokens: 1}, nil
}

func newIndexRepo(t *testing.T) repos.JobIndexRepo {
	t.Helper()
	dsn := "file:schedtest" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open index sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.JobIndex{}); err != nil {
		t.Fatalf("migrate index: %v", err)
	}
	return repos.NewJobIndexRepo(db)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestController(t *testing.T, index repos.JobIndexRepo) (*controller.Controller, *store.JobStores) {
	t.Helper()
	stores := store.NewJobStores(t.TempDir())
	reg := providers.NewRegistryForTest(map[string]providers.Provider{
		"claude":   &fakeProvider{},
		"deepseek": &fakeProvider{},
	})
	ctrl := controller.New(
		newTestLogger(t), stores, index, reg,
		noopEmailer{},
		config.PricingConfig{BundledMaxCents: 3000, RecommendedMaxCents: 5000},
		5, 100, time.Minute,
		&availability.FakeChecker{Available: map[string]bool{"acme.com": true}},
		&pricing.FakeLookup{},
	)
	return ctrl, stores
}

type noopEmailer struct{}

func (noopEmailer) NotifyResultsReady(context.Context, string, string, int) error { return nil }
func (noopEmailer) NotifyFollowupNeeded(context.Context, string, string) error    { return nil }

func startJob(t *testing.T, ctrl *controller.Controller) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := ctrl.Start(context.Background(), controller.StartRequest{
		JobID:    id,
		ClientID: "client-1",
		Quiz: domain.QuizResponses{
			BusinessName:   "Acme",
			TLDPreferences: []string{"com"},
			Vibe:           "playful",
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return id
}

func waitForBatch(t *testing.T, ctrl *controller.Controller, id uuid.UUID, wantBatchNum int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := ctrl.Status(context.Background(), id)
		if err == nil && status.BatchNum >= wantBatchNum {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to reach batch_num >= %d", id, wantBatchNum)
}

func TestTickDispatchesOnlyDueJobs(t *testing.T) {
	index := newIndexRepo(t)
	ctrl, _ := newTestController(t, index)

	dueID := startJob(t, ctrl)
	futureID := startJob(t, ctrl)

	// Push futureID's wake time out so the scheduler must skip it.
	idx, err := index.Get(context.Background(), futureID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	future := time.Now().Add(time.Hour)
	idx.NextWakeAt = &future
	if err := index.Upsert(context.Background(), idx); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	sched := New(newTestLogger(t), index, ctrl, time.Hour, 10)
	sched.tick(context.Background())

	waitForBatch(t, ctrl, dueID, 1)

	futureStatus, err := ctrl.Status(context.Background(), futureID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if futureStatus.BatchNum != 0 {
		t.Fatalf("expected the not-yet-due job to remain untouched, got batch_num=%d", futureStatus.BatchNum)
	}
}

func TestRunningSetPreventsDoubleDispatch(t *testing.T) {
	index := newIndexRepo(t)
	ctrl, _ := newTestController(t, index)
	id := startJob(t, ctrl)

	sched := New(newTestLogger(t), index, ctrl, time.Hour, 10)

	// Manually mark the job as already running, simulating an in-flight
	// batch from a prior tick that hasn't finished yet.
	sched.mu.Lock()
	sched.running[id] = true
	sched.mu.Unlock()

	sched.tick(context.Background())

	// Give any (incorrectly) dispatched goroutine a moment to run, then
	// confirm the batch was never advanced while marked running.
	time.Sleep(50 * time.Millisecond)
	status, err := ctrl.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.BatchNum != 0 {
		t.Fatalf("expected a job already in the running set to be skipped by tick, got batch_num=%d", status.BatchNum)
	}

	sched.mu.Lock()
	delete(sched.running, id)
	sched.mu.Unlock()

	sched.tick(context.Background())
	waitForBatch(t, ctrl, id, 1)
}

func TestRunOneClearsRunningSetOnCompletion(t *testing.T) {
	index := newIndexRepo(t)
	ctrl, _ := newTestController(t, index)
	id := startJob(t, ctrl)

	sched := New(newTestLogger(t), index, ctrl, time.Hour, 10)
	sched.mu.Lock()
	sched.running[id] = true
	sched.mu.Unlock()
	sched.runOne(context.Background(), id)

	sched.mu.Lock()
	stillRunning := sched.running[id]
	sched.mu.Unlock()
	if stillRunning {
		t.Fatalf("expected runOne to clear the running flag once the batch finishes")
	}
}
