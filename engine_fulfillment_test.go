package trustcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func pendingJob(id string) Job {
	return Job{
		ID:                  id,
		Status:              JobPending,
		TargetAddress:       "roads@city.example",
		OrganizationAddress: "council@city.example",
		Title:               "Pothole on Main St",
		Description:         "Deep pothole near the school crossing.",
		Reporter:            Contact{Name: "Ana", Email: "ana@example.com", Phone: "555-0100"},
	}
}

func TestFulfillDispatchesOnce(t *testing.T) {
	jobs := newFakeJobs(pendingJob("job-1"))
	notifier := &recordingNotifier{}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	const callers = 16
	var wg sync.WaitGroup
	outcomes := make(chan FulfillOutcome, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			out, err := engine.Fulfill(context.Background(), "job-1")
			if err != nil {
				t.Errorf("Fulfill: %v", err)
			}
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	dispatched := 0
	for out := range outcomes {
		switch out {
		case OutcomeDispatched:
			dispatched++
		case OutcomeLostRace, OutcomeIneligible:
		default:
			t.Fatalf("unexpected outcome %s", out)
		}
	}
	if dispatched != 1 {
		t.Fatalf("expected one dispatch, got %d", dispatched)
	}
	if got := len(notifier.messages()); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
	if jobs.status("job-1") != JobFiled {
		t.Fatalf("status = %s, want filed", jobs.status("job-1"))
	}
}

func TestFulfillNotification(t *testing.T) {
	jobs := newFakeJobs(pendingJob("job-2"))
	notifier := &recordingNotifier{}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	if out, err := engine.Fulfill(context.Background(), "job-2"); err != nil || out != OutcomeDispatched {
		t.Fatalf("Fulfill: %s %v", out, err)
	}
	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one notification, got %d", len(msgs))
	}
	n := msgs[0]
	if n.To != "roads@city.example" || n.ReplyTo != "ana@example.com" || n.JobID != "job-2" {
		t.Fatalf("unexpected addressing %+v", n)
	}
	if !strings.Contains(n.Subject, "Pothole on Main St") || !strings.Contains(n.Body, "Deep pothole") {
		t.Fatalf("unexpected content %+v", n)
	}
	if n.IdempotencyKey != engine.IdempotencyKey("job-2") {
		t.Fatal("idempotency key must be derived from the job id")
	}
	if engine.IdempotencyKey("job-2") == engine.IdempotencyKey("job-3") {
		t.Fatal("idempotency keys must differ per job")
	}
}

func TestFulfillFallsBackToOrganizationAddress(t *testing.T) {
	job := pendingJob("job-3")
	job.TargetAddress = "   "
	jobs := newFakeJobs(job)
	notifier := &recordingNotifier{}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	if _, err := engine.Fulfill(context.Background(), "job-3"); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if msgs := notifier.messages(); len(msgs) != 1 || msgs[0].To != "council@city.example" {
		t.Fatalf("expected organization address, got %+v", msgs)
	}
}

func TestFulfillNoDestinationStaysPending(t *testing.T) {
	job := pendingJob("job-4")
	job.TargetAddress = ""
	job.OrganizationAddress = ""
	jobs := newFakeJobs(job)
	notifier := &recordingNotifier{}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	out, err := engine.Fulfill(context.Background(), "job-4")
	if err != nil || out != OutcomeNoDestination {
		t.Fatalf("Fulfill: %s %v", out, err)
	}
	if jobs.status("job-4") != JobPending {
		t.Fatal("job without destination must stay pending")
	}
	if len(notifier.messages()) != 0 {
		t.Fatal("nothing must be sent")
	}
}

func TestFulfillSkips(t *testing.T) {
	filed := pendingJob("job-5")
	filed.Status = JobFiled
	jobs := newFakeJobs(filed)
	notifier := &recordingNotifier{}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	if out, err := engine.Fulfill(context.Background(), "job-5"); err != nil || out != OutcomeIneligible {
		t.Fatalf("filed job: %s %v", out, err)
	}
	if out, err := engine.Fulfill(context.Background(), "missing"); err != nil || out != OutcomeNotFound {
		t.Fatalf("missing job: %s %v", out, err)
	}
	if len(notifier.messages()) != 0 {
		t.Fatal("nothing must be sent")
	}
}

func TestFulfillSendFailureKeepsFiled(t *testing.T) {
	jobs := newFakeJobs(pendingJob("job-6"))
	notifier := &recordingNotifier{err: errors.New("smtp refused")}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	out, err := engine.Fulfill(context.Background(), "job-6")
	if err != nil || out != OutcomeSendFailed {
		t.Fatalf("Fulfill: %s %v", out, err)
	}
	if jobs.status("job-6") != JobFiled {
		t.Fatal("send failure must not roll the status back")
	}
	if engine.MetricsSnapshot().Counters[MetricFulfillmentSendFailed] != 1 {
		t.Fatal("expected send failure metric")
	}
}

func TestFulfillStoreFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failing = errBackendDown
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(&recordingNotifier{}))

	out, err := engine.Fulfill(context.Background(), "job-7")
	if !errors.Is(err, ErrUpstreamUnavailable) || out != OutcomeStoreFailed {
		t.Fatalf("expected upstream failure, got %s %v", out, err)
	}
}

func TestFulfillWithoutCollaborators(t *testing.T) {
	engine := buildTestEngine(t, New().WithConfig(testConfig()))
	if _, err := engine.Fulfill(context.Background(), "job"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

type gatedNotifier struct {
	recordingNotifier
	admitErr error
	admits   int
}

func (n *gatedNotifier) Admit(context.Context) error {
	n.admits++
	return n.admitErr
}

func (n *gatedNotifier) SendAdmitted(ctx context.Context, msg Notification) error {
	return n.recordingNotifier.Send(ctx, msg)
}

func TestFulfillDefersWhenNotifierRefusesAdmission(t *testing.T) {
	jobs := newFakeJobs(pendingJob("job-8"))
	notifier := &gatedNotifier{admitErr: errors.New("pacing: would exceed deadline")}
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithJobStore(jobs).WithNotifier(notifier))

	out, err := engine.Fulfill(context.Background(), "job-8")
	if err != nil || out != OutcomeDeferred {
		t.Fatalf("Fulfill: %s %v", out, err)
	}
	if jobs.status("job-8") != JobPending || len(notifier.messages()) != 0 {
		t.Fatal("a deferred job must stay pending and unsent")
	}
	if engine.MetricsSnapshot().Counters[MetricFulfillmentDeferred] != 1 {
		t.Fatal("expected deferred metric")
	}

	notifier.admitErr = nil
	if out, err := engine.Fulfill(context.Background(), "job-8"); err != nil || out != OutcomeDispatched {
		t.Fatalf("retry: %s %v", out, err)
	}
	if notifier.admits != 2 || len(notifier.messages()) != 1 {
		t.Fatalf("admits=%d sends=%d", notifier.admits, len(notifier.messages()))
	}
}
