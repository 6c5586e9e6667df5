package jobqueue

import (
	"testing"
	"time"
)

func TestJobStateTransitions(t *testing.T) {
	job := &Job{
		ID:         "job-1",
		Type:       JobTypeBillingReconcile,
		Status:     JobStatusPending,
		MaxRetries: 2,
		CreatedAt:  time.Now(),
	}

	job.MarkAsProcessing()
	if job.Status != JobStatusProcessing || job.ProcessedAt == nil {
		t.Fatalf("expected processing state, got %+v", job)
	}

	job.MarkAsFailed("provider unreachable")
	if job.Status != JobStatusFailed || job.RetryCount != 1 {
		t.Fatalf("expected failed state with one retry, got %+v", job)
	}
	if !job.IsRetryable() {
		t.Fatal("job with retries left should be retryable")
	}

	job.MarkAsFailed("provider unreachable")
	if job.IsRetryable() {
		t.Fatal("job at max retries should not be retryable")
	}

	job.MarkAsCompleted()
	if job.Status != JobStatusCompleted || job.CompletedAt == nil || job.ErrorMsg != "" {
		t.Fatalf("expected clean completed state, got %+v", job)
	}
}

func TestBillingReconcilePayloadRoundTrip(t *testing.T) {
	in := BillingReconcileJobPayload{UserID: 12, Email: "machinist@example.com"}

	out, err := BillingReconcileJobPayloadFromMap(in.ToMap())
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if out.UserID != in.UserID || out.Email != in.Email {
		t.Fatalf("payload mismatch: %+v", out)
	}
}
