package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/LeVietHung/CNCademy/internal/pkg/billing"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
	"github.com/LeVietHung/CNCademy/internal/pkg/mail"
)

// processBillingReconcileJob re-syncs a user's subscription state with the
// billing provider. Enqueued when the best-effort reconcile at sign-in fails.
func (q *Queue) processBillingReconcileJob(ctx context.Context, job *Job) error {
	payload, err := BillingReconcileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid billing reconcile payload: %w", err)
	}
	if payload.UserID == 0 {
		return fmt.Errorf("billing reconcile payload missing user id")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res := svc.ReconcileForUser(jobCtx, payload.UserID, payload.Email)
	if !res.Success {
		return fmt.Errorf("reconcile for user %d failed: %w", payload.UserID, res.Err)
	}

	entitlements.InvalidateCache(payload.UserID)
	return nil
}

// processActivationMailJob delivers the account activation mail.
func (q *Queue) processActivationMailJob(job *Job) error {
	payload, err := ActivationMailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid activation mail payload: %w", err)
	}
	if payload.Email == "" || payload.Token == "" {
		return fmt.Errorf("activation mail payload missing email or token")
	}

	return mail.SendActivationMail(payload.Email, payload.Name, payload.Token)
}
