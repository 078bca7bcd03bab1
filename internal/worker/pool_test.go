package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
)

type stubDeductor struct {
	err      error
	lastUser uuid.UUID
	lastSeen int
}

func (s *stubDeductor) DeductCredit(ctx context.Context, userID uuid.UUID, current int) (int, error) {
	s.lastUser, s.lastSeen = userID, current
	if s.err != nil {
		return 0, s.err
	}
	return current - 1, nil
}

type stubPublisher struct {
	msgs []models.WSMessage
}

func (p *stubPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestSettle_DeductsAndPublishes(t *testing.T) {
	credits := &stubDeductor{}
	pub := &stubPublisher{}
	pool := NewPool(nil, credits, pub, logger.Nop(), 1)

	user := uuid.New()
	job := &models.SettlementJob{RunID: "run-1", UserID: user, Credits: 4}
	if err := pool.settle(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if credits.lastUser != user || credits.lastSeen != 4 {
		t.Fatalf("unexpected deduction %+v", credits)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Type != models.WSCreditsUpdated {
		t.Fatalf("expected one credits_updated message, got %+v", pub.msgs)
	}
	ev := pub.msgs[0].Payload.(models.CreditsUpdatedEvent)
	if ev.Credits != 3 || ev.RunID != "run-1" {
		t.Fatalf("unexpected payload %+v", ev)
	}
}

func TestSettle_DeductionErrorSkipsPublish(t *testing.T) {
	credits := &stubDeductor{err: errors.New("db down")}
	pub := &stubPublisher{}
	pool := NewPool(nil, credits, pub, logger.Nop(), 1)

	if err := pool.settle(context.Background(), &models.SettlementJob{RunID: "run-2"}); err == nil {
		t.Fatal("expected deduction error")
	}
	if len(pub.msgs) != 0 {
		t.Fatal("no update may be published for a failed settlement")
	}
}

func TestHandleFailure_GivesUpAfterMaxAttempts(t *testing.T) {
	pool := NewPool(nil, &stubDeductor{}, nil, logger.Nop(), 1)

	// At the last attempt no redis call is made, so a nil client is safe.
	job := &models.SettlementJob{RunID: "run-3", Attempts: maxSettlementAttempts - 1}
	pool.handleFailure(context.Background(), job, settlementLockKey(job.RunID), errors.New("boom"))

	if job.Attempts != maxSettlementAttempts {
		t.Fatalf("expected attempts %d, got %d", maxSettlementAttempts, job.Attempts)
	}
}

func TestSettlementLockKey(t *testing.T) {
	if got := settlementLockKey("abc"); got != "settlement_lock:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}
