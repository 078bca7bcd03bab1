package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
	"inksink-backend/internal/services"
)

const maxSettlementAttempts = 3

type CreditDeductor interface {
	DeductCredit(ctx context.Context, userID uuid.UUID, current int) (int, error)
}

type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// Pool settles credits for finished chat runs off the request path.
type Pool struct {
	redis       *redis.Client
	credits     CreditDeductor
	publisher   UpdatePublisher
	log         *logger.Logger
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	credits CreditDeductor,
	publisher UpdatePublisher,
	log *logger.Logger,
	workerCount int,
) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		credits:     credits,
		publisher:   publisher,
		log:         log.With("component", "settlement"),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("Started settlement workers", "count", p.workerCount)
}

// Stop signals the workers and waits for in-flight settlements.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.log.Debug("Worker shutting down", "worker", id)
			return
		default:
		}

		ctx := context.Background()

		// Short timeout so Stop is noticed promptly.
		result, err := p.redis.BLPop(ctx, 5*time.Second, services.SettlementQueue).Result()
		if err != nil {
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.SettlementJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			p.log.Warn("Failed to parse settlement job", "worker", id, "error", err)
			continue
		}

		// The lock doubles as the dedupe record: one deduction per run.
		lockKey := settlementLockKey(job.RunID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 24*time.Hour).Result()
		if err != nil || !locked {
			continue
		}

		if err := p.settle(ctx, &job); err != nil {
			p.handleFailure(ctx, &job, lockKey, err)
		}
	}
}

func settlementLockKey(runID string) string {
	return fmt.Sprintf("settlement_lock:%s", runID)
}

func (p *Pool) settle(ctx context.Context, job *models.SettlementJob) error {
	next, err := p.credits.DeductCredit(ctx, job.UserID, job.Credits)
	if err != nil {
		return err
	}

	if p.publisher != nil {
		err := p.publisher.PublishUpdate(ctx, job.UserID, models.WSMessage{
			Type:    models.WSCreditsUpdated,
			Payload: models.CreditsUpdatedEvent{Credits: next, RunID: job.RunID},
		})
		if err != nil {
			p.log.Warn("Failed to publish credit update", "run_id", job.RunID, "error", err)
		}
	}

	p.log.Info("Settled chat run", "run_id", job.RunID, "user_id", job.UserID.String(), "credits", next)
	return nil
}

func (p *Pool) handleFailure(ctx context.Context, job *models.SettlementJob, lockKey string, err error) {
	job.Attempts++
	if job.Attempts >= maxSettlementAttempts {
		// Keep the lock so the run is never charged later.
		p.log.Error("Settlement failed permanently", "run_id", job.RunID, "attempts", job.Attempts, "error", err)
		return
	}

	p.log.Warn("Settlement failed, retrying", "run_id", job.RunID, "attempts", job.Attempts, "error", err)
	p.redis.Del(ctx, lockKey)

	jobBytes, _ := json.Marshal(job)
	backoff := time.Duration(1<<uint(job.Attempts)) * time.Second
	time.AfterFunc(backoff, func() {
		p.redis.RPush(context.Background(), services.SettlementQueue, string(jobBytes))
	})
}
