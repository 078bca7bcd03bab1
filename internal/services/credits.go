package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"inksink-backend/internal/repository"
)

type ProfileStore interface {
	GetCredits(ctx context.Context, userID uuid.UUID) (int, error)
	SetCredits(ctx context.Context, userID uuid.UUID, credits int) error
}

// CreditService is the quota gate in front of the chat workflow.
type CreditService struct {
	profiles ProfileStore
}

func NewCreditService(profiles ProfileStore) *CreditService {
	return &CreditService{profiles: profiles}
}

func (s *CreditService) GetCredits(ctx context.Context, userID uuid.UUID) (int, error) {
	credits, err := s.profiles.GetCredits(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, &NotFoundError{Message: "Profile not found"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}
	return credits, nil
}

// Require returns the current balance, or ErrInsufficientCredits when it is
// below one. A missing profile counts as an empty balance.
func (s *CreditService) Require(ctx context.Context, userID uuid.UUID) (int, error) {
	credits, err := s.GetCredits(ctx, userID)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	if credits < 1 {
		return credits, ErrInsufficientCredits
	}
	return credits, nil
}

// DeductCredit writes current-1 as the new balance. The caller passes the
// balance it observed at the gate.
func (s *CreditService) DeductCredit(ctx context.Context, userID uuid.UUID, current int) (int, error) {
	next := current - 1
	if next < 0 {
		next = 0
	}
	if err := s.profiles.SetCredits(ctx, userID, next); err != nil {
		return 0, fmt.Errorf("failed to deduct credit: %w", err)
	}
	return next, nil
}
