package services

import (
	"context"
	"time"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

const (
	// interestWindow is how long a read keeps the product "interesting".
	interestWindow = 72 * time.Hour
	// interestWarnWindow flags the tail of the window as ending soon. While
	// it equals interestWindow every live record reads as ending soon and
	// interest_active never surfaces; shrink this once product picks a
	// warning threshold.
	interestWarnWindow = 72 * time.Hour
)

// InterestStatus is the decay answer for one (user, product) pair.
type InterestStatus struct {
	State            string     `json:"state"`
	InterestEndDate  *time.Time `json:"interest_end_date,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds,omitempty"`
}

// InterestService derives the decay state from the latest usage record and
// lets a reader revive a lapsing one.
type InterestService interface {
	Status(ctx context.Context, userID, productID int64, now time.Time) (*InterestStatus, error)
	Revive(ctx context.Context, userID, productID int64, now time.Time) (*InterestStatus, error)
}

type interestService struct {
	log   *logger.Logger
	usage repos.UsageRecordRepo
}

func NewInterestService(log *logger.Logger, usage repos.UsageRecordRepo) InterestService {
	return &interestService{log: log.With("service", "InterestService"), usage: usage}
}

func (is *interestService) Status(ctx context.Context, userID, productID int64, now time.Time) (*InterestStatus, error) {
	latest, err := is.usage.LatestByUserProduct(ctx, nil, userID, productID)
	if err != nil {
		return nil, err
	}
	return deriveInterest(latest, now), nil
}

// Revive restamps the latest usage record, restarting the decay clock.
func (is *interestService) Revive(ctx context.Context, userID, productID int64, now time.Time) (*InterestStatus, error) {
	latest, err := is.usage.LatestByUserProduct(ctx, nil, userID, productID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &InterestStatus{State: types.InterestNone}, nil
	}
	if err := is.usage.Touch(ctx, nil, latest.ID, now); err != nil {
		return nil, err
	}
	latest.UpdatedAt = now
	return deriveInterest(latest, now), nil
}

func deriveInterest(latest *types.UsageRecord, now time.Time) *InterestStatus {
	if latest == nil {
		return &InterestStatus{State: types.InterestNone}
	}
	end := latest.UpdatedAt.Add(interestWindow)
	if !now.Before(end) {
		return &InterestStatus{State: types.InterestNone, InterestEndDate: &end}
	}
	remaining := end.Sub(now)
	state := types.InterestActive
	if remaining <= interestWarnWindow {
		state = types.InterestEndingSoon
	}
	return &InterestStatus{
		State:            state,
		InterestEndDate:  &end,
		RemainingSeconds: int64(remaining / time.Second),
	}
}
