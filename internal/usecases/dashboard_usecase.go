package usecases

import (
	"context"
	"fmt"

	"pageflow/internal/repository"
)

// DashboardUsecase serves the account overview and per-page activity
// numbers shown on the dashboard home screen.
type DashboardUsecase struct {
	statsRepo *repository.StatsRepository
	pageRepo  *repository.PageRepository
}

func NewDashboardUsecase(statsRepo *repository.StatsRepository, pageRepo *repository.PageRepository) *DashboardUsecase {
	return &DashboardUsecase{
		statsRepo: statsRepo,
		pageRepo:  pageRepo,
	}
}

func (u *DashboardUsecase) Overview(ctx context.Context, userID string) (*repository.AccountOverview, error) {
	return u.statsRepo.Overview(ctx, userID)
}

// PageActivity returns daily message volume for a page the user owns.
func (u *DashboardUsecase) PageActivity(ctx context.Context, userID, pageID string, days int) ([]repository.DailyActivity, error) {
	page, err := u.pageRepo.GetForUser(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page not found")
	}

	if days < 1 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	return u.statsRepo.PageActivity(ctx, page.ID, days)
}
