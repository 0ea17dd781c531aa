package service

import (
	"context"
	"fmt"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra/storage"

	"github.com/google/uuid"
)

// NotificationService records in-app trade notifications. Callers treat
// delivery as best-effort: they log and discard any error returned here.
type NotificationService struct {
	store *storage.Store
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(store *storage.Store) *NotificationService {
	return &NotificationService{store: store}
}

// NotifyTrade records a fill notification for the member.
func (s *NotificationService) NotifyTrade(ctx context.Context, memberID int64, stockCode, stockName, side string, quantity, price int64) error {
	verb := "매수"
	if side == domain.SideSell {
		verb = "매도"
	}

	n := &domain.Notification{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Category: domain.NotificationCategoryTrade,
		Message: fmt.Sprintf("%s(%s) %d주 %s 체결 @ %d원",
			stockName, stockCode, quantity, verb, price),
		CreatedAt: time.Now(),
	}
	return s.store.CreateNotification(n)
}
