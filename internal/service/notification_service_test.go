package service

import (
	"context"
	"strings"
	"testing"

	"stock_go/internal/domain"
)

func TestNotifyTradePersistsRow(t *testing.T) {
	store := newTestStore(t)
	svc := NewNotificationService(store)

	err := svc.NotifyTrade(context.Background(), 1, "005930", "삼성전자", domain.SideBuy, 10, 70_000)
	if err != nil {
		t.Fatalf("NotifyTrade failed: %v", err)
	}

	ns, err := store.NotificationsByMember(1)
	if err != nil {
		t.Fatalf("NotificationsByMember failed: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(ns))
	}
	n := ns[0]
	if n.Category != domain.NotificationCategoryTrade {
		t.Errorf("expected TRADE category, got %s", n.Category)
	}
	if n.Read {
		t.Error("new notification must be unread")
	}
	if !strings.Contains(n.Message, "매수") || !strings.Contains(n.Message, "70000원") {
		t.Errorf("unexpected message: %s", n.Message)
	}
}

func TestNotifyTradeSellVerb(t *testing.T) {
	store := newTestStore(t)
	svc := NewNotificationService(store)

	if err := svc.NotifyTrade(context.Background(), 2, "005930", "삼성전자", domain.SideSell, 3, 1000); err != nil {
		t.Fatalf("NotifyTrade failed: %v", err)
	}

	ns, _ := store.NotificationsByMember(2)
	if len(ns) != 1 || !strings.Contains(ns[0].Message, "매도") {
		t.Errorf("expected sell verb in message, got %+v", ns)
	}
}
