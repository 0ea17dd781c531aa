package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/storage"
	"stock_go/internal/service"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := &infra.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "engine_test.db") + "?_pragma=busy_timeout(5000)"

	s, err := storage.NewStore(cfg)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return s
}

// stubOracle is a thread-safe in-memory price oracle.
type stubOracle struct {
	mu     sync.RWMutex
	prices map[string]int64
	calls  int
}

func newStubOracle() *stubOracle {
	return &stubOracle{prices: make(map[string]int64)}
}

func (o *stubOracle) set(code string, price int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[code] = price
}

func (o *stubOracle) LatestPrice(code string) (*domain.Quote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	p, ok := o.prices[code]
	if !ok {
		return nil, false
	}
	return &domain.Quote{StockCode: code, Price: p, ReceivedAt: time.Now()}, true
}

func (o *stubOracle) callCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls
}

// stubNotifier records calls; optionally blocks until released.
type stubNotifier struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (n *stubNotifier) NotifyTrade(ctx context.Context, memberID int64, stockCode, stockName, side string, quantity, price int64) error {
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *stubNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func newTestExecutor(t *testing.T, store *storage.Store, oracle *stubOracle) (*Executor, *stubNotifier, *MemberLocks) {
	t.Helper()
	locks := NewMemberLocks()
	notifier := &stubNotifier{}
	exec := NewExecutor(store, oracle, service.NewPortfolioService(), notifier, locks)
	return exec, notifier, locks
}

func seedMember(t *testing.T, store *storage.Store, cash int64) *domain.Member {
	t.Helper()
	m := &domain.Member{Nickname: "tester", CashBalance: cash, SeedMoney: cash}
	if err := store.SaveMember(m); err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	return m
}

func seedPendingOrder(t *testing.T, store *storage.Store, memberID int64, side string, quantity, limitPrice int64) *domain.Order {
	t.Helper()
	o := &domain.Order{
		OrderNo:   "test-" + side + "-" + t.Name(),
		StockCode: "005930",
		StockName: "삼성전자",
		Kind:      domain.OrderKindLimit,
		Side:      side,
		Quantity:  quantity,
		Price:     limitPrice,
		Status:    domain.OrderStatusPending,
		MemberID:  memberID,
		CreatedAt: time.Now(),
	}
	if err := store.CreateOrder(o); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return o
}

func seedPortfolio(t *testing.T, store *storage.Store, memberID int64, quantity, avgPrice int64) {
	t.Helper()
	p := &domain.Portfolio{
		MemberID:  memberID,
		StockCode: "005930",
		StockName: "삼성전자",
		Quantity:  quantity,
		AvgPrice:  avgPrice,
		CreatedAt: time.Now(),
	}
	if err := store.CreatePortfolio(p); err != nil {
		t.Fatalf("failed to seed portfolio: %v", err)
	}
}

func TestExecutorFillsBuyWithRefund(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, notifier, _ := newTestExecutor(t, store, oracle)

	// Member placed a limit buy of 10 @ 900: 9000 is already frozen.
	member := seedMember(t, store, 30_000_000-9000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)

	// Price dropped to 880: fill at 880 and refund 9000-8800=200.
	oracle.set("005930", 880)
	exec.ProcessOrder(context.Background(), order.ID)

	got, err := store.OrderByID(order.ID)
	if err != nil {
		t.Fatalf("OrderByID failed: %v", err)
	}
	if got.Status != domain.OrderStatusExecuted {
		t.Fatalf("expected EXECUTED, got %s", got.Status)
	}

	trades, err := store.TradesByMember(member.ID)
	if err != nil {
		t.Fatalf("TradesByMember failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 880 || trades[0].Quantity != 10 {
		t.Errorf("expected trade 10 @ 880, got %d @ %d", trades[0].Quantity, trades[0].Price)
	}

	m, err := store.Member(member.ID)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	wantCash := int64(30_000_000 - 9000 + 200)
	if m.CashBalance != wantCash {
		t.Errorf("expected cash %d, got %d", wantCash, m.CashBalance)
	}

	p, err := store.PortfolioForUpdate(member.ID, "005930")
	if err != nil {
		t.Fatalf("PortfolioForUpdate failed: %v", err)
	}
	if p.Quantity != 10 || p.AvgPrice != 880 {
		t.Errorf("expected position 10 @ 880, got %d @ %d", p.Quantity, p.AvgPrice)
	}

	if notifier.callCount() != 1 {
		t.Errorf("expected 1 notification, got %d", notifier.callCount())
	}
}

func TestExecutorFillsSell(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 1000)
	seedPortfolio(t, store, member.ID, 10, 900)
	order := seedPendingOrder(t, store, member.ID, domain.SideSell, 10, 1000)

	oracle.set("005930", 1050)
	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusExecuted {
		t.Fatalf("expected EXECUTED, got %s", got.Status)
	}

	m, _ := store.Member(member.ID)
	if m.CashBalance != 1000+10*1050 {
		t.Errorf("expected cash %d, got %d", 1000+10*1050, m.CashBalance)
	}

	// Position sold out entirely: the row is gone.
	if _, err := store.PortfolioForUpdate(member.ID, "005930"); err != domain.ErrNotFoundPortfolio {
		t.Errorf("expected ErrNotFoundPortfolio, got %v", err)
	}
}

func TestExecutorOversellCancels(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, notifier, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 5000)
	seedPortfolio(t, store, member.ID, 4, 900)
	order := seedPendingOrder(t, store, member.ID, domain.SideSell, 10, 1000)

	oracle.set("005930", 1050)
	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}

	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}

	m, _ := store.Member(member.ID)
	if m.CashBalance != 5000 {
		t.Errorf("cash changed on cancel: got %d", m.CashBalance)
	}
	p, _ := store.PortfolioForUpdate(member.ID, "005930")
	if p.Quantity != 4 {
		t.Errorf("holdings changed on cancel: got %d", p.Quantity)
	}
	if notifier.callCount() != 0 {
		t.Errorf("expected no notification on cancel, got %d", notifier.callCount())
	}
}

func TestExecutorMissingPortfolioCancels(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 5000)
	order := seedPendingOrder(t, store, member.ID, domain.SideSell, 10, 1000)

	oracle.set("005930", 1050)
	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
}

func TestExecutorSkipsUnmetCondition(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 30_000_000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)

	oracle.set("005930", 950)
	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
}

func TestExecutorSkipsWithoutQuote(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 30_000_000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)

	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING (retried next scan), got %s", got.Status)
	}
}

func TestExecutorResolvedOrderIsSilent(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, notifier, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 5000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)
	if err := order.Execute(); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveOrder(order); err != nil {
		t.Fatal(err)
	}

	oracle.set("005930", 880)
	exec.ProcessOrder(context.Background(), order.ID)

	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 0 {
		t.Errorf("resolved order produced trades: %d", len(trades))
	}
	if notifier.callCount() != 0 {
		t.Errorf("resolved order produced notifications: %d", notifier.callCount())
	}
}

func TestExecutorAtMostOnce(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, _ := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 30_000_000-9000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)
	oracle.set("005930", 880)

	const attempts = 8
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.ProcessOrder(context.Background(), order.ID)
		}()
	}
	wg.Wait()

	trades, err := store.TradesByMember(member.ID)
	if err != nil {
		t.Fatalf("TradesByMember failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("at-most-once violated: %d trades", len(trades))
	}

	m, _ := store.Member(member.ID)
	wantCash := int64(30_000_000 - 9000 + 200)
	if m.CashBalance != wantCash {
		t.Errorf("refund applied more than once: cash %d, want %d", m.CashBalance, wantCash)
	}
}

func TestExecutorSkipsOnLockContention(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()
	exec, _, locks := newTestExecutor(t, store, oracle)

	member := seedMember(t, store, 30_000_000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)
	oracle.set("005930", 880)

	// Another operation for the member is in flight.
	locks.Lock(member.ID)
	defer locks.Unlock(member.ID)

	exec.ProcessOrder(context.Background(), order.ID)

	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING after lock skip, got %s", got.Status)
	}
	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 0 {
		t.Errorf("expected no trades under contention, got %d", len(trades))
	}
}

func TestExecutorSameMemberSerialized(t *testing.T) {
	store := newTestStore(t)
	oracle := newStubOracle()

	locks := NewMemberLocks()
	gate := make(chan struct{})
	notifier := &stubNotifier{gate: gate}
	exec := NewExecutor(store, oracle, service.NewPortfolioService(), notifier, locks)

	member := seedMember(t, store, 30_000_000-9000-9000)
	orderA := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)
	orderB := &domain.Order{
		OrderNo: "test-b", StockCode: "005930", StockName: "삼성전자",
		Kind: domain.OrderKindLimit, Side: domain.SideBuy,
		Quantity: 10, Price: 900, Status: domain.OrderStatusPending,
		MemberID: member.ID, CreatedAt: time.Now(),
	}
	if err := store.CreateOrder(orderB); err != nil {
		t.Fatal(err)
	}
	oracle.set("005930", 880)

	// Order A holds the member lock while blocked in its notifier.
	doneA := make(chan struct{})
	go func() {
		exec.ProcessOrder(context.Background(), orderA.ID)
		close(doneA)
	}()

	// Wait until A committed its trade and is parked in the notifier.
	deadline := time.After(5 * time.Second)
	for {
		trades, _ := store.TradesByMember(member.ID)
		if len(trades) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("order A never reached the notifier")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// B observes contention and defers; it must not mutate anything.
	exec.ProcessOrder(context.Background(), orderB.ID)
	gotB, _ := store.OrderByID(orderB.ID)
	if gotB.Status != domain.OrderStatusPending {
		t.Errorf("expected order B to stay PENDING, got %s", gotB.Status)
	}

	close(gate)
	<-doneA

	// A finished; exactly one of the two overlapping fills proceeded.
	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 1 {
		t.Errorf("expected exactly 1 trade from the overlapping window, got %d", len(trades))
	}
}

func TestExecutorRechecksPriceUnderLock(t *testing.T) {
	store := newTestStore(t)
	oracle := &flappingOracle{first: 880, then: 950}
	locks := NewMemberLocks()
	exec := NewExecutor(store, oracle, service.NewPortfolioService(), &stubNotifier{}, locks)

	member := seedMember(t, store, 30_000_000)
	order := seedPendingOrder(t, store, member.ID, domain.SideBuy, 10, 900)

	exec.ProcessOrder(context.Background(), order.ID)

	// The first read matched, the re-read under the lock did not.
	got, _ := store.OrderByID(order.ID)
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected PENDING after price moved away, got %s", got.Status)
	}
	trades, _ := store.TradesByMember(member.ID)
	if len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
}

// flappingOracle returns `first` once, then `then` forever.
type flappingOracle struct {
	mu    sync.Mutex
	first int64
	then  int64
	used  bool
}

func (o *flappingOracle) LatestPrice(code string) (*domain.Quote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	price := o.then
	if !o.used {
		price = o.first
		o.used = true
	}
	return &domain.Quote{StockCode: code, Price: price, ReceivedAt: time.Now()}, true
}
