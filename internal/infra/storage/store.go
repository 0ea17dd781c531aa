package storage

import (
	"errors"
	"fmt"

	"stock_go/internal/domain"
	"stock_go/internal/infra"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store wraps the ledger database: members, orders, trades, portfolios and
// notifications. Row-level exclusive locks are taken with SELECT ... FOR
// UPDATE inside a transaction; that lock is the source of truth for
// balance/holding safety, the in-process member locks are advisory on top.
type Store struct {
	db *gorm.DB
}

// NewStore opens the configured database and migrates the schema.
func NewStore(cfg *infra.Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DB.DSN)
	case "sqlite":
		dsn := cfg.DB.DSN
		if dsn == "" {
			dsn = "data/stock.db?_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.DB.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Member{},
		&domain.Order{},
		&domain.Trade{},
		&domain.Portfolio{},
		&domain.Notification{},
	)
}

// InTx runs fn inside a transaction. The *Store handed to fn is bound to
// that transaction; fn returning an error rolls everything back.
func (s *Store) InTx(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// forUpdate applies a row-level exclusive lock where the dialect supports
// it. SQLite has no FOR UPDATE; its single-writer transactions serialize
// mutations on their own.
func (s *Store) forUpdate() *gorm.DB {
	if s.db.Dialector.Name() == "sqlite" {
		return s.db
	}
	return s.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ======================================================================================
// Member Operations
// ======================================================================================

// MemberForUpdate reads a member row under an exclusive lock.
func (s *Store) MemberForUpdate(id int64) (*domain.Member, error) {
	var m domain.Member
	err := s.forUpdate().First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundMemberError{MemberID: id}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Member reads a member row without locking.
func (s *Store) Member(id int64) (*domain.Member, error) {
	var m domain.Member
	err := s.db.First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundMemberError{MemberID: id}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMember persists member mutations (cash balance, profit rate).
func (s *Store) SaveMember(m *domain.Member) error {
	return s.db.Save(m).Error
}

// AllMembers returns every member, for the daily profit scheduler.
func (s *Store) AllMembers() ([]domain.Member, error) {
	var members []domain.Member
	err := s.db.Find(&members).Error
	return members, err
}

// ======================================================================================
// Order Operations
// ======================================================================================

// CreateOrder inserts a new order.
func (s *Store) CreateOrder(o *domain.Order) error {
	return s.db.Create(o).Error
}

// SaveOrder persists an order state transition.
func (s *Store) SaveOrder(o *domain.Order) error {
	return s.db.Save(o).Error
}

// OrderByID reads an order without locking.
func (s *Store) OrderByID(id int64) (*domain.Order, error) {
	var o domain.Order
	err := s.db.First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFoundOrder
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderForUpdate reads an order row under an exclusive lock. The execution
// engine re-reads status through this right before a fill.
func (s *Store) OrderForUpdate(id int64) (*domain.Order, error) {
	var o domain.Order
	err := s.forUpdate().First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFoundOrder
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// PendingLimitOrders returns all PENDING LIMIT orders, oldest first.
// This is the scanner's selection query.
func (s *Store) PendingLimitOrders() ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.
		Where("status = ? AND kind = ?", domain.OrderStatusPending, domain.OrderKindLimit).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// DeleteOrdersByMember bulk-removes a closed account's orders.
func (s *Store) DeleteOrdersByMember(memberID int64) error {
	return s.db.Where("member_id = ?", memberID).Delete(&domain.Order{}).Error
}

// ======================================================================================
// Trade Operations
// ======================================================================================

// CreateTrade appends an immutable trade record.
func (s *Store) CreateTrade(t *domain.Trade) error {
	return s.db.Create(t).Error
}

// TradesByMember returns a member's trades, newest first.
func (s *Store) TradesByMember(memberID int64) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := s.db.
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&trades).Error
	return trades, err
}

// ======================================================================================
// Portfolio Operations
// ======================================================================================

// PortfolioForUpdate reads a position row under an exclusive lock.
// A missing row returns domain.ErrNotFoundPortfolio.
func (s *Store) PortfolioForUpdate(memberID int64, stockCode string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.forUpdate().
		First(&p, "member_id = ? AND stock_code = ?", memberID, stockCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFoundPortfolio
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePortfolio persists a position mutation.
func (s *Store) SavePortfolio(p *domain.Portfolio) error {
	return s.db.Save(p).Error
}

// CreatePortfolio inserts a new position row.
func (s *Store) CreatePortfolio(p *domain.Portfolio) error {
	return s.db.Create(p).Error
}

// DeletePortfolio removes an emptied position row.
func (s *Store) DeletePortfolio(p *domain.Portfolio) error {
	return s.db.Delete(p).Error
}

// PortfoliosByMember returns all of a member's positions.
func (s *Store) PortfoliosByMember(memberID int64) ([]domain.Portfolio, error) {
	var portfolios []domain.Portfolio
	err := s.db.Where("member_id = ?", memberID).Find(&portfolios).Error
	return portfolios, err
}

// ======================================================================================
// Notification Operations
// ======================================================================================

// CreateNotification inserts an in-app notification row.
func (s *Store) CreateNotification(n *domain.Notification) error {
	return s.db.Create(n).Error
}

// NotificationsByMember returns a member's notifications, newest first.
func (s *Store) NotificationsByMember(memberID int64) ([]domain.Notification, error) {
	var ns []domain.Notification
	err := s.db.
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&ns).Error
	return ns, err
}
