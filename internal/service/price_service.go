package service

import (
	"context"
	"sync"

	"stock_go/internal/domain"
)

// PriceService holds the latest known quote per stock code. It is the
// price oracle for order intake and the execution engine: a missing quote
// is a normal condition (feed not warmed up yet), never an error.
type PriceService struct {
	mu        sync.RWMutex
	quotes    map[string]*domain.Quote
	quoteChan chan []*domain.Quote
}

// NewPriceService creates a new PriceService instance
func NewPriceService() *PriceService {
	return &PriceService{
		quotes:    make(map[string]*domain.Quote),
		quoteChan: make(chan []*domain.Quote, 1000), // 버스트 대응을 위한 충분한 버퍼
	}
}

// LatestPrice returns the latest quote for a stock code, or false when no
// quote has arrived yet.
func (s *PriceService) LatestPrice(stockCode string) (*domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[stockCode]
	if !ok {
		return nil, false
	}
	cp := *q
	return &cp, true
}

// QuoteChan returns the channel the feed workers push quotes into.
func (s *PriceService) QuoteChan() chan<- []*domain.Quote {
	return s.quoteChan
}

// StartQuoteProcessor starts a background goroutine draining the quote
// channel into the latest-price map.
func (s *PriceService) StartQuoteProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case quotes := <-s.quoteChan:
				s.ProcessQuotes(quotes)
			}
		}
	}()
}

// ProcessQuotes updates the latest-price map. It is thread-safe.
func (s *PriceService) ProcessQuotes(quotes []*domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		s.quotes[q.StockCode] = q
	}
}
