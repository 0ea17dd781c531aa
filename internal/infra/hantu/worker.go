package hantu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	maxRetries   = 10
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// quoteResponse represents a Hantu realtime quote message
type quoteResponse struct {
	Type      string `json:"type"` // "quote"
	StockCode string `json:"stock_code"`
	Price     int64  `json:"price"`
	Volume    int64  `json:"volume"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Worker handles the Hantu quote feed WebSocket connection and pushes
// incoming quotes into the price service channel.
type Worker struct {
	wsURL     string
	appKey    string
	symbols   []string
	quotes    chan<- []*domain.Quote
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a new Hantu feed worker
func NewWorker(wsURL, appKey string, symbols []string, quotes chan<- []*domain.Quote) *Worker {
	return &Worker{
		wsURL:   wsURL,
		appKey:  appKey,
		symbols: symbols,
		quotes:  quotes,
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports whether the feed is currently connected.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Hantu connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	if w.appKey != "" {
		header.Add("appkey", w.appKey)
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("Hantu feed connected", slog.Int("subs", len(w.symbols)))
	return nil
}

func (w *Worker) subscribe() error {
	msg := map[string]interface{}{
		"ticket": fmt.Sprintf("stock-go-%d", time.Now().UnixNano()),
		"type":   "quote",
		"codes":  w.symbols,
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("no conn")
	}
	return conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var resp quoteResponse
	if json.Unmarshal(msg, &resp) != nil || resp.Type != "quote" {
		return
	}

	q := &domain.Quote{
		StockCode:  resp.StockCode,
		Price:      resp.Price,
		Volume:     resp.Volume,
		ReceivedAt: time.UnixMilli(resp.Timestamp),
	}

	select {
	case w.quotes <- []*domain.Quote{q}:
	default: // DROP
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the worker and closes the connection.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
