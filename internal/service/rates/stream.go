package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"RateCast/internal/domain/models"
	drepo "RateCast/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a RateStream backed by the provider WebSocket feed.
type Stream struct {
	apiKey         string
	websocketURL   string
	currencies     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a live rate feed for the given currency codes.
func NewStream(apiKey, websocketURL string, currencies []string, reconnectDelay, pingInterval time.Duration) drepo.RateStream {
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		currencies:     currencies,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("rates connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	log.Printf("rates: connected")
	return nil
}

// Subscribe subscribes to configured currencies.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("rates stream not connected")
	}
	for _, c := range s.currencies {
		msg := map[string]string{"type": "subscribe", "currency": c}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", c, err)
		}
		log.Printf("rates: subscribed %s", c)
	}
	return nil
}

type wireRate struct {
	C string  `json:"currency"`
	R float64 `json:"rate"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string     `json:"type"`
	Data []wireRate `json:"data"`
}

// Read streams rate updates and errors.
func (s *Stream) Read(ctx context.Context) (<-chan *models.RatePoint, <-chan error) {
	points := make(chan *models.RatePoint, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(points)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("rates conn nil")
					return
				}
				_, b, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("rates read: %w", err)
					return
				}
				var m wireMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-rate frames
					continue
				}
				if m.Type != "rate" {
					continue
				}
				for _, d := range m.Data {
					point := &models.RatePoint{
						Currency: d.C,
						Date:     time.UnixMilli(d.T).UTC(),
						Rate:     d.R,
					}
					select {
					case points <- point:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return points, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
