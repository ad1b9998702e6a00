package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	streamReadTimeout  = 90 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
	streamBuffer       = 64
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Stream clients are trading services, not browsers.
	CheckOrigin: func(*http.Request) bool { return true },
}

type streamCommand struct {
	channel string
	payload any
}

// priceStream describes one live price feed and the bus commands that
// start and stop tracking for it.
type priceStream struct {
	key         string
	channels    []string
	subscribe   streamCommand
	unsubscribe streamCommand
	// match reports whether payload is for this client and whether it is
	// the final event of the stream.
	match       func(channel string, payload []byte) (send, final bool)
	// initial, when set, produces the cached price sent on connect.
	initial     func(ctx context.Context) (any, error)
}

type streamEvent struct {
	payload []byte
	final   bool
}

// PoolPriceStream relays price updates for the poolId query parameter
func (h *Handlers) PoolPriceStream(c echo.Context) error {
	poolKey, err := parsePublicKey(c.QueryParam("poolId"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid poolId", map[string]any{"poolId": err.Error()})
	}
	err = h.checkTrackable(c, func(ctx context.Context) error {
		_, err := h.Resolver.Resolve(ctx, poolKey)
		return err
	})
	if err != nil {
		return h.fail(c, err)
	}
	poolID := poolKey.String()
	cmd := models.PoolCommand{PoolID: poolID}

	return h.serveStream(c, priceStream{
		key:         poolID,
		channels:    []string{constants.ChannelPoolPrices},
		subscribe:   streamCommand{constants.ChannelPoolSubscribe, cmd},
		unsubscribe: streamCommand{constants.ChannelPoolUnsubscribe, cmd},
		match: func(_ string, payload []byte) (bool, bool) {
			var msg struct {
				PoolID string `json:"poolID"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				return false, false
			}
			return msg.PoolID == poolID, false
		},
		initial: func(ctx context.Context) (any, error) {
			return h.Bus.LastPrice(ctx, poolID)
		},
	})
}

// PumpPriceStream relays bonding curve prices for tokenMint under the
// caller's trade_id. The stream ends after a liquidity withdrawal.
func (h *Handlers) PumpPriceStream(c echo.Context) error {
	mint, err := parsePublicKey(c.QueryParam("tokenMint"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid tokenMint", map[string]any{"tokenMint": err.Error()})
	}
	tradeID := strings.TrimSpace(c.QueryParam("trade_id"))
	if tradeID == "" {
		return h.err(c, http.StatusBadRequest, "trade_id is required", map[string]any{"trade_id": "required"})
	}
	err = h.checkTrackable(c, func(ctx context.Context) error {
		_, err := h.Resolver.QuoteBondingCurve(ctx, mint)
		return err
	})
	if err != nil {
		return h.fail(c, err)
	}
	cmd := models.BondingCurveCommand{TokenMint: mint.String(), TradeID: tradeID}

	return h.serveStream(c, priceStream{
		key:         tradeID,
		channels:    []string{constants.ChannelBondingCurvePrices, constants.ChannelLiquidityWithdrawn},
		subscribe:   streamCommand{constants.ChannelBondingCurveSubscribe, cmd},
		unsubscribe: streamCommand{constants.ChannelBondingCurveUnsubscribe, cmd},
		match: func(channel string, payload []byte) (bool, bool) {
			var msg struct {
				TradeID string `json:"trade_id"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil || msg.TradeID != tradeID {
				return false, false
			}
			return true, channel == constants.ChannelLiquidityWithdrawn
		},
	})
}

// checkTrackable runs check before the upgrade, so a pool the relay could
// not track is refused with a JSON error instead of a silent stream. It is
// skipped when no resolver is configured.
func (h *Handlers) checkTrackable(c echo.Context, check func(ctx context.Context) error) error {
	if h.Resolver == nil {
		return nil
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 0)
	defer cancel()
	return check(ctx)
}

// serveStream upgrades the connection, asks the relay to track s.key and
// forwards matching bus messages until either side goes away.
func (h *Handlers) serveStream(c echo.Context, s priceStream) error {
	conn, err := streamUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger().WithError(err).Warn("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	log := h.logger().WithField("stream", s.key)
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	out := make(chan streamEvent, streamBuffer)
	busErr := make(chan error, 1)
	go func() {
		busErr <- h.Bus.Subscribe(ctx, func(channel string, payload []byte) {
			send, final := s.match(channel, payload)
			if !send {
				return
			}
			ev := streamEvent{payload: payload, final: final}
			if final {
				select {
				case out <- ev:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- ev:
			default:
				log.Warn("stream client too slow, dropping price")
			}
		}, s.channels...)
	}()

	if err := h.streams.acquire(s.key, func() error { return h.publish(ctx, s.subscribe) }); err != nil {
		log.WithError(err).Error("failed to request tracking")
		_ = closeStream(conn, websocket.CloseInternalServerErr, "tracking unavailable")
		return nil
	}
	defer func() {
		err := h.streams.release(s.key, func() error {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			return h.publish(pubCtx, s.unsubscribe)
		})
		if err != nil {
			log.WithError(err).Error("failed to release tracking")
		}
	}()

	log.Debug("price stream opened")

	if s.initial != nil {
		if v, err := s.initial(ctx); err == nil {
			if err := writeStreamJSON(conn, v); err != nil {
				return nil
			}
		}
	}

	readErr := make(chan error, 1)
	go readStream(conn, readErr)

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			log.WithError(err).Debug("price stream client left")
			return nil
		case err := <-busErr:
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("price bus subscription ended")
			}
			_ = closeStream(conn, websocket.CloseGoingAway, "price feed unavailable")
			return nil
		case ev := <-out:
			if err := writeStream(conn, ev.payload); err != nil {
				return nil
			}
			if ev.final {
				_ = closeStream(conn, websocket.CloseNormalClosure, "liquidity withdrawn")
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return nil
			}
		}
	}
}

func (h *Handlers) publish(ctx context.Context, cmd streamCommand) error {
	if err := h.Bus.PublishJSON(ctx, cmd.channel, cmd.payload); err != nil {
		return fmt.Errorf("publish %s: %w", cmd.channel, err)
	}
	h.logger().WithFields(logrus.Fields{
		"channel": cmd.channel,
		"command": cmd.payload,
	}).Debug("published command")
	return nil
}

// readStream drains client frames so pongs and close frames are processed.
func readStream(conn *websocket.Conn, readErr chan<- error) {
	conn.SetReadLimit(4096)
	if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err == nil {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		})
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			readErr <- err
			return
		}
	}
}

func writeStream(conn *websocket.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func writeStreamJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func closeStream(conn *websocket.Conn, code int, text string) error {
	msg := websocket.FormatCloseMessage(code, text)
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
}

// streamRefs counts open streams per identifier. The relay is asked to
// track an identifier when its first stream opens and to drop it when the
// last one closes. Commands are published under mu so a close and a reopen
// of the same identifier reach the relay in order.
type streamRefs struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *streamRefs) acquire(id string, first func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	if r.counts[id] == 0 {
		if err := first(); err != nil {
			return err
		}
	}
	r.counts[id]++
	return nil
}

func (r *streamRefs) release(id string, last func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[id] <= 1 {
		delete(r.counts, id)
		return last()
	}
	r.counts[id]--
	return nil
}
