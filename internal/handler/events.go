package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cart"
)

// cartEvents streams the cart as Server-Sent Events: the current snapshot
// first, then one "cart" event per change. A slow client only ever sees the
// latest snapshot; intermediate ones are dropped.
func (h *Handler) cartEvents(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(w, r)
	if err != nil {
		return err
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	updates := make(chan cart.Snapshot, 1)
	cancel := s.Cart.Subscribe(func(snap cart.Snapshot) {
		// Subscribers are serialized, so the drain cannot race another send.
		select {
		case <-updates:
		default:
		}
		updates <- snap
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	lg := zctx.From(r.Context()).With(zap.String("session", s.ID))
	lg.Debug("Cart stream opened")
	defer lg.Debug("Cart stream closed")

	// The status is already sent, so write failures of a departed client are
	// only logged.
	streamDone := func(err error) error {
		lg.Debug("Cart stream write failed", zap.Error(err))
		return nil
	}

	send := func(snap cart.Snapshot) error {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		encodeCart(e, snap)
		if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", e.Bytes()); err != nil {
			return err
		}
		return rc.Flush()
	}
	if err := send(s.Cart.Snapshot()); err != nil {
		return streamDone(err)
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-h.streamsDone:
			lg.Debug("Cart stream closed by shutdown")
			return nil
		case snap := <-updates:
			if err := send(snap); err != nil {
				return streamDone(err)
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return streamDone(err)
			}
			if err := rc.Flush(); err != nil {
				return streamDone(err)
			}
		}
	}
}
