// Package ws serves encounter sheets to browser clients over WebSocket.
//
// Each connection joins one sheet and drives its own session; changes made
// by any connection reach every joined client as sheet.changed frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	errori18n "github.com/louisbranch/initiative/internal/platform/errors/i18n"
	"github.com/louisbranch/initiative/internal/platform/i18n"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/dice"
	"github.com/louisbranch/initiative/internal/services/encounter/session"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

// Options configures the sessions opened by WebSocket clients.
type Options struct {
	AllowNegativeHealth bool
	RollbackOnFailure   bool
	// NewRoller builds the dice roller for one connection. Defaults to
	// dice.NewRandomRoller.
	NewRoller func() (*dice.Roller, error)
}

// NewHandler returns the sheet routes backed by store.
func NewHandler(store session.Store, opts Options) http.Handler {
	if opts.NewRoller == nil {
		opts.NewRoller = dice.NewRandomRoller
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, store, opts)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

func handleWSConn(conn *websocket.Conn, store session.Store, opts Options) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	decoder := json.NewDecoder(conn)
	peer := newWSPeer(json.NewEncoder(conn))
	client := newClient(store, peer, opts)
	defer client.close()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case frameJoin:
			client.handleJoin(ctx, frame)
		case frameAction:
			client.handleAction(ctx, frame)
		case frameRoll:
			client.handleRoll(frame)
		default:
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

// writeDomainError reports err on the request. Transport failures were
// already pushed as notifications, so they are acknowledged as failed.
func writeDomainError(peer *wsPeer, requestID, locale string, err error) {
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.CodeTransportUpdateFailed, apperrors.CodeTransportFetchFailed:
		_ = writeAck(peer, requestID, ackResult{Status: "failed", Code: string(code)})
		return
	case apperrors.CodeUnknown:
		log.Printf("ws: request %s failed: %v", requestID, err)
		_ = writeWSError(peer, requestID, "INTERNAL", "internal error")
		return
	}
	_ = writeWSError(peer, requestID, string(code), errorMessage(locale, err))
}

func errorMessage(locale string, err error) string {
	if message, ok := errori18n.Message(locale, err); ok {
		return message
	}
	return err.Error()
}

func notificationMessage(locale string, n session.Notification) string {
	switch n.Kind {
	case session.KindConcentration:
		return i18n.Sprintf(locale, i18n.KeyConcentration, n.CombatantName)
	case session.KindDowned:
		return i18n.Sprintf(locale, i18n.KeyDowned, n.CombatantName)
	case session.KindDead:
		return i18n.Sprintf(locale, i18n.KeyDead, n.CombatantName)
	case session.KindStable:
		return i18n.Sprintf(locale, i18n.KeyStable, n.CombatantName)
	case session.KindUpdateFailed:
		return i18n.Sprintf(locale, i18n.KeyUpdateFailed, n.Err)
	case session.KindFetchFailed:
		return i18n.Sprintf(locale, i18n.KeyFetchFailed, n.Err)
	default:
		return string(n.Kind)
	}
}
