// SPDX-License-Identifier: EPL-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/ik5/vocalengine/adaptive"
)

// Message is the wire form of adaptive.Sample.
type Message struct {
	PitchAccuracy     float64 `json:"pitchAccuracy"`
	TempoConsistency  float64 `json:"tempoConsistency"`
	Confidence        float64 `json:"confidence"`
	DetectedFrequency float64 `json:"detectedFrequency,omitempty"`
	// Timestamp in Unix milliseconds; zero means arrival time.
	Timestamp int64 `json:"timestamp,omitempty"`
}

func (m Message) Sample(now time.Time) adaptive.Sample {
	ts := now
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp)
	}

	return adaptive.Sample{
		PitchAccuracy:     m.PitchAccuracy,
		TempoConsistency:  m.TempoConsistency,
		Confidence:        m.Confidence,
		DetectedFrequency: m.DetectedFrequency,
		Timestamp:         ts,
	}
}

// Reply is sent after every frame. Error is empty when the frame was applied.
type Reply struct {
	TempoMultiplier  float64 `json:"tempoMultiplier"`
	KeySemitoneShift float64 `json:"keySemitoneShift"`
	VolumeScale      float64 `json:"volumeScale"`
	EffectsIntensity float64 `json:"effectsIntensity"`
	Error            string  `json:"error"`
}

func replyFor(st adaptive.State) Reply {
	return Reply{
		TempoMultiplier:  st.TempoMultiplier,
		KeySemitoneShift: st.KeySemitoneShift,
		VolumeScale:      st.VolumeScale,
		EffectsIntensity: st.EffectsIntensity,
	}
}

// AdaptFunc consumes a sample and returns the resulting state.
type AdaptFunc func(adaptive.Sample) adaptive.State

// Handler is an http.Handler upgrading to a WebSocket.
type Handler struct {
	adapt   AdaptFunc
	current func() adaptive.State
	log     logrus.FieldLogger
	accept  *websocket.AcceptOptions
	now     func() time.Time
}

// NewHandler forwards samples to adapt. current answers frames that are not
// valid samples.
func NewHandler(adapt AdaptFunc, current func() adaptive.State, accept *websocket.AcceptOptions, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Handler{
		adapt:   adapt,
		current: current,
		log:     log,
		accept:  accept,
		now:     time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"function": "ServeHTTP",
			"remote":   r.RemoteAddr,
			"error":    err.Error(),
		}).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	h.log.WithFields(logrus.Fields{
		"function": "ServeHTTP",
		"remote":   r.RemoteAddr,
	}).Info("Metrics stream connected")

	err = h.serve(r.Context(), conn)

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		_ = conn.Close(websocket.StatusNormalClosure, "")
	default:
		if err != nil && !errors.Is(err, context.Canceled) {
			h.log.WithFields(logrus.Fields{
				"function": "ServeHTTP",
				"remote":   r.RemoteAddr,
				"error":    err.Error(),
			}).Warn("Metrics stream ended")
		}
		_ = conn.Close(websocket.StatusInternalError, "")
	}
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var reply Reply
		var m Message
		switch {
		case typ != websocket.MessageText:
			reply = replyFor(h.current())
			reply.Error = "expected a text frame"
		case json.Unmarshal(data, &m) != nil:
			reply = replyFor(h.current())
			reply.Error = "malformed sample"
		default:
			reply = replyFor(h.adapt(m.Sample(h.now())))
		}

		if reply.Error != "" {
			h.log.WithFields(logrus.Fields{
				"function": "serve",
				"reason":   reply.Error,
			}).Debug("Ignoring frame")
		}

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return err
		}
	}
}

// ListenAndServe serves h at path on addr until ctx ends.
func ListenAndServe(ctx context.Context, addr, path string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle(path, h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdown)
	}
}
