// SPDX-License-Identifier: EPL-2.0

package ingest

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/vocalengine/adaptive"
)

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func dial(t *testing.T, c *adaptive.Controller) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewHandler(c.Adapt, c.State, nil, nullLogger()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.Dial(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func TestSamplesReachController(t *testing.T) {
	t.Parallel()

	c := adaptive.New(adaptive.DefaultConfig(), nil, nullLogger())
	conn := dial(t, c)

	var reply Reply
	for range 3 {
		require.NoError(t, wsjson.Write(t.Context(), conn, Message{PitchAccuracy: 0.7, TempoConsistency: 0.4, Confidence: 0.6}))
		reply = readReply(t, conn)
		assert.Empty(t, reply.Error)
	}

	assert.InDelta(t, 0.94, reply.TempoMultiplier, 1e-9)
	assert.Equal(t, c.State().TempoMultiplier, reply.TempoMultiplier)
	assert.Equal(t, 3, c.Averages().Samples)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	t.Parallel()

	c := adaptive.New(adaptive.DefaultConfig(), nil, nullLogger())
	conn := dial(t, c)

	require.NoError(t, conn.Write(t.Context(), websocket.MessageText, []byte("{not json")))

	reply := readReply(t, conn)
	assert.Equal(t, "malformed sample", reply.Error)
	assert.InDelta(t, 1.0, reply.TempoMultiplier, 1e-12)

	require.NoError(t, conn.Write(t.Context(), websocket.MessageBinary, []byte{1, 2}))
	reply = readReply(t, conn)
	assert.Equal(t, "expected a text frame", reply.Error)

	// The connection survives.
	require.NoError(t, wsjson.Write(t.Context(), conn, Message{PitchAccuracy: 0.7, TempoConsistency: 0.4, Confidence: 0.6}))
	reply = readReply(t, conn)
	assert.Empty(t, reply.Error)
	assert.Equal(t, 1, c.Averages().Samples)
}

// readReply decodes the next reply into a fresh value.
func readReply(t *testing.T, conn *websocket.Conn) Reply {
	t.Helper()

	var reply Reply
	require.NoError(t, wsjson.Read(t.Context(), conn, &reply))

	return reply
}

func TestReplyAlwaysCarriesError(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Reply{TempoMultiplier: 1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":""`)
}

func TestMessageSample(t *testing.T) {
	t.Parallel()

	s := Message{PitchAccuracy: 0.5, Timestamp: 1_700_000_000_000}.Sample(time.Unix(0, 0))
	assert.Equal(t, int64(1_700_000_000_000), s.Timestamp.UnixMilli())

	now := time.Unix(42, 0)
	assert.Equal(t, now, Message{}.Sample(now).Timestamp)
}
