package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/audiodeck-backend/models"
	"github.com/vnkhanh/audiodeck-backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJobServer(t *testing.T, hub *Hub, secret string) *httptest.Server {
	t.Helper()

	r := gin.New()
	r.GET("/ws/jobs/:id", HandleJobWebSocket(hub, NewUpgrader([]string{"*"}), secret))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHub_StreamsCardProgress(t *testing.T) {
	hub := NewHub()
	srv := newJobServer(t, hub, "")

	conn, _, err := dial(t, srv, "/ws/jobs/job-7")
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]string
	readJSON(t, conn, &hello)
	assert.Equal(t, "connected", hello["type"])
	assert.Equal(t, "job-7", hello["job_id"])
	assert.Equal(t, map[string]int{"jobs": 1, "connections": 1}, hub.Stats())

	hub.CardProgress("other-job", models.CardResult{Index: 9}, 1, 1)
	hub.CardProgress("job-7", models.CardResult{Index: 1, State: models.CardStored}, 1, 4)

	var update JobProgress
	readJSON(t, conn, &update)
	assert.Equal(t, "card", update.Type)
	assert.Equal(t, 1, update.Card.Index)
	assert.Equal(t, models.CardStored, update.Card.State)
	assert.Equal(t, 1, update.Done)
	assert.Equal(t, 4, update.Total)
	assert.InDelta(t, 0.25, update.Progress, 1e-9)
}

func TestHub_RequiresTokenWhenSecretSet(t *testing.T) {
	const secret = "s3cret"
	srv := newJobServer(t, NewHub(), secret)

	_, resp, err := dial(t, srv, "/ws/jobs/job-1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := utils.GenerateToken(secret, "u-1", "user", time.Minute)
	require.NoError(t, err)
	conn, _, err := dial(t, srv, "/ws/jobs/job-1?token="+token)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_UnregisterDropsEmptyJobs(t *testing.T) {
	hub := NewHub()
	srv := newJobServer(t, hub, "")

	conn, _, err := dial(t, srv, "/ws/jobs/job-2")
	require.NoError(t, err)
	var hello map[string]string
	readJSON(t, conn, &hello)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.Stats()["jobs"] == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"http://app.test"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://app.test")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, up.CheckOrigin(req))
}
