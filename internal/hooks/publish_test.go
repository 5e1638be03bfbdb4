package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/logger"
	"courier/internal/router"
	pkgerrors "courier/pkg/errors"
)

type sentMessage struct {
	key     string
	topic   string
	payload []byte
	opts    router.SendOptions
}

type stubSender struct {
	sent []sentMessage
	err  error
}

func (s *stubSender) SendMessage(_ context.Context, key, _, topic string, payload []byte, opts router.SendOptions) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{key: key, topic: topic, payload: payload, opts: opts})
	return nil
}

func newPublishRouter(t *testing.T, sender MessageSender) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	NewPublishHandler(sender, logger.NopLogger()).RegisterRoutes(engine)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func TestPublishAccepted(t *testing.T) {
	sender := &stubSender{}
	engine := newPublishRouter(t, sender)

	w := postJSON(engine, "/messages",
		`{"key":"key-a","secret":"secret-a","topic":"a1/sensors/temp","payload":"41","qos":1,"retain":true}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a1/sensors/temp", sender.sent[0].topic)
	assert.Equal(t, []byte("41"), sender.sent[0].payload)
	assert.Equal(t, router.SendOptions{QoS: 1, Retain: true}, sender.sent[0].opts)
}

func TestPublishMissingFields(t *testing.T) {
	sender := &stubSender{}
	engine := newPublishRouter(t, sender)

	w := postJSON(engine, "/messages", `{"topic":"a1/sensors/temp"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pkgerrors.ErrValidation.Code, errorCode(t, w.Body.String()))
	assert.Empty(t, sender.sent)
}

func TestPublishErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad credentials",
			err:        pkgerrors.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   pkgerrors.ErrInvalidCredentials.Code,
		},
		{
			name:       "topic not authorized",
			err:        pkgerrors.ErrUnauthorizedTopic,
			wantStatus: http.StatusForbidden,
			wantCode:   pkgerrors.ErrUnauthorizedTopic.Code,
		},
		{
			name:       "broker fault",
			err:        pkgerrors.Wrap(assert.AnError, pkgerrors.ErrInternal),
			wantStatus: http.StatusInternalServerError,
			wantCode:   pkgerrors.ErrInternal.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newPublishRouter(t, &stubSender{err: tt.err})

			w := postJSON(engine, "/messages",
				`{"key":"key-a","secret":"secret-a","topic":"a1/sensors/temp","payload":"x"}`)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w.Body.String()))
		})
	}
}
