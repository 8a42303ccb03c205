package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	id := GenerateID()
	require.True(t, ValidID(id))
	require.NotEqual(t, id, GenerateID())
	require.False(t, ValidID("auction-1"))
	require.False(t, ValidID(""))
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	require.NoError(t, SetLevel("debug"))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	require.Error(t, SetLevel("loud"))
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestDebugFollowsLevel(t *testing.T) {
	hook := test.NewGlobal()
	t.Cleanup(func() {
		hook.Reset()
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetLevel(log.InfoLevel)
	})

	log.SetLevel(log.InfoLevel)
	Debug("bid below floor", map[string]any{"floor": "110"})
	require.Empty(t, hook.AllEntries())

	require.NoError(t, SetLevel("debug"))
	Debug("bid below floor", map[string]any{"floor": "110"})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, log.DebugLevel, entry.Level)
	require.Equal(t, "bid below floor", entry.Message)
	require.Equal(t, "110", entry.Data["floor"])
}

func TestJSONEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	JSONResponse(c, http.StatusCreated, map[string]string{"auction_id": "a1"}, "created")

	var ok Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	require.Equal(t, http.StatusCreated, ok.Status)
	require.Equal(t, "created", ok.Message)
	require.Empty(t, ok.Error)
	require.Equal(t, map[string]any{"auction_id": "a1"}, ok.Data)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	JSONError(c, http.StatusConflict, errors.New("bid amount too low"), "bid amount too low")

	var failed Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "bid amount too low", failed.Error)
	require.Nil(t, failed.Data)
	require.True(t, c.IsAborted())
}
