package features

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleActivation(t *testing.T) {
	engine, err := rules.NewEngine(rules.Builtin(), 4)
	require.NoError(t, err)
	ex := NewRuleActivation(engine)

	x, err := ex.Extract(context.Background(), "1 UNION SELECT password FROM users")
	require.NoError(t, err)
	require.Len(t, x, ex.Dim())

	idx := -1
	for i, id := range ex.RuleIDs() {
		if id == "942270" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 1.0, x[idx])

	clean, err := ex.Extract(context.Background(), "hello world")
	require.NoError(t, err)
	for _, v := range clean {
		assert.Zero(t, v)
	}
}

func TestRuleActivationHonorsCancellation(t *testing.T) {
	engine, err := rules.NewEngine(rules.Builtin(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRuleActivation(engine).Extract(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Payload == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(remoteResponse{Features: []float64{1, 0, 1}})
	}))
	defer srv.Close()

	ex := NewRemote(srv.URL, 3, time.Second)
	x, err := ex.Extract(context.Background(), "' or 1=1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, []float64(x))

	_, err = ex.Extract(context.Background(), "boom")
	assert.Error(t, err)

	wrongDim := NewRemote(srv.URL, 5, time.Second)
	_, err = wrongDim.Extract(context.Background(), "x")
	assert.Error(t, err)
}
