package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
)

type mockRunnable struct {
	name     string
	startErr error
	stopErr  error

	mu      sync.Mutex
	started bool
	stopped bool
	order   *[]string
}

func (r *mockRunnable) Name() string { return r.name }

func (r *mockRunnable) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = r.startErr == nil
	return r.startErr
}

func (r *mockRunnable) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.order != nil {
		*r.order = append(*r.order, "stop:"+r.name)
	}
	return r.stopErr
}

func TestManager_StartRollsBackOnFailure(t *testing.T) {
	first := &mockRunnable{name: "first"}
	second := &mockRunnable{name: "second", startErr: errors.New("bind failed")}

	m := NewManager(time.Second)
	m.AddServer(first)
	m.AddServer(second)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.True(t, first.stopped)

	assert.Error(t, m.Start(context.Background()), "second Start must fail")
}

func TestManager_RunStopsServersThenClosers(t *testing.T) {
	var order []string
	srv := &mockRunnable{name: "http", order: &order}

	m := NewManager(time.Second)
	m.AddServer(srv)
	m.OnClose("redis", func(context.Context) error {
		order = append(order, "close:redis")
		return nil
	})
	m.OnClose("pool", func(context.Context) error {
		order = append(order, "close:pool")
		return errors.New("pool busy")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool busy")
	assert.Equal(t, []string{"stop:http", "close:pool", "close:redis"}, order)
}

func TestHTTPServer_ServeAndShutdown(t *testing.T) {
	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = gin.TestMode

	s := NewHTTPServer(opts)
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))
	base := "http://" + s.Addr()

	resp, err := http.Get(base + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	resp, err = http.Get(base + "/missing")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"code":4000`)

	resp, err = http.Post(base+"/ping", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, err = http.Get(base + "/ping")
	assert.Error(t, err)
}

func TestHTTPServer_StartFailsOnBadAddr(t *testing.T) {
	opts := httpopts.NewOptions()
	opts.Addr = "256.0.0.1:99999"
	opts.Mode = gin.TestMode
	assert.Error(t, NewHTTPServer(opts).Start(context.Background()))
}
