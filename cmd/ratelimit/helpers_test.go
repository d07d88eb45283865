package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KOMKZ/go-yogan-ratelimit/health"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/KOMKZ/go-yogan-ratelimit/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitManager(logger.ManagerConfig{})
}

// quietLogging keeps command output free of log lines
const quietLogging = `
logger:
  level: error
  enable_console: false
`

// testServer used unless the body brings its own server section,
// which must then set the mode itself
const testServer = `
server:
  mode: test
`

// writeConfig writes config.yaml into a fresh directory and returns it
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	content := quietLogging + body
	if !strings.Contains("\n"+body, "\nserver:") {
		content += testServer
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

// runCLI runs one invocation with its own app and returns stdout
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), append([]string{"--config-dir", dir}, args...), &out, &app{})
	return out.String(), err
}

// decodeLines one JSON document per output line
func decodeLines[T any](t *testing.T, out string) []T {
	t.Helper()
	var result []T
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var v T
		require.NoError(t, json.Unmarshal([]byte(line), &v), line)
		result = append(result, v)
	}
	return result
}

func newRouterLimiter(t *testing.T, cfg limiter.Config) *limiter.Limiter {
	t.Helper()
	l, err := limiter.New(cfg, limiter.WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// newTestRouter router over l with defaults for everything else
func newTestRouter(l *limiter.Limiter, mutate func(*routerDeps)) *gin.Engine {
	cfg := serverConfig{}
	cfg.applyDefaults()

	agg := health.NewAggregator(0)
	agg.Register(limiter.NewHealthChecker(l.Store()))

	deps := routerDeps{server: cfg, limiter: l, health: agg}
	if mutate != nil {
		mutate(&deps)
	}
	return newRouter(deps)
}

func doRequest(engine http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	rb := testutil.NewRequest(method, target).WithHeaders(headers)
	if body != "" {
		rb.WithJSON(body)
	}
	return rb.Do(engine).Recorder
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testutil.Envelope {
	t.Helper()
	env, err := (&testutil.ResponseHelper{Recorder: w}).Envelope()
	require.NoError(t, err, w.Body.String())
	return env
}
