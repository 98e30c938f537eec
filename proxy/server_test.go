package proxy_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/revel/devproxy/livereload"
	"github.com/revel/devproxy/metrics"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/proxy"
	"github.com/revel/devproxy/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configFor points a proxy on an ephemeral loopback port at backendURL.
func configFor(t *testing.T, backendURL string) *model.LaunchConfig {
	u, err := url.Parse(backendURL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	cfg := model.DefaultLaunchConfig(t.TempDir())
	cfg.BackendHost = host
	cfg.BackendPort, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.ProxyHost = "127.0.0.1"
	cfg.ProxyPort = 0
	return cfg
}

func startProxy(t *testing.T, cfg *model.LaunchConfig, m *metrics.Metrics) *proxy.Server {
	srv, err := proxy.Serve(cfg, livereload.NewHub(nil), m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, srv *proxy.Server, path string) (*http.Response, string) {
	resp, err := http.Get("http://" + srv.Addr().String() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestForwardedRequestIsUnchanged(t *testing.T) {
	type seen struct {
		method, uri, host, body, custom, forwardedFor, forwardedHost, encoding string
	}
	got := make(chan seen, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, r.RequestURI, r.Host, string(body), r.Header.Get("X-Custom"),
			r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Forwarded-Host"), r.Header.Get("Accept-Encoding")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	proxyURL := "http://" + srv.Addr().String()
	req, err := http.NewRequest(http.MethodPost, proxyURL+"/documents/?page=2&q=a+b", strings.NewReader("title=minutes"))
	require.NoError(t, err)
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("Accept-Encoding", "br, deflate")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	s := <-got
	assert.Equal(t, http.MethodPost, s.method)
	assert.Equal(t, "/documents/?page=2&q=a+b", s.uri)
	assert.Equal(t, strings.TrimPrefix(backend.URL, "http://"), s.host)
	assert.Equal(t, "title=minutes", s.body)
	assert.Equal(t, "kept", s.custom)
	assert.Equal(t, "127.0.0.1", s.forwardedFor)
	assert.Equal(t, srv.Addr().String(), s.forwardedHost)
	assert.Equal(t, "br, deflate", s.encoding)
}

func TestMissingAcceptEncodingIsNotAdded(t *testing.T) {
	got := make(chan []string, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Values("Accept-Encoding")
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Get("http://" + srv.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, <-got)
}

func TestHTMLGetsClientOnceWithBackendStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		_, _ = io.WriteString(w, "<html><body><h1>FEC</h1></body></html>")
	}))
	defer backend.Close()
	m := metrics.New()
	srv := startProxy(t, configFor(t, backend.URL), m)

	resp, body := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, livereload.ScriptPath))
	assert.True(t, strings.HasSuffix(body, string(proxy.ScriptTag(livereload.ScriptPath))+"</body></html>"))
	assert.Equal(t, strconv.Itoa(len(body)), resp.Header.Get("Content-Length"))

	resp, body = get(t, srv, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, livereload.ScriptPath))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Injections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProxyRequests.WithLabelValues("404")))
}

func TestAlreadyInjectedHTMLIsNotChanged(t *testing.T) {
	page := "<html><body>" + string(proxy.ScriptTag(livereload.ScriptPath)) + "</body></html>"
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, page)
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	_, body := get(t, srv, "/")
	assert.Equal(t, page, body)
}

func TestNonHTMLPassesThrough(t *testing.T) {
	payload := []byte(`{"body":"</body>"}`)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	_, body := get(t, srv, "/api")
	assert.Equal(t, string(payload), body)
}

func TestUnreachableBackendIsGatewayError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + l.Addr().String()
	require.NoError(t, l.Close())

	m := metrics.New()
	srv := startProxy(t, configFor(t, deadURL), m)

	for i := 0; i < 2; i++ {
		resp, body := get(t, srv, "/")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, body, "unavailable")
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProxyFailures))

	select {
	case <-srv.Done():
		t.Fatal("proxy stopped after a failed request")
	default:
	}
}

func TestSecondServeOnSamePortFails(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer backend.Close()
	cfg := configFor(t, backend.URL)
	first := startProxy(t, cfg, nil)

	second := *cfg
	second.ProxyPort = first.Addr().(*net.TCPAddr).Port
	_, err := proxy.Serve(&second, livereload.NewHub(nil), nil)

	var bindErr *utils.BindError
	require.True(t, errors.As(err, &bindErr), "got %v", err)
	assert.Equal(t, second.ProxyAddress(), bindErr.Addr)

	resp, body := get(t, first, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestReservedPathsAreNotForwarded(t *testing.T) {
	forwarded := 0
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded++
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	resp, body := get(t, srv, livereload.ScriptPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, livereload.SocketPath)

	resp, body = get(t, srv, proxy.MetricsPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "devproxy_")
	assert.Equal(t, 0, forwarded)
}

func TestCompressedBackendHTMLIsInjected(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Header.Get("Accept-Encoding") != "gzip" {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, "<body></body>")
		_ = gz.Close()
	}))
	defer backend.Close()
	srv := startProxy(t, configFor(t, backend.URL), nil)

	req, err := http.NewRequest(http.MethodGet, "http://"+srv.Addr().String()+"/", nil)
	require.NoError(t, err)
	// Set explicitly so the client does not decompress on its own.
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, strconv.Itoa(len(body)), resp.Header.Get("Content-Length"))
	assert.True(t, bytes.HasPrefix(body, []byte("<body>")))
	assert.True(t, bytes.Contains(body, []byte(livereload.ScriptPath)))
}

func TestOtherEncodingsPassThrough(t *testing.T) {
	payload := []byte{0x1b, 0x0d, 0x00, 0xf8, 0x25}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(payload)
	}))
	defer backend.Close()
	m := metrics.New()
	srv := startProxy(t, configFor(t, backend.URL), m)

	req, err := http.NewRequest(http.MethodGet, "http://"+srv.Addr().String()+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "br", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, payload, body)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Injections))
}
