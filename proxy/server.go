package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/revel/devproxy/livereload"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/metrics"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

// MetricsPath serves the Prometheus metrics of the launcher.
const MetricsPath = "/__devproxy/metrics"

// Server is a running proxy.
type Server struct {
	upstream *url.URL
	listener net.Listener
	server   *http.Server
	metrics  *metrics.Metrics
	log      logger.MultiLogger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// Serve binds the proxy address of cfg and starts serving in the background.
// A BindError is returned when the address is not available.
func Serve(cfg *model.LaunchConfig, hub *livereload.Hub, m *metrics.Metrics) (*Server, error) {
	addr := cfg.ProxyAddress()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, utils.NewBindError(err, addr)
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		upstream: cfg.UpstreamURL(),
		listener: listener,
		metrics:  m,
		log:      utils.Logger.New("section", "proxy"),
		done:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	if hub != nil {
		mux.Handle(livereload.SocketPath, hub)
		mux.Handle(livereload.ScriptPath, livereload.ScriptHandler())
	}
	mux.Handle(MetricsPath, m.Handler())
	mux.Handle("/", s.reverseProxy())

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.log.Error("Proxy server stopped", "error", err)
		}
	}()

	s.log.Info("Proxy listening", "addr", listener.Addr().String(), "upstream", s.upstream.String())
	return s, nil
}

// Addr is the bound address, useful when the configured port is 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Done is closed when the server stopped serving.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err is the failure that stopped the server, nil after Shutdown.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Shutdown stops accepting connections and waits for active requests.
// Hijacked connections (live reload sockets) are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		_ = s.server.Close()
	}
	return err
}

func (s *Server) reverseProxy() *httputil.ReverseProxy {
	// The browser's Accept-Encoding is forwarded as is, the transport must
	// not add its own.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(s.upstream)
			pr.SetXForwarded()
		},
		Transport:      transport,
		ModifyResponse: s.modifyResponse,
		ErrorHandler:   s.handleError,
	}
}

func (s *Server) modifyResponse(resp *http.Response) error {
	s.metrics.ProxyRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if !injectable(resp) {
		return nil
	}

	body, err := readBody(resp)
	if err != nil {
		return err
	}
	body, injected := InjectClient(body, livereload.ScriptPath)
	if injected {
		s.metrics.Injections.Inc()
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

// readBody returns the decoded body of an injectable response. A gzip body
// is sent on uncompressed.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if !isGzip(resp.Header.Get("Content-Encoding")) {
		body, err := io.ReadAll(resp.Body)
		return body, utils.Wrapf(err, "read backend response")
	}

	resp.Header.Del("Content-Encoding")
	zr, err := gzip.NewReader(resp.Body)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.Wrapf(err, "decompress backend response")
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	return body, utils.Wrapf(err, "decompress backend response")
}

func isGzip(encoding string) bool {
	encoding = strings.TrimSpace(encoding)
	return strings.EqualFold(encoding, "gzip") || strings.EqualFold(encoding, "x-gzip")
}

// handleError answers a request the backend could not serve.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := uuid.NewString()
	s.metrics.ProxyFailures.Inc()
	s.metrics.ProxyRequests.WithLabelValues(strconv.Itoa(http.StatusBadGateway)).Inc()
	s.log.Warn("Backend request failed", "trace", traceID, "method", r.Method, "path", r.URL.Path, "upstream", s.upstream.Host, "error", err)
	http.Error(w, "devproxy: backend "+s.upstream.Host+" unavailable ("+traceID+"): "+err.Error(), http.StatusBadGateway)
}
