// Package server 提供HTTP服务器核心功能，包含Prometheus指标暴露、健康检查端点
// 及优雅关闭机制。
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
)

const component = "http"

// HTTPServer HTTP服务实例，封装监听地址、HTTP服务器核心对象和Prometheus指标注册器
// 核心能力：暴露/metrics指标端点、/health健康检查端点、优雅启动/关闭
type HTTPServer struct {
	addr     string               // 监听地址（格式：:port 或 ip:port）
	server   *http.Server         // 底层HTTP服务器对象
	registry *prometheus.Registry // Prometheus指标注册器（只包含导出器自己的指标）

	mu       sync.Mutex
	listener net.Listener
}

// statusWriter 包装http.ResponseWriter，用于捕获HTTP响应状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// httpShutdownTimeout 优雅关闭超时时间，避免关闭流程无限阻塞
const httpShutdownTimeout = 5 * time.Second

const indexPage = `<html>
<head><title>Deye Exporter</title></head>
<body>
<h1>Deye Exporter</h1>
<p><a href="/metrics">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>
`

// NewHTTPServer 创建HTTP服务实例
//
//	addr: 服务监听地址（例：":9877"）
//	registry: Prometheus指标注册器
func NewHTTPServer(addr string, registry *prometheus.Registry) *HTTPServer {
	s := &HTTPServer{
		addr:     addr,
		registry: registry,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// logRequest 记录请求方法、URL、客户端地址、响应状态码、处理耗时
func logRequest(r *http.Request, msg string, statusCode int, start time.Time) {
	logger.Debug(
		msg,
		logger.Component(component),
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.String("remote", r.RemoteAddr),
		zap.Int("status", statusCode),
		zap.Duration("duration", time.Since(start)),
	)
}

func withRequestLog(msg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logRequest(r, msg, ww.status, start)
	})
}

// Handler 返回路由（/metrics、/health、/）
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// /metrics 端点：每次抓取读取采样注册表的当前快照
	mux.Handle("/metrics", withRequestLog("metrics request received",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			ErrorLog:      zap.NewStdLog(logger.GetGlobalLogger()),
			ErrorHandling: promhttp.ContinueOnError,
		})))

	// /health 端点：进程存活即返回200 OK，不依赖逆变器是否可达
	mux.Handle("/health", withRequestLog("health check received",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})))

	mux.Handle("/", withRequestLog("index request received",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(indexPage))
		})))

	return mux
}

// WriteHeader 记录响应状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Start 启动HTTP服务（非阻塞）
// 监听在当前goroutine完成，端口占用等错误直接返回；之后在子goroutine中处理请求
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info(
		"starting HTTP server",
		logger.Component(component),
		zap.String("listen_addr", ln.Addr().String()),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
		zap.Duration("idle_timeout", s.server.IdleTimeout),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil {
			// 区分正常关闭和异常错误
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server stopped unexpectedly", logger.Component(component),
					zap.Error(err), zap.String("listen_addr", s.addr))
				return
			}
			logger.Info("HTTP server stopped listening", logger.Component(component), zap.String("listen_addr", s.addr))
		}
	}()
	return nil
}

// Addr 实际监听地址（Start 之前返回配置的地址）
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown 优雅关闭HTTP服务：停止接收新请求，等待现有请求在超时时间内处理完成
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logger.Info("starting graceful shutdown of HTTP server", logger.Component(component), zap.String("listen_addr", s.addr))

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		// 超时视为关闭完成
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			return nil
		}
		logger.Error("HTTP server shutdown failed", logger.Component(component), zap.Error(err), zap.String("listen_addr", s.addr))
		return err
	}
	logger.Info("HTTP server shutdown successfully", logger.Component(component), zap.String("listen_addr", s.addr))
	return nil
}
