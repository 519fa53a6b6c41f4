package xhttp

import (
	"net"
	"os"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/retailcore/till-service/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	defaultReadBufferSize  = 1024 * 4
	defaultWriteBufferSize = 1024 * 4
	defaultReadTimeout     = time.Millisecond * 2500
	defaultWriteTimeout    = time.Millisecond * 2500
	defaultRequestTimeout  = time.Millisecond * 5000
)

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Server = fasthttp.Server

type ServerOption struct {
	Handler RequestHandler

	// idle connections are dropped early so we never run into the
	// open-file limit under connection churn
	IdleTimeout           time.Duration
	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration
	MaxRequestBodySize    int
	RequestTimeout        time.Duration
	ReadBufferSize        int
	WriteBufferSize       int
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	Concurrency           int
	MaxConnsPerIP         int
	MaxRequestsPerConn    int

	ErrorHandler                       func(ctx *RequestCtx, err error)
	Name                               string
	DisableKeepalive                   bool
	TCPKeepalive                       bool
	ReduceMemoryUsage                  bool
	LogAllErrors                       bool
	DisablePreParseMultipartForm       bool
	SleepWhenConcurrencyLimitsExceeded time.Duration
	NoDefaultServerHeader              bool
	NoDefaultDate                      bool
	NoDefaultContentType               bool
	CloseOnShutdown                    bool
	ConnState                          func(net.Conn, fasthttp.ConnState)
	Logger                             logger.Logger
	CompressionLevel                   int
}

var DefaultServerOption = ServerOption{
	Handler: func(ctx *RequestCtx) {
		ctx.Error(StatusText(StatusNotFound), StatusNotFound)
	},
	IdleTimeout:           time.Second * 10,
	MaxIdleWorkerDuration: time.Minute * 1,
	TCPKeepalivePeriod:    time.Minute * 120,
	MaxRequestBodySize:    4 * 1024 * 1024,
	RequestTimeout:        defaultRequestTimeout,
	ReadBufferSize:        defaultReadBufferSize,
	WriteBufferSize:       defaultWriteBufferSize,
	ReadTimeout:           defaultReadTimeout,
	WriteTimeout:          defaultWriteTimeout,
	Concurrency:           30_000,
	MaxConnsPerIP:         10_000,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		ctx.Logger().Printf("[xhttp] error: %s", err)
	},
	TCPKeepalive:                       true,
	DisablePreParseMultipartForm:       true,
	LogAllErrors:                       true,
	SleepWhenConcurrencyLimitsExceeded: 100,
	NoDefaultServerHeader:              true,
	NoDefaultDate:                      true,
	NoDefaultContentType:               true,
	CloseOnShutdown:                    true,
	Logger:                             logger.GetLogger(),
	CompressionLevel:                   fasthttp.CompressBestSpeed,
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                            options.Handler,
		ErrorHandler:                       options.ErrorHandler,
		Name:                               options.Name,
		Concurrency:                        options.Concurrency,
		ReadBufferSize:                     options.ReadBufferSize,
		WriteBufferSize:                    options.WriteBufferSize,
		ReadTimeout:                        options.ReadTimeout,
		WriteTimeout:                       options.WriteTimeout,
		IdleTimeout:                        options.IdleTimeout,
		MaxConnsPerIP:                      options.MaxConnsPerIP,
		MaxRequestsPerConn:                 options.MaxRequestsPerConn,
		MaxIdleWorkerDuration:              options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:                 options.TCPKeepalivePeriod,
		MaxRequestBodySize:                 options.MaxRequestBodySize,
		DisableKeepalive:                   options.DisableKeepalive,
		TCPKeepalive:                       options.TCPKeepalive,
		ReduceMemoryUsage:                  options.ReduceMemoryUsage,
		DisablePreParseMultipartForm:       options.DisablePreParseMultipartForm,
		LogAllErrors:                       options.LogAllErrors,
		SleepWhenConcurrencyLimitsExceeded: options.SleepWhenConcurrencyLimitsExceeded,
		NoDefaultServerHeader:              options.NoDefaultServerHeader,
		NoDefaultDate:                      options.NoDefaultDate,
		NoDefaultContentType:               options.NoDefaultContentType,
		CloseOnShutdown:                    options.CloseOnShutdown,
		ConnState:                          options.ConnState,
		Logger:                             options.Logger,
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: NewRouter(),
		option: options,
	}
}

func CreateServer() *Engine {
	s := NewServer(DefaultServerOption)
	s.Router = CreateDefaultRouter()
	s.Server.Logger = logger.GetLogger()
	return s
}

func (e *Engine) ListenAndServe(addr string) error {
	if err := e.DoRouting(); err != nil {
		return err
	}
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting installs the router handler and wraps it with the middleware
// chain. Middlewares run in registration order, so the slice is reversed
// before wrapping.
func (e *Engine) DoRouting() error {
	for method, route := range e.Router.List() {
		for _, r := range route {
			e.Server.Logger.Printf("[xhttp] method: %s, path: %s", method, r)
		}
	}
	e.Server.Handler = e.Router.Handler
	slices.Reverse(e.middle)
	for i, m := range e.middle {
		e.Server.Handler = m(e.Server.Handler)
		e.Server.Logger.Printf("[xhttp] middleware %d registered - %s", i+1, runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	return nil
}

func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown gracefully stops the server without interrupting active
// connections.
func (e *Engine) Shutdown() {
	e.Server.Logger.Printf("[xhttp] server is shutting down, process id: %d", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		e.Server.Logger.Printf("[xhttp] error while shutting down: %v", err)
	}
}
