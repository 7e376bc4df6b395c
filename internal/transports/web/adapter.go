package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dockman/internal/modules/docker"
	"dockman/internal/modules/host"
	"dockman/internal/storage"
)

//go:embed static/index.html
var indexHTML []byte

// RuntimeManager операции над runtime, которые обслуживает API.
type RuntimeManager interface {
	Status(ctx context.Context) docker.Status
	Install(ctx context.Context) docker.Result
	Update(ctx context.Context) docker.Result
	Uninstall(ctx context.Context) docker.Result
}

// SystemProbe источник сведений об узле.
type SystemProbe interface {
	Details(ctx context.Context) (host.Details, error)
}

// Config параметры HTTP API.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RequestTimeout применяется к читающим endpoint-ам, кроме /api/check.
	RequestTimeout time.Duration

	// OperationLimit изменяющих запросов с одного адреса за OperationWindow; 0 отключает лимит.
	OperationLimit  int
	OperationWindow time.Duration

	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:5000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if len(c.CORSAllowedMethods) == 0 {
		c.CORSAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(c.CORSAllowedHeaders) == 0 {
		c.CORSAllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
}

// Adapter HTTP API для управления Docker.
type Adapter struct {
	manager RuntimeManager
	probe   SystemProbe
	store   storage.Store
	logger  *slog.Logger
	cfg     Config
	cors    *corsPolicy
	limiter *rateLimiter

	mu     sync.Mutex
	server *http.Server
}

// NewAdapter создает web transport.
func NewAdapter(manager RuntimeManager, probe SystemProbe, store storage.Store, logger *slog.Logger, cfg Config) *Adapter {
	cfg.setDefaults()
	if store == nil {
		store = storage.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		manager: manager,
		probe:   probe,
		store:   store,
		logger:  logger.With("transport", "web"),
		cfg:     cfg,
		cors:    newCORSPolicy(cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders),
	}
	if cfg.OperationLimit > 0 {
		a.limiter = newRateLimiter(cfg.OperationLimit, cfg.OperationWindow)
	}
	return a
}

func (a *Adapter) Name() string { return "web" }

// Start начинает прием соединений; сервер гасится при отмене ctx или вызове Stop.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("web transport already started")
	}
	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	a.server = srv

	go func() {
		a.logger.Info("listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("serve failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			a.logger.Warn("shutdown failed", "err", err)
		}
	}()
	return nil
}

// Stop останавливает сервер; повторный вызов ничего не делает.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()
	read := withDeadline(a.cfg.RequestTimeout)

	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("GET /api/health", a.handleHealth)
	// docker --version на холодном Docker Desktop может идти дольше дедлайна
	mux.HandleFunc("GET /api/check", a.handleCheck)
	mux.Handle("GET /api/system", read(http.HandlerFunc(a.handleSystem)))
	mux.Handle("GET /api/history", read(http.HandlerFunc(a.handleHistory)))
	mux.Handle("GET /api/snapshots/latest", read(http.HandlerFunc(a.handleLatestSnapshot)))

	// изменяющие операции без дедлайна: apt-get и winget работают минутами
	mux.Handle("POST /api/install", a.operation(docker.OpInstall, a.manager.Install))
	mux.Handle("POST /api/update", a.operation(docker.OpUpdate, a.manager.Update))
	mux.Handle("POST /api/uninstall", a.operation(docker.OpUninstall, a.manager.Uninstall))

	return wrap(mux, withRequestID, a.cors.handler)
}

func (a *Adapter) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, a.manager.Status(r.Context()))
}

func (a *Adapter) handleSystem(w http.ResponseWriter, r *http.Request) {
	details, err := a.probe.Details(r.Context())
	switch {
	case err == nil:
		respond(w, r, http.StatusOK, details)
	case errors.Is(r.Context().Err(), context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "request_timeout")
	default:
		a.logger.Error("system probe failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "system_probe_failed")
	}
}

// operation выполняет изменяющую операцию и пишет ее в журнал.
// Неуспех операции отдается как 400 с тем же телом Result.
func (a *Adapter) operation(op docker.Operation, run func(context.Context) docker.Result) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.allow(clientKey(r), time.Now()) {
			a.logger.Warn("operation rate limited", "op", op, "client", clientKey(r))
			respond(w, r, http.StatusTooManyRequests, docker.Result{
				Message: "Too many requests, try again later",
				Code:    "rate_limited",
			})
			return
		}

		// отключение клиента не должно прерывать apt-get или winget на середине
		started := time.Now()
		res := run(context.WithoutCancel(r.Context()))
		elapsed := time.Since(started)

		status := http.StatusOK
		if !res.Success {
			status = http.StatusBadRequest
		}
		respond(w, r, status, res)

		rec := storage.OperationRecord{
			Action:     string(op),
			Success:    res.Success,
			ErrorCode:  string(res.Code),
			Message:    res.Message,
			Source:     "web",
			RequestID:  requestID(r.Context()),
			DurationMS: elapsed.Milliseconds(),
		}
		if err := a.store.SaveOperation(context.WithoutCancel(r.Context()), rec); err != nil {
			a.logger.Warn("save operation failed", "op", op, "err", err)
		}
	})
}

type historyItem struct {
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	ErrorCode  string `json:"error_code,omitempty"`
	Message    string `json:"message"`
	Source     string `json:"source"`
	RequestID  string `json:"request_id"`
	DurationMS int64  `json:"duration_ms"`
	TS         string `json:"ts"`
}

type historyResponse struct {
	RequestID string        `json:"request_id"`
	Items     []historyItem `json:"items"`
}

func (a *Adapter) handleHistory(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := storage.OperationQuery{Action: params.Get("action")}
	if n, err := strconv.Atoi(params.Get("limit")); err == nil {
		q.Limit = n
	}
	if v := params.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "bad_from")
			return
		}
		q.From = from
	}

	records, err := a.store.QueryOperations(r.Context(), q)
	if err != nil {
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			respondError(w, r, http.StatusGatewayTimeout, "request_timeout")
			return
		}
		a.logger.Error("query history failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "query_failed")
		return
	}

	resp := historyResponse{RequestID: requestID(r.Context()), Items: make([]historyItem, len(records))}
	for i, rec := range records {
		resp.Items[i] = historyItem{
			Action:     rec.Action,
			Success:    rec.Success,
			ErrorCode:  rec.ErrorCode,
			Message:    rec.Message,
			Source:     rec.Source,
			RequestID:  rec.RequestID,
			DurationMS: rec.DurationMS,
			TS:         rec.TS.UTC().Format(time.RFC3339),
		}
	}
	respond(w, r, http.StatusOK, resp)
}

type snapshotResponse struct {
	RequestID string          `json:"request_id"`
	TS        string          `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

func (a *Adapter) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.LatestSnapshot(r.Context())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "snapshot_not_found")
	case err != nil:
		a.logger.Error("latest snapshot failed", "err", err)
		respondError(w, r, http.StatusInternalServerError, "query_failed")
	default:
		respond(w, r, http.StatusOK, snapshotResponse{
			RequestID: requestID(r.Context()),
			TS:        rec.TS.UTC().Format(time.RFC3339),
			Payload:   json.RawMessage(rec.Payload),
		})
	}
}
