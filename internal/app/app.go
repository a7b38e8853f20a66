package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"roadsense/go-hub-server/internal/config"
	"roadsense/go-hub-server/internal/hub"
	"roadsense/go-hub-server/internal/model"
	"roadsense/go-hub-server/internal/pipeline"
	"roadsense/go-hub-server/internal/source"
	"roadsense/go-hub-server/internal/store"

	"github.com/grandcat/zeroconf"
)

// App wires together the RoadSense hub services and manages their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	hub    *hub.Hub
	mdns   *zeroconf.Server
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run starts all configured services and blocks until the context is cancelled or an error occurs.
func (a *App) Run(ctx context.Context) error {
	db, err := store.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.store = db

	if err := a.store.InitSchema(ctx); err != nil {
		return err
	}

	defer func() {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}()

	a.hub = hub.New(a.logger)

	if err := a.startMDNS(a.cfg.HTTPPort); err != nil {
		a.logger.Warn("mDNS advertisement failed", "error", err)
	}
	defer a.stopMDNS()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, ctx := errgroup.WithContext(runCtx)

	// A failure after the HTTP goroutines are up must stop them before
	// Run returns, not leave them serving until process exit.
	failStartup := func(err error) error {
		cancelRun()
		if werr := g.Wait(); werr != nil {
			a.logger.Error("shutdown after startup failure", "error", werr)
		}
		return err
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler: a.routes(),
	}

	g.Go(func() error {
		a.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		a.logger.Info("http server stopped")
		return nil
	})

	if a.cfg.MQTTBrokerURL != "" {
		client, err := a.startIngest()
		if err != nil {
			return failStartup(err)
		}

		g.Go(func() error {
			<-ctx.Done()
			client.Disconnect(250)
			a.logger.Info("mqtt ingest stopped")
			return nil
		})
	}

	if a.cfg.FleetPath != "" {
		if err := a.startFleetDrivers(ctx, g); err != nil {
			return failStartup(err)
		}
	}

	return g.Wait()
}

// startFleetDrivers runs one pipeline driver per configured vehicle. Each
// driver owns its own cyclic source; sources are not shared.
func (a *App) startFleetDrivers(ctx context.Context, g *errgroup.Group) error {
	fleet, err := config.LoadFleet(a.cfg.FleetPath)
	if err != nil {
		return err
	}

	for _, vehicle := range fleet.Vehicles {
		src := source.New(vehicle.AccelerometerFile, vehicle.GpsFile, vehicle.ParkingFile, vehicle.UserID)
		if err := src.Open(); err != nil {
			return fmt.Errorf("vehicle %s: %w", vehicle.Name, err)
		}

		driver := pipeline.NewDriver(
			src,
			a.store,
			a.hub,
			a.logger.With("vehicle", vehicle.Name),
			pipeline.WithBatchSize(a.cfg.BatchSize),
			pipeline.WithInterval(a.cfg.SampleInterval),
		)

		a.logger.Info("fleet driver started", "vehicle", vehicle.Name, "user_id", vehicle.UserID)
		g.Go(func() error { return driver.Run(ctx) })
	}

	return nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.HandleFunc("/api/records", a.handleRecords)
	mux.HandleFunc("/api/records/{id}", a.handleRecordByID)
	mux.HandleFunc("/ws/{userID}", a.handleWebSocket)
	return mux
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if a.store == nil || a.hub == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *App) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRecords(w, r)
	case http.MethodPost:
		a.createRecords(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *App) createRecords(w http.ResponseWriter, r *http.Request) {
	var records []model.ProcessedRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if len(records) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}
	for i := range records {
		records[i].ID = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stored, err := a.store.CreateBatch(ctx, records)
	if err != nil {
		a.writeStoreError(w, err, "create records")
		return
	}

	for _, record := range stored {
		a.hub.Publish(record.UserID, record)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(recordsResponse{Records: stored}); err != nil {
		a.logger.Error("failed to encode create response", "error", err)
	}
}

func (a *App) listRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	records, err := a.store.ListAll(ctx)
	if err != nil {
		a.writeStoreError(w, err, "list records")
		return
	}
	if records == nil {
		records = []model.ProcessedRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recordsResponse{Records: records}); err != nil {
		a.logger.Error("failed to encode list response", "error", err)
	}
}

func (a *App) handleRecordByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		record, err := a.store.GetByID(ctx, id)
		if err != nil {
			a.writeStoreError(w, err, "get record")
			return
		}
		a.writeRecord(w, record, http.StatusOK)

	case http.MethodPut:
		var record model.ProcessedRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		updated, err := a.store.UpdateByID(ctx, id, record)
		if err != nil {
			a.writeStoreError(w, err, "update record")
			return
		}
		a.hub.Publish(updated.UserID, updated)
		a.writeRecord(w, updated, http.StatusOK)

	case http.MethodDelete:
		prior, err := a.store.DeleteByID(ctx, id)
		if err != nil {
			a.writeStoreError(w, err, "delete record")
			return
		}
		a.writeRecord(w, prior, http.StatusOK)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type recordsResponse struct {
	Records []model.ProcessedRecord `json:"records"`
}

func (a *App) writeRecord(w http.ResponseWriter, record model.ProcessedRecord, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		a.logger.Error("failed to encode record response", "error", err)
	}
}

func (a *App) writeStoreError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case errors.Is(err, store.ErrUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		a.logger.Error("store operation failed", "action", action, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
