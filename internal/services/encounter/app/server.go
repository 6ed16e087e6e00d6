// Package server wires the encounter runtime: the SheetService gRPC API over
// the sqlite store and the WebSocket surface browsers play on.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/initiative/internal/platform/grpc"
	"github.com/louisbranch/initiative/internal/platform/timeouts"
	sheetservice "github.com/louisbranch/initiative/internal/services/encounter/api/grpc/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/api/ws"
	"github.com/louisbranch/initiative/internal/services/encounter/session"
	encountersqlite "github.com/louisbranch/initiative/internal/services/encounter/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config defines the inputs for the encounter process.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	DBPath   string
	// UpstreamAddr, when set, points the WebSocket surface at another
	// process's SheetService instead of a local store. No gRPC server is
	// started in that mode.
	UpstreamAddr string

	AllowNegativeHealth bool
	RollbackOnFailure   bool

	GRPCDialTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the encounter HTTP/WebSocket and gRPC listeners.
type Server struct {
	httpListener    net.Listener
	httpServer      *http.Server
	grpcListener    net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	store           *encountersqlite.Store
	upstream        *grpc.ClientConn
	shutdownTimeout time.Duration
}

// New builds a configured server and binds its listeners.
func New(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.GRPCDialTimeout <= 0 {
		config.GRPCDialTimeout = timeouts.GRPCDial
	}
	if strings.TrimSpace(config.DBPath) == "" {
		config.DBPath = filepath.Join("data", "initiative.db")
	}

	s := &Server{shutdownTimeout: config.ShutdownTimeout}
	var store session.Store
	if upstream := strings.TrimSpace(config.UpstreamAddr); upstream != "" {
		conn, err := platformgrpc.DialWithHealth(ctx, upstream, sheetservice.ServiceName, config.GRPCDialTimeout, log.Printf)
		if err != nil {
			return nil, fmt.Errorf("dial sheet service %s: %w", upstream, err)
		}
		s.upstream = conn
		store = sheetservice.NewRemoteStore(conn)
	} else {
		if err := s.startLocal(config); err != nil {
			s.Close()
			return nil, err
		}
		store = session.FromSheetStore(s.store)
	}

	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	s.httpListener = httpListener
	s.httpServer = &http.Server{
		Handler: ws.NewHandler(store, ws.Options{
			AllowNegativeHealth: config.AllowNegativeHealth,
			RollbackOnFailure:   config.RollbackOnFailure,
		}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s, nil
}

func (s *Server) startLocal(config Config) error {
	grpcAddr := strings.TrimSpace(config.GRPCAddr)
	if grpcAddr == "" {
		return errors.New("grpc address is required without an upstream")
	}
	store, err := openSheetStore(config.DBPath)
	if err != nil {
		return err
	}
	s.store = store

	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}
	s.grpcListener = listener

	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s.health = health.NewServer()
	sheetservice.RegisterSheetServiceServer(s.grpcServer, sheetservice.NewService(store))
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(sheetservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return nil
}

// HTTPAddr returns the bound HTTP address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" in upstream mode.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves an encounter server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("init encounter server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve encounter: %w", err)
	}
	return nil
}

// Serve runs every listener until the context ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if s.grpcServer != nil {
		log.Printf("encounter gRPC listening at %v", s.grpcListener.Addr())
		group.Go(func() error {
			if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}
	log.Printf("encounter HTTP listening at %v", s.httpListener.Addr())
	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})
	return group.Wait()
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.upstream != nil {
		if err := s.upstream.Close(); err != nil {
			log.Printf("close sheet service connection: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close encounter store: %v", err)
		}
	}
}

func openSheetStore(path string) (*encountersqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := encountersqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open encounter sqlite store: %w", err)
	}
	return store, nil
}
