package grpc

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const sheetService = "initiative.v1.SheetService"

type healthFixture struct {
	addr   string
	health *health.Server
}

func startHealthServer(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) healthFixture {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(sheetService, status)

	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)
	return healthFixture{addr: listener.Addr().String(), health: healthServer}
}

func dialPlain(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()
	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, format)
}

func (r *logRecorder) contains(fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if strings.Contains(line, fragment) {
			return true
		}
	}
	return false
}

func TestWaitForHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  grpc_health_v1.HealthCheckResponse_ServingStatus
		service string
		timeout time.Duration
		wantErr bool
	}{
		{name: "serving", status: grpc_health_v1.HealthCheckResponse_SERVING, service: sheetService, timeout: 2 * time.Second},
		{name: "not serving", status: grpc_health_v1.HealthCheckResponse_NOT_SERVING, service: sheetService, timeout: 300 * time.Millisecond, wantErr: true},
		{name: "unknown service", status: grpc_health_v1.HealthCheckResponse_SERVING, service: "initiative.v1.Missing", timeout: 300 * time.Millisecond, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fixture := startHealthServer(t, tc.status)
			conn := dialPlain(t, fixture.addr)

			ctx, cancel := context.WithTimeout(context.Background(), tc.timeout)
			defer cancel()
			err := WaitForHealth(ctx, conn, tc.service, nil)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	conn := dialPlain(t, fixture.addr)

	go func() {
		time.Sleep(200 * time.Millisecond)
		fixture.health.SetServingStatus(sheetService, grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	logs := &logRecorder{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, sheetService, logs.logf); err != nil {
		t.Fatalf("wait for health after transition: %v", err)
	}
	if !logs.contains("waiting for gRPC health") {
		t.Fatal("expected a waiting log line before SERVING")
	}
	if !logs.contains("is SERVING") {
		t.Fatal("expected a SERVING log line")
	}
}

func TestWaitForHealthRejectsNilConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, sheetService, nil); err == nil {
		t.Fatal("expected nil connection error")
	}
}
