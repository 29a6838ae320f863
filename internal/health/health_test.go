package health

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func startServer(t *testing.T, generatorReady bool) (*Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(generatorReady, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not stop")
		}
	})
	return srv, lis.Addr().String()
}

func probe(addr, service string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return Probe(ctx, addr, service)
}

func TestProbeServing(t *testing.T) {
	_, addr := startServer(t, true)

	for _, svc := range []string{ServiceOverall, ServicePrintQueue, ServiceGenerator} {
		if err := probe(addr, svc); err != nil {
			t.Errorf("Probe(%q) = %v, want serving", svc, err)
		}
	}
}

func TestGeneratorNotServingWithoutKey(t *testing.T) {
	_, addr := startServer(t, false)

	if err := probe(addr, ServiceGenerator); err == nil {
		t.Fatal("generator should report NOT_SERVING")
	}
	if err := probe(addr, ServicePrintQueue); err != nil {
		t.Errorf("printqueue should still serve: %v", err)
	}
}

func TestSetServingToggles(t *testing.T) {
	srv, addr := startServer(t, true)

	srv.SetServing(ServicePrintQueue, false)
	if err := probe(addr, ServicePrintQueue); err == nil {
		t.Fatal("expected NOT_SERVING after toggle")
	}
	srv.SetServing(ServicePrintQueue, true)
	if err := probe(addr, ServicePrintQueue); err != nil {
		t.Fatalf("expected SERVING after toggle back: %v", err)
	}
}

func TestProbeUnknownService(t *testing.T) {
	_, addr := startServer(t, true)
	if err := probe(addr, "nope"); err == nil {
		t.Fatal("unknown service should fail the probe")
	}
}
