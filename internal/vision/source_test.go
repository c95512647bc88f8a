package vision

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgeworks/gridstation/internal/grid"
)

func TestFixtureSourceReplaysInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	content := `# staged marker then a blob
{"frame":{"markers":[{"id":7,"center":{"x":50,"y":50},"area":900}],"width":640,"height":480}}

{"frame":{"blob":{"center":{"x":250,"y":250},"area":1200},"width":640,"height":480},"tap":{"x":1,"y":2}}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenFixtures(path, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}

	ctx := context.Background()
	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if len(first.Frame.Markers) != 1 || first.Frame.Markers[0].ID != 7 {
		t.Errorf("unexpected first frame: %+v", first.Frame)
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("second Next failed: %v", err)
	}
	if second.Frame.Blob == nil || second.Frame.Blob.Center.X != 250 {
		t.Errorf("unexpected second frame: %+v", second.Frame)
	}
	if second.Tap == nil || second.Tap.Y != 2 {
		t.Errorf("tap not preserved: %+v", second.Tap)
	}

	if _, err := src.Next(ctx); err != io.EOF {
		t.Errorf("expected io.EOF after replay, got %v", err)
	}
}

func TestFixtureSourceRejectsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	if err := os.WriteFile(path, []byte("not json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFixtures(path, time.Millisecond); err == nil {
		t.Error("expected error for malformed fixture line")
	}
}

func TestUDPSourceDeliversDatagrams(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer src.Close()

	conn, err := net.Dial("udp", src.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	env := Envelope{
		Frame: Frame{Markers: []MarkerObservation{{ID: 3, Center: grid.Point{X: 10, Y: 20}, Area: 400}}, Width: 640, Height: 480},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	// Malformed datagram first: it must be skipped, not surfaced.
	if _, err := conn.Write([]byte("garbage")); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(payload); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if len(got.Frame.Markers) != 1 || got.Frame.Markers[0].ID != 3 {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestUDPSourceRespectsCancellation(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
