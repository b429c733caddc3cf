package proxy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPool_AddAndNext(t *testing.T) {
	pool := NewPool(Config{})

	if err := pool.Add("127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 proxies, got %d", pool.Len())
	}

	// Round-robin order, scheme defaulted on the first entry, wrap-around.
	for i, want := range []string{
		"http://127.0.0.1:8080",
		"http://127.0.0.1:8081",
		"socks5://127.0.0.1:9050",
		"http://127.0.0.1:8080",
	} {
		u := pool.Next()
		if u == nil || u.String() != want {
			t.Errorf("Next #%d = %v, want %s", i, u, want)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(Config{})
	if u := pool.Next(); u != nil {
		t.Errorf("empty pool should return nil, got %v", u)
	}
}

func TestPool_FailureCooldown(t *testing.T) {
	pool := NewPool(Config{
		MaxFailures: 2,
		Cooldown:    10 * time.Millisecond,
	})
	if err := pool.Add("http://a", "http://b"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	uA := pool.Next()
	if uA.String() != "http://a" {
		t.Fatalf("expected http://a first, got %v", uA)
	}

	pool.MarkFailure(uA)
	pool.MarkFailure(uA)

	// a is cooling down, so b serves twice in a row.
	for i := 0; i < 2; i++ {
		if u := pool.Next(); u.String() != "http://b" {
			t.Fatalf("Next #%d = %v, want http://b", i, u)
		}
	}

	time.Sleep(15 * time.Millisecond)

	if u := pool.Next(); u.String() != "http://a" {
		t.Errorf("expected http://a after cooldown, got %v", u)
	}
}

func TestPool_AllCoolingDown(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 1, Cooldown: time.Hour})
	pool.Add("http://a")

	pool.MarkFailure(pool.Next())

	if u := pool.Next(); u != nil {
		t.Errorf("expected nil when every proxy is cooling down, got %v", u)
	}
}

func TestPool_MarkSuccessRecoversFailures(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	pool.Add("http://a")

	u := pool.Next()
	pool.MarkFailure(u)
	pool.MarkSuccess(u)
	pool.MarkFailure(u)

	// One failure was cancelled by the success; the proxy stays healthy.
	if got := pool.Next(); got == nil {
		t.Error("proxy should still be healthy after failure/success/failure")
	}
}

func TestPool_MarkUnknownProxy(t *testing.T) {
	pool := NewPool(Config{})
	pool.Add("http://a")

	other := pool.Next()
	pool2 := NewPool(Config{})
	if err := pool2.MarkFailure(other); err == nil {
		t.Error("expected error marking a proxy the pool does not hold")
	}
	if err := pool2.MarkSuccess(nil); err == nil {
		t.Error("expected error for nil proxy URL")
	}
}

func TestPool_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# scrape proxies\nhttp://127.0.0.1:8080\n\n127.0.0.1:8081\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	pool := NewPool(Config{})
	if err := pool.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 proxies loaded, got %d", pool.Len())
	}
}

func TestPool_LoadFile_Missing(t *testing.T) {
	pool := NewPool(Config{})
	if err := pool.LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing proxy file")
	}
}
