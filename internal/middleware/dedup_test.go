package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestMemoryDeduperSeen(t *testing.T) {
	d := newMemoryDeduper(time.Minute)

	seen, err := d.Seen(context.Background(), 100)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("first sighting reported as duplicate")
	}

	seen, err = d.Seen(context.Background(), 100)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatal("second sighting not reported as duplicate")
	}

	// Different IDs are independent.
	seen, _ = d.Seen(context.Background(), 101)
	if seen {
		t.Fatal("unrelated update flagged as duplicate")
	}
}

func TestMemoryDeduperExpiry(t *testing.T) {
	d := newMemoryDeduper(time.Nanosecond)

	if seen, _ := d.Seen(context.Background(), 7); seen {
		t.Fatal("fresh id reported as duplicate")
	}
	time.Sleep(2 * time.Millisecond)
	if seen, _ := d.Seen(context.Background(), 7); seen {
		t.Fatal("expired id still reported as duplicate")
	}
}

func TestNewUpdateDeduperFallsBackWithoutRedis(t *testing.T) {
	d, err := NewUpdateDeduper("", "", 0, time.Minute)
	if err != nil {
		t.Fatalf("empty addr is not an error: %v", err)
	}
	if _, ok := d.(*memoryDeduper); !ok {
		t.Fatalf("deduper type = %T, want *memoryDeduper", d)
	}
}

func TestTelegramUpdateDedupMiddleware(t *testing.T) {
	e := echo.New()
	d := newMemoryDeduper(time.Minute)
	var handled int
	h := TelegramUpdateDedup(d)(func(c echo.Context) error {
		handled++
		// The handler must still see the full body after dedup peeked at it.
		var buf [64]byte
		n, _ := c.Request().Body.Read(buf[:])
		if n == 0 {
			t.Error("request body was consumed by the middleware")
		}
		return c.NoContent(http.StatusOK)
	})

	send := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("middleware: %v", err)
		}
		return rec.Code
	}

	update := `{"update_id":555,"message":{"text":"hi"}}`
	if code := send(update); code != http.StatusOK {
		t.Fatalf("first delivery status = %d", code)
	}
	if handled != 1 {
		t.Fatalf("handled = %d, want 1", handled)
	}

	// Redelivery is acknowledged but not handled again.
	if code := send(update); code != http.StatusOK {
		t.Fatalf("redelivery status = %d", code)
	}
	if handled != 1 {
		t.Fatalf("handled after redelivery = %d, want 1", handled)
	}

	// Bodies without an update_id pass through.
	send(`{"ping":true}`)
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}
}
