package support

import (
	"testing"

	"go.uber.org/zap"

	"qwqvpn/internal/bootstrap"
	"qwqvpn/internal/config"
	"qwqvpn/internal/models"
	"qwqvpn/internal/repository"
)

func newTestSupport(t *testing.T) *Service {
	t.Helper()
	db, err := config.NewDatabase(&config.StoreConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := bootstrap.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(repository.NewTicketRepository(db), zap.NewNop())
}

func TestCreateEnforcesOpenQuota(t *testing.T) {
	svc := newTestSupport(t)

	for i := 0; i < MaxOpenTickets; i++ {
		ticket, err := svc.Create(42, "alice", "help me")
		if err != nil {
			t.Fatalf("create %d: %v", i+1, err)
		}
		if ticket == nil {
			t.Fatalf("create %d refused below quota", i+1)
		}
		if ticket.Tracking == "" {
			t.Error("ticket has no tracking code")
		}
	}

	over, err := svc.Create(42, "alice", "one more")
	if err != nil {
		t.Fatalf("quota refusal must not be an error: %v", err)
	}
	if over != nil {
		t.Fatal("fourth open ticket should be refused")
	}

	// Another user is unaffected by the first user's quota.
	other, err := svc.Create(43, "bob", "hi")
	if err != nil || other == nil {
		t.Fatalf("other user blocked: %v, %v", other, err)
	}

	// Closing one ticket frees a slot.
	tickets, _ := svc.ListByUser(42)
	if _, err := svc.Close(tickets[0].ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	again, err := svc.Create(42, "alice", "after close")
	if err != nil || again == nil {
		t.Fatalf("slot not freed after close: %v, %v", again, err)
	}
}

func TestReplyStoresResponseAndCloses(t *testing.T) {
	svc := newTestSupport(t)

	ticket, err := svc.Create(42, "alice", "vpn down")
	if err != nil || ticket == nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := svc.Reply(ticket.ID, "restarted your account")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !ok {
		t.Fatal("reply reported no rows updated")
	}

	got, err := svc.GetForStaff(ticket.ID)
	if err != nil || got == nil {
		t.Fatalf("fetch after reply: %v", err)
	}
	if got.Response != "restarted your account" {
		t.Errorf("response = %q", got.Response)
	}
	if got.Status != models.TicketClosed {
		t.Errorf("status = %q, want closed", got.Status)
	}
}

func TestReplyMissingTicket(t *testing.T) {
	svc := newTestSupport(t)
	ok, err := svc.Reply(999, "hello?")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if ok {
		t.Fatal("reply to a missing ticket reported success")
	}
}

func TestGetIsOwnerScoped(t *testing.T) {
	svc := newTestSupport(t)

	ticket, err := svc.Create(42, "alice", "private matter")
	if err != nil || ticket == nil {
		t.Fatalf("create: %v", err)
	}

	if got, err := svc.Get(ticket.ID, 42); err != nil || got == nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	got, err := svc.Get(ticket.ID, 99)
	if err != nil {
		t.Fatalf("foreign lookup: %v", err)
	}
	if got != nil {
		t.Fatal("ticket leaked to a non-owner")
	}
}

func TestStats(t *testing.T) {
	svc := newTestSupport(t)

	a, _ := svc.Create(1, "a", "one")
	b, _ := svc.Create(2, "b", "two")
	svc.Create(3, "c", "three")

	svc.Close(a.ID)
	svc.SetStatus(b.ID, models.TicketInProgress)

	open, inProgress, closed, err := svc.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if open != 1 || inProgress != 1 || closed != 1 {
		t.Errorf("stats = %d/%d/%d, want 1/1/1", open, inProgress, closed)
	}
}
