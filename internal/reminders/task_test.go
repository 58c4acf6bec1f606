package reminders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"transkribator/internal/logging"
)

type sentKey struct {
	userID int64
	kind   string
	expiry string
}

type fakeSource struct {
	candidates []Candidate
	sent       map[sentKey]bool
	recorded   []sentKey
}

func (f *fakeSource) Candidates(context.Context, time.Time) ([]Candidate, error) {
	return f.candidates, nil
}

func (f *fakeSource) AlreadySent(_ context.Context, userID int64, kind string, expiresAt time.Time) (bool, error) {
	return f.sent[sentKey{userID, kind, ExpiryKey(expiresAt)}], nil
}

func (f *fakeSource) Record(_ context.Context, userID int64, kind string, expiresAt time.Time) error {
	key := sentKey{userID, kind, ExpiryKey(expiresAt)}
	if f.sent == nil {
		f.sent = map[sentKey]bool{}
	}
	f.sent[key] = true
	f.recorded = append(f.recorded, key)
	return nil
}

type fakeSender struct {
	messages map[int64]string
	fail     map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if f.fail[chatID] {
		return errors.New("chat not found")
	}
	if f.messages == nil {
		f.messages = map[int64]string{}
	}
	f.messages[chatID] = text
	return nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCollectWindows(t *testing.T) {
	source := &fakeSource{candidates: []Candidate{
		{UserID: 1, TelegramID: 101, Plan: "pro", PlanName: "Про", ExpiresAt: now.Add(50 * time.Hour)},
		{UserID: 2, TelegramID: 102, Plan: "pro", ExpiresAt: now.Add(5 * 24 * time.Hour)},
		{UserID: 3, TelegramID: 103, Plan: "basic", ExpiresAt: now.Add(-24 * time.Hour)},
		{UserID: 4, TelegramID: 104, Plan: "basic", ExpiresAt: now.Add(-4 * 24 * time.Hour)},
		{UserID: 5, TelegramID: 105, Plan: "basic", ExpiresAt: now},
	}}
	task := New(source, &fakeSender{}, logging.NewNop())

	got, err := task.Collect(context.Background(), now)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	kinds := map[int64]string{}
	for _, n := range got {
		kinds[n.UserID] = n.Kind
	}
	want := map[int64]string{1: KindPreExpiry, 3: KindExpired, 5: KindExpired}
	if len(kinds) != len(want) {
		t.Fatalf("notifications = %v, want %v", kinds, want)
	}
	for id, kind := range want {
		if kinds[id] != kind {
			t.Fatalf("user %d kind = %q, want %q", id, kinds[id], kind)
		}
	}
	for _, n := range got {
		if n.UserID == 1 {
			if !strings.Contains(n.Message, "Про") || !strings.Contains(n.Message, "3 дн.") {
				t.Fatalf("unexpected pre-expiry message %q", n.Message)
			}
			if !strings.Contains(n.Message, "12.03.2026 17:00") {
				t.Fatalf("expected Moscow local time in %q", n.Message)
			}
		}
	}
}

func TestRunSendsOnceAndRecords(t *testing.T) {
	source := &fakeSource{candidates: []Candidate{
		{UserID: 1, TelegramID: 101, Plan: "pro", ExpiresAt: now.Add(time.Hour), Timezone: "UTC"},
		{UserID: 2, TelegramID: 102, Plan: "pro", ExpiresAt: now.Add(-time.Hour)},
	}}
	sender := &fakeSender{fail: map[int64]bool{102: true}}
	task := New(source, sender, logging.NewNop(), WithClock(func() time.Time { return now }))

	sent, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(source.recorded) != 1 || source.recorded[0].userID != 1 {
		t.Fatalf("recorded = %v", source.recorded)
	}
	if !strings.Contains(sender.messages[101], "1 дн.") {
		t.Fatalf("message = %q", sender.messages[101])
	}

	sender.fail = nil
	sent, err = task.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sent != 1 {
		t.Fatalf("second run sent %d, want only the previously failed reminder", sent)
	}
}

func TestResolveLocationFallsBack(t *testing.T) {
	if loc := resolveLocation("Not/AZone"); loc.String() != defaultTimezone {
		t.Fatalf("location = %s, want %s", loc, defaultTimezone)
	}
	if loc := resolveLocation("Asia/Tokyo"); loc.String() != "Asia/Tokyo" {
		t.Fatalf("location = %s", loc)
	}
}
