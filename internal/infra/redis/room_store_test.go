package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func readMarker(t *testing.T, mr *miniredis.Miniredis, sessionID string) domain.SessionInfo {
	t.Helper()
	raw, err := mr.Get("quiz:session:" + sessionID)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	var info domain.SessionInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		t.Fatalf("decode marker: %v", err)
	}
	return info
}

func TestRoomStoreSetsAndClearsMarkers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute, nil)
	room := app.NewRoom(app.RoomParams{
		ID:       "session-1",
		AdminID:  "admin",
		Quiz:     sampleQuiz(),
		Registry: app.NewRegistry(),
		OnChange: store.SessionChanged,
	})
	defer room.Stop()

	store.Put(room)
	info := readMarker(t, mr, "session-1")
	if info.QuizID != "quiz-1" || info.Status != domain.StatusLobby || info.AdminID != "admin" {
		t.Fatalf("unexpected marker: %+v", info)
	}
	if ttl := mr.TTL("quiz:session:session-1"); ttl != time.Minute {
		t.Fatalf("expected marker ttl 1m, got %v", ttl)
	}

	store.Delete("session-1")
	if mr.Exists("quiz:session:session-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestRoomStoreFollowsStatusChanges(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute, nil)
	room := app.NewRoom(app.RoomParams{
		ID:       "session-1",
		AdminID:  "admin",
		Quiz:     sampleQuiz(),
		Registry: app.NewRegistry(),
		OnChange: store.SessionChanged,
	})
	defer room.Stop()
	store.Put(room)

	ctx := context.Background()
	if err := room.Join(ctx, "u1", "Alice", nopChannel{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := readMarker(t, mr, "session-1").Participants; got != 1 {
		t.Fatalf("expected 1 participant in marker, got %d", got)
	}
	if err := room.Start(ctx, "admin"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := readMarker(t, mr, "session-1"); got.Status != domain.StatusQuestionActive || got.QuestionIndex != 0 {
		t.Fatalf("marker did not follow start: %+v", got)
	}
}

func TestRoomStoreLookupsDoNotTouchRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute, nil)
	room := app.NewRoom(app.RoomParams{ID: "session-1", AdminID: "admin", Quiz: sampleQuiz(), Registry: app.NewRegistry()})
	defer room.Stop()
	store.Put(room)

	before := mr.CommandCount()
	for i := 0; i < 5; i++ {
		if _, ok := store.Get("session-1"); !ok {
			t.Fatalf("room missing")
		}
	}
	if after := mr.CommandCount(); after != before {
		t.Fatalf("lookups issued %d redis commands", after-before)
	}
}

func TestRoomStoreIgnoresChangesAfterDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute, nil)
	room := app.NewRoom(app.RoomParams{ID: "session-1", AdminID: "admin", Quiz: sampleQuiz(), Registry: app.NewRegistry()})
	defer room.Stop()
	store.Put(room)
	info := room.Info()
	store.Delete("session-1")

	store.SessionChanged(info)
	if mr.Exists("quiz:session:session-1") {
		t.Fatalf("marker written back after delete")
	}
}

type nopChannel struct{}

func (nopChannel) Send(domain.Envelope) error { return nil }
func (nopChannel) Close() error               { return nil }
