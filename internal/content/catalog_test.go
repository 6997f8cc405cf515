package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

type contentServer struct {
	mu    sync.Mutex
	slugs []string
	items map[string]Item
	fail  bool
}

func (s *contentServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.slugs = append(s.slugs, r.URL.Path)
		fail := s.fail
		item, ok := s.items[r.URL.Path]
		s.mu.Unlock()

		if fail || !ok {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(item)
	}
}

func (s *contentServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.slugs...)
}

func newContentServer() (*contentServer, *httptest.Server) {
	cs := &contentServer{items: map[string]Item{
		"/content/packs/current":       {ID: 1, Title: "Deep Focus"},
		"/content/singles/sleep":       {ID: 2, Title: "Night Rain"},
		"/content/sleepsounds/slumber": {ID: 3, Title: "Slumber Sounds"},
	}}
	return cs, httptest.NewServer(cs.handler())
}

func TestFetchBundleSubscribedGetsEverything(t *testing.T) {
	cs, srv := newContentServer()
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, time.Second)
	bundle := c.FetchBundle(context.Background(), types.UserTypeSubscribed)

	if bundle.Pack == nil || bundle.Pack.Title != "Deep Focus" {
		t.Fatalf("Pack = %+v", bundle.Pack)
	}
	if bundle.SleepSingle == nil || bundle.SleepSingle.Title != "Night Rain" {
		t.Fatalf("SleepSingle = %+v", bundle.SleepSingle)
	}
	if bundle.SleepSounds == nil || bundle.SleepSounds.Title != "Slumber Sounds" {
		t.Fatalf("SleepSounds = %+v", bundle.SleepSounds)
	}
	if got := len(cs.requested()); got != 3 {
		t.Fatalf("requests = %v, want 3", cs.requested())
	}
}

func TestFetchBundleFreeTierSkipsSleepSounds(t *testing.T) {
	_, srv := newContentServer()
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, time.Second)
	bundle := c.FetchBundle(context.Background(), types.UserTypeAuthFree)

	if bundle.Pack == nil {
		t.Fatal("Pack = nil, authenticated tiers get the pack")
	}
	if bundle.SleepSingle == nil {
		t.Fatal("SleepSingle = nil, every tier gets the sleep single")
	}
	if bundle.SleepSounds != nil {
		t.Fatalf("SleepSounds = %+v, subscribers only", bundle.SleepSounds)
	}
}

func TestFetchBundleUnauthenticatedGetsSleepSingleOnly(t *testing.T) {
	cs, srv := newContentServer()
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, time.Second)
	bundle := c.FetchBundle(context.Background(), types.UserTypeNoAuth)

	if bundle.Pack != nil || bundle.SleepSounds != nil {
		t.Fatalf("bundle = %+v, want only the sleep single", bundle)
	}
	if bundle.SleepSingle == nil {
		t.Fatal("SleepSingle = nil")
	}
	if got := cs.requested(); len(got) != 1 || got[0] != "/content/singles/sleep" {
		t.Fatalf("requests = %v, want only the sleep single", got)
	}
}

func TestFetchBundleFailuresAreNonFatal(t *testing.T) {
	cs, srv := newContentServer()
	defer srv.Close()
	cs.fail = true

	c := NewClient(logger.NewNop(), srv.URL, time.Second)
	bundle := c.FetchBundle(context.Background(), types.UserTypeSubscribed)

	if bundle == nil {
		t.Fatal("FetchBundle = nil, failures must still produce a bundle")
	}
	if bundle.Pack != nil || bundle.SleepSingle != nil || bundle.SleepSounds != nil {
		t.Fatalf("bundle = %+v, want all fields unset on failure", bundle)
	}
}

func TestFetchBundleWithoutBaseURL(t *testing.T) {
	c := NewClient(logger.NewNop(), "", time.Second)
	bundle := c.FetchBundle(context.Background(), types.UserTypeSubscribed)
	if bundle == nil || bundle.Pack != nil || bundle.SleepSingle != nil {
		t.Fatalf("bundle = %+v, want empty bundle when enrichment is not configured", bundle)
	}
}

func TestFetchBundleUnreachableServer(t *testing.T) {
	c := NewClient(logger.NewNop(), "http://127.0.0.1:1", 200*time.Millisecond)
	bundle := c.FetchBundle(context.Background(), types.UserTypeNoAuth)
	if bundle == nil || bundle.SleepSingle != nil {
		t.Fatalf("bundle = %+v, want empty bundle on connection failure", bundle)
	}
}
