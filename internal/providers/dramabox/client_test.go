package dramabox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dramastream/watchservice/internal/domain"
)

// ---------------------------------------------------------------------------
// Detail normalization
// ---------------------------------------------------------------------------

func TestNormalizeDetailDirectShape(t *testing.T) {
	payload := []byte(`{"bookId":"41000110906","bookName":"Hidden Love","coverWap":"https://cdn.example.com/cover.jpg"}`)

	drama, err := normalizeDetail(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if drama.ID != "41000110906" {
		t.Fatalf("unexpected id: %s", drama.ID)
	}
	if drama.Name != "Hidden Love" {
		t.Fatalf("unexpected name: %s", drama.Name)
	}
	if drama.Cover != "https://cdn.example.com/cover.jpg" {
		t.Fatalf("unexpected cover: %s", drama.Cover)
	}
}

func TestNormalizeDetailLegacyShape(t *testing.T) {
	payload := []byte(`{"data":{"book":{"bookId":"42","bookName":"X"}}}`)

	drama, err := normalizeDetail(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if drama.ID != "42" || drama.Name != "X" {
		t.Fatalf("unexpected drama: %+v", drama)
	}
}

func TestNormalizeDetailLegacyCoverFallback(t *testing.T) {
	payload := []byte(`{"data":{"book":{"bookId":"42","bookName":"X","cover":"https://cdn.example.com/alt.jpg"}}}`)

	drama, err := normalizeDetail(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if drama.Cover != "https://cdn.example.com/alt.jpg" {
		t.Fatalf("expected cover fallback, got %q", drama.Cover)
	}
}

func TestNormalizeDetailDirectShapeWins(t *testing.T) {
	// When both layouts are present the top-level one is authoritative.
	payload := []byte(`{"bookId":"1","bookName":"Top","coverWap":"c","data":{"book":{"bookId":"2","bookName":"Nested"}}}`)

	drama, err := normalizeDetail(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if drama.ID != "1" || drama.Name != "Top" {
		t.Fatalf("expected direct shape to win, got %+v", drama)
	}
}

func TestNormalizeDetailUnknownShape(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"bookId":"42"}`,
		`{"data":{}}`,
		`{"data":{"book":{"bookName":"no id"}}}`,
		`{"status":"ok","message":"nothing here"}`,
	}
	for _, payload := range payloads {
		_, err := normalizeDetail([]byte(payload))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("normalizeDetail(%s) error = %v, want ErrNotFound", payload, err)
		}
	}
}

func TestNormalizeDetailInvalidJSON(t *testing.T) {
	_, err := normalizeDetail([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("malformed JSON is a decode error, not a missing book")
	}
}

// ---------------------------------------------------------------------------
// Chapter normalization
// ---------------------------------------------------------------------------

func TestNormalizeChaptersBareArray(t *testing.T) {
	payload := []byte(`[
		{"chapterId":"c2","chapterIndex":1,"chapterName":"Fallout","cdnList":[]},
		{"chapterId":"c1","chapterIndex":0,"chapterName":"Pilot","cdnList":[
			{"isDefault":1,"videoPathList":[
				{"quality":720,"isDefault":0,"videoPath":"a"},
				{"quality":1080,"isDefault":1,"videoPath":"b"}
			]},
			{"isDefault":0,"videoPathList":[{"quality":480,"videoPath":"c"}]}
		]}
	]`)

	episodes, err := normalizeChapters(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].Index != 0 || episodes[1].Index != 1 {
		t.Fatalf("episodes not sorted by index: %d, %d", episodes[0].Index, episodes[1].Index)
	}

	pilot := episodes[0]
	if pilot.ID != "c1" || pilot.Name != "Pilot" {
		t.Fatalf("unexpected episode: %+v", pilot)
	}
	if len(pilot.CDNs) != 2 {
		t.Fatalf("expected 2 CDNs, got %d", len(pilot.CDNs))
	}
	if !pilot.CDNs[0].Default || pilot.CDNs[1].Default {
		t.Fatal("isDefault flag mapped incorrectly on CDNs")
	}

	sources := pilot.CDNs[0].Sources
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Quality != 720 || sources[0].Default || sources[0].URL != "a" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[1].Quality != 1080 || !sources[1].Default || sources[1].URL != "b" {
		t.Fatalf("unexpected second source: %+v", sources[1])
	}
}

func TestNormalizeChaptersEnvelope(t *testing.T) {
	payload := []byte(`{"data":{"chapterList":[{"chapterId":"c1","chapterIndex":0,"chapterName":"Pilot"}]}}`)

	episodes, err := normalizeChapters(payload)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Name != "Pilot" {
		t.Fatalf("unexpected episodes: %+v", episodes)
	}
}

func TestNormalizeChaptersEmptyArray(t *testing.T) {
	episodes, err := normalizeChapters([]byte(`[]`))
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if len(episodes) != 0 {
		t.Fatalf("expected no episodes, got %d", len(episodes))
	}
}

func TestNormalizeChaptersUnparseable(t *testing.T) {
	if _, err := normalizeChapters([]byte(`{"data":"nope"}`)); err == nil {
		t.Fatal("expected decode error")
	}
}

// ---------------------------------------------------------------------------
// HTTP client (integration with httptest)
// ---------------------------------------------------------------------------

func TestBookDetailSendsExpectedRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drama/detail" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("bookId") != "42" {
			t.Errorf("unexpected bookId: %s", r.URL.Query().Get("bookId"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("unexpected Accept header: %s", r.Header.Get("Accept"))
		}
		if r.Header.Get("User-Agent") != "drama-watch/1.0" {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"bookId":"42","bookName":"X","coverWap":"c"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL + "/", UserAgent: "drama-watch/1.0"})
	drama, err := client.BookDetail(context.Background(), "42")
	if err != nil {
		t.Fatalf("detail error: %v", err)
	}
	if drama.Name != "X" {
		t.Fatalf("unexpected drama: %+v", drama)
	}
}

func TestBookDetailNotFoundStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.BookDetail(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookDetailUpstreamErrors(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient(Config{BaseURL: ts.URL})
		_, err := client.BookDetail(context.Background(), "42")
		ts.Close()

		if !errors.Is(err, domain.ErrUnavailable) {
			t.Errorf("status %d: expected ErrUnavailable, got %v", status, err)
		}
	}
}

func TestBookDetailOtherStatusIsPlainError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("access denied"))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	_, err := client.BookDetail(context.Background(), "42")
	if err == nil {
		t.Fatal("expected error for HTTP 403")
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("403 should not map to a sentinel: %v", err)
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}

func TestChapterListFetchesAndSorts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drama/chapters" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("bookId") != "42" {
			t.Errorf("unexpected bookId: %s", r.URL.Query().Get("bookId"))
		}
		w.Write([]byte(`[
			{"chapterId":"c3","chapterIndex":2},
			{"chapterId":"c1","chapterIndex":0},
			{"chapterId":"c2","chapterIndex":1}
		]`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})
	episodes, err := client.ChapterList(context.Background(), "42")
	if err != nil {
		t.Fatalf("chapters error: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(episodes))
	}
	for i, episode := range episodes {
		if episode.Index != i {
			t.Fatalf("episode %d has index %d", i, episode.Index)
		}
	}
}

func TestChapterListContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{BaseURL: ts.URL})
	if _, err := client.ChapterList(ctx, "42"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
