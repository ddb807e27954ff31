package apihttp

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dramastream/watchservice/internal/domain"
	"dramastream/watchservice/internal/metrics"
	"dramastream/watchservice/internal/watch"
)

var pageFuncs = template.FuncMap{
	"inc": func(i int) int {
		return i + 1
	},
	"formatTimestamp": func(seconds float64) string {
		m := int(seconds) / 60
		s := int(seconds) % 60
		return fmt.Sprintf("%d:%02d", m, s)
	},
}

type episodeItem struct {
	Index        int
	Name         string
	ImageURL     string
	Href         string
	DownloadHref string
	Active       bool
}

type qualityItem struct {
	Value  int
	Href   string
	Active bool
}

type watchPageData struct {
	Title           string
	BookID          string
	BookName        string
	CoverURL        string
	EpisodeIndex    int
	EpisodeName     string
	EpisodeCount    int
	VideoURL        string
	PosterURL       string
	Quality         int
	Qualities       []qualityItem
	Episodes        []episodeItem
	PrevURL         string
	NextURL         string
	HasPrev         bool
	HasNext         bool
	DownloadPath    string
	ProgressEnabled bool
	ProgressPath    string
	ResumeFrom      float64
}

type notFoundPageData struct {
	BookID string
}

type unavailablePageData struct {
	BookID string
}

type continueItem struct {
	BookID       string
	BookName     string
	EpisodeIndex int
	EpisodeName  string
	Href         string
	Position     float64
	Duration     float64
	Percent      int
	WatchedAt    string
}

type homePageData struct {
	Items []continueItem
}

var watchPageTemplate = template.Must(template.New("watch").Funcs(pageFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <meta property="og:title" content="{{.Title}}">
    <meta property="og:type" content="video.episode">
    {{if .CoverURL}}<meta property="og:image" content="{{.CoverURL}}">{{end}}
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0b0e17;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
        }
        .container {
            max-width: 1100px;
            width: 100%;
            padding: 1.5rem 1rem 3rem;
        }
        .topbar {
            display: flex;
            align-items: center;
            justify-content: space-between;
            margin-bottom: 1rem;
        }
        .home-link {
            color: #94a3b8;
            font-size: 0.85rem;
            font-weight: 600;
            text-decoration: none;
        }
        .home-link:hover { color: #38bdf8; }
        video {
            width: 100%;
            max-height: 70vh;
            border-radius: 10px;
            background: #000;
        }
        h1 {
            margin-top: 1rem;
            font-size: 1.4rem;
            font-weight: 600;
        }
        .meta {
            margin-top: 0.35rem;
            color: #94a3b8;
            font-size: 0.875rem;
        }
        .actions {
            margin-top: 1rem;
            display: flex;
            flex-wrap: wrap;
            align-items: center;
            gap: 0.75rem;
        }
        .nav-btn {
            display: inline-block;
            background: #1e293b;
            color: #e2e8f0;
            padding: 0.5rem 1.1rem;
            border-radius: 8px;
            border: none;
            font-size: 0.875rem;
            font-weight: 600;
            text-decoration: none;
            cursor: pointer;
        }
        .nav-btn:hover { background: #334155; }
        .nav-btn.disabled {
            opacity: 0.4;
            cursor: default;
            pointer-events: none;
        }
        .download-btn {
            display: inline-block;
            background: transparent;
            color: #38bdf8;
            border: 1px solid #38bdf8;
            padding: 0.5rem 1.1rem;
            border-radius: 8px;
            font-size: 0.875rem;
            font-weight: 600;
            cursor: pointer;
        }
        .download-btn:hover { background: rgba(56, 189, 248, 0.12); }
        .download-btn.busy { opacity: 0.6; }
        .quality-bar {
            display: flex;
            align-items: center;
            gap: 0.4rem;
            margin-left: auto;
        }
        .quality-btn {
            background: #1e293b;
            color: #cbd5e1;
            padding: 0.35rem 0.7rem;
            border-radius: 6px;
            font-size: 0.8rem;
            font-weight: 600;
            text-decoration: none;
        }
        .quality-btn:hover { background: #334155; }
        .quality-btn.active {
            background: #38bdf8;
            color: #0b0e17;
        }
        h2 {
            margin-top: 2rem;
            font-size: 1rem;
            font-weight: 600;
            color: #cbd5e1;
        }
        .episode-grid {
            margin-top: 0.75rem;
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(150px, 1fr));
            gap: 0.75rem;
        }
        .ep-card {
            display: block;
            background: #121826;
            border-radius: 8px;
            overflow: hidden;
            text-decoration: none;
            color: #cbd5e1;
            border: 1px solid transparent;
        }
        .ep-card:hover { border-color: #334155; }
        .ep-card.active { border-color: #38bdf8; }
        .ep-card img {
            width: 100%;
            aspect-ratio: 16 / 9;
            object-fit: cover;
            display: block;
            background: #0b0e17;
        }
        .ep-card .label {
            padding: 0.5rem 0.6rem;
            font-size: 0.8rem;
            white-space: nowrap;
            overflow: hidden;
            text-overflow: ellipsis;
        }
        .ep-cell { position: relative; }
        .ep-dl {
            position: absolute;
            top: 0.35rem;
            right: 0.35rem;
            border: none;
            border-radius: 6px;
            background: rgba(11, 14, 23, 0.8);
            color: #cbd5e1;
            font-size: 0.8rem;
            padding: 0.2rem 0.45rem;
            cursor: pointer;
        }
        .ep-dl:hover { color: #38bdf8; }
        .ep-dl.busy { color: #64748b; cursor: wait; }
        @media (max-width: 600px) {
            .quality-bar { margin-left: 0; }
            .episode-grid { grid-template-columns: repeat(auto-fill, minmax(110px, 1fr)); }
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="topbar">
            <a class="home-link" href="/">Drama Watch</a>
        </div>
        <video id="player" controls autoplay playsinline {{if .PosterURL}}poster="{{.PosterURL}}"{{else if .CoverURL}}poster="{{.CoverURL}}"{{end}} {{if .VideoURL}}src="{{.VideoURL}}"{{end}}></video>
        <h1>{{.BookName}}</h1>
        <p class="meta">Episode {{inc .EpisodeIndex}} of {{.EpisodeCount}}{{if .EpisodeName}} · {{.EpisodeName}}{{end}}</p>
        <div class="actions">
            {{if .HasPrev}}<a class="nav-btn" href="{{.PrevURL}}">Previous</a>{{else}}<span class="nav-btn disabled">Previous</span>{{end}}
            {{if .HasNext}}<a class="nav-btn" href="{{.NextURL}}">Next</a>{{else}}<span class="nav-btn disabled">Next</span>{{end}}
            <button class="download-btn" id="download-btn">Download</button>
            <div class="quality-bar">
                {{range .Qualities}}
                <a class="quality-btn{{if .Active}} active{{end}}" href="{{.Href}}">{{.Value}}p</a>
                {{end}}
            </div>
        </div>
        <h2>Episodes</h2>
        <div class="episode-grid">
            {{range .Episodes}}
            <div class="ep-cell">
                <a class="ep-card{{if .Active}} active{{end}}" href="{{.Href}}">
                    {{if .ImageURL}}<img src="{{.ImageURL}}" loading="lazy" alt="">{{end}}
                    <div class="label">{{if .Name}}{{.Name}}{{else}}Episode {{inc .Index}}{{end}}</div>
                </a>
                <button class="ep-dl" data-ep="{{.Index}}" data-href="{{.DownloadHref}}" title="Download episode">&#8681;</button>
            </div>
            {{end}}
        </div>
        <script>
            (function() {
                var player = document.getElementById('player');
                var nextHref = {{.NextURL}};
                if (nextHref) {
                    player.addEventListener('ended', function() {
                        window.location.href = nextHref;
                    });
                }
            })();

            (function() {
                function triggerDownload(path, done) {
                    fetch(path)
                        .then(function(r) {
                            if (!r.ok) throw new Error('HTTP ' + r.status);
                            return r.json();
                        })
                        .then(function(data) {
                            if (!data.url) throw new Error('no url');
                            var a = document.createElement('a');
                            a.href = data.url;
                            a.download = data.filename || '';
                            document.body.appendChild(a);
                            a.click();
                            document.body.removeChild(a);
                        })
                        .catch(function() {
                            alert('Download failed. Please try again later.');
                        })
                        .finally(done);
                }

                // Busy state is tracked per episode index; downloads of
                // different episodes may run at the same time, but repeat
                // clicks for the same index are ignored until it clears.
                var busy = {};

                var btn = document.getElementById('download-btn');
                btn.addEventListener('click', function() {
                    var idx = {{.EpisodeIndex}};
                    if (busy[idx]) return;
                    busy[idx] = true;
                    btn.classList.add('busy');
                    btn.textContent = 'Downloading';
                    triggerDownload({{.DownloadPath}}, function() {
                        busy[idx] = false;
                        btn.classList.remove('busy');
                        btn.textContent = 'Download';
                    });
                });

                document.querySelectorAll('.ep-dl').forEach(function(el) {
                    el.addEventListener('click', function() {
                        var idx = el.getAttribute('data-ep');
                        if (busy[idx]) return;
                        busy[idx] = true;
                        el.classList.add('busy');
                        triggerDownload(el.getAttribute('data-href'), function() {
                            busy[idx] = false;
                            el.classList.remove('busy');
                        });
                    });
                });
            })();

            {{if .ProgressEnabled}}
            (function() {
                var player = document.getElementById('player');
                var progressPath = {{.ProgressPath}};
                var resumeFrom = {{.ResumeFrom}};
                var lastSent = 0;

                if (resumeFrom > 0) {
                    player.addEventListener('loadedmetadata', function() {
                        if (player.duration && resumeFrom < player.duration - 5) {
                            player.currentTime = resumeFrom;
                        }
                    });
                }

                function report() {
                    if (!player.duration) return;
                    fetch(progressPath, {
                        method: 'PUT',
                        headers: {'Content-Type': 'application/json'},
                        body: JSON.stringify({
                            position: player.currentTime,
                            duration: player.duration,
                            bookName: {{.BookName}},
                            episodeName: {{.EpisodeName}}
                        })
                    }).catch(function() {});
                }

                player.addEventListener('timeupdate', function() {
                    var now = Date.now();
                    if (now - lastSent < 10000) return;
                    lastSent = now;
                    report();
                });
                player.addEventListener('pause', report);
            })();
            {{end}}
        </script>
    </div>
</body>
</html>`))

var notFoundPageTemplate = template.Must(template.New("notfound").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Drama Not Found · Drama Watch</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0b0e17;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .container { text-align: center; padding: 2rem; }
        h1 { font-size: 1.5rem; margin-bottom: 0.75rem; }
        p { color: #94a3b8; margin-bottom: 1.5rem; }
        a {
            display: inline-block;
            background: #38bdf8;
            color: #0b0e17;
            padding: 0.625rem 1.5rem;
            border-radius: 8px;
            text-decoration: none;
            font-weight: 600;
        }
        a:hover { opacity: 0.9; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Drama not found</h1>
        <p>This drama doesn't exist or has no episodes to play.</p>
        <a href="/">Back to Drama Watch</a>
    </div>
</body>
</html>`))

var unavailablePageTemplate = template.Must(template.New("unavailable").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Temporarily Unavailable · Drama Watch</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0b0e17;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .container { text-align: center; padding: 2rem; }
        h1 { font-size: 1.5rem; margin-bottom: 0.75rem; }
        p { color: #94a3b8; margin-bottom: 1.5rem; }
        a {
            display: inline-block;
            background: #38bdf8;
            color: #0b0e17;
            padding: 0.625rem 1.5rem;
            border-radius: 8px;
            text-decoration: none;
            font-weight: 600;
        }
        a:hover { opacity: 0.9; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Temporarily unavailable</h1>
        <p>The catalog is not responding right now. Try again in a minute.</p>
        <a href="/">Back to Drama Watch</a>
    </div>
</body>
</html>`))

var homePageTemplate = template.Must(template.New("home").Funcs(pageFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Drama Watch</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0b0e17;
            color: #e2e8f0;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
        }
        .container {
            max-width: 900px;
            width: 100%;
            padding: 2.5rem 1rem 3rem;
        }
        h1 { font-size: 1.6rem; font-weight: 700; }
        .tagline { margin-top: 0.4rem; color: #94a3b8; font-size: 0.9rem; }
        form {
            margin-top: 1.5rem;
            display: flex;
            gap: 0.5rem;
            max-width: 420px;
        }
        input {
            flex: 1;
            padding: 0.6rem 0.9rem;
            border-radius: 8px;
            border: 1px solid #334155;
            background: #121826;
            color: #e2e8f0;
            font-size: 0.9rem;
            outline: none;
        }
        input:focus { border-color: #38bdf8; }
        button {
            background: #38bdf8;
            color: #0b0e17;
            border: none;
            padding: 0.6rem 1.2rem;
            border-radius: 8px;
            font-size: 0.9rem;
            font-weight: 600;
            cursor: pointer;
        }
        button:hover { opacity: 0.9; }
        h2 {
            margin-top: 2.5rem;
            font-size: 1rem;
            font-weight: 600;
            color: #cbd5e1;
        }
        .empty { margin-top: 0.75rem; color: #64748b; font-size: 0.875rem; }
        .rail {
            margin-top: 0.75rem;
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(240px, 1fr));
            gap: 0.75rem;
        }
        .card {
            display: block;
            background: #121826;
            border-radius: 8px;
            padding: 0.8rem 0.9rem;
            text-decoration: none;
            color: #e2e8f0;
            border: 1px solid transparent;
        }
        .card:hover { border-color: #334155; }
        .card .name {
            font-size: 0.9rem;
            font-weight: 600;
            white-space: nowrap;
            overflow: hidden;
            text-overflow: ellipsis;
        }
        .card .ep {
            margin-top: 0.25rem;
            color: #94a3b8;
            font-size: 0.8rem;
        }
        .bar {
            margin-top: 0.6rem;
            height: 4px;
            border-radius: 2px;
            background: #1e293b;
            overflow: hidden;
        }
        .bar span {
            display: block;
            height: 100%;
            background: #38bdf8;
        }
        .card .when { margin-top: 0.5rem; color: #64748b; font-size: 0.72rem; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Drama Watch</h1>
        <p class="tagline">Short drama episodes, straight from the catalog.</p>
        <form id="open-form">
            <input id="book-id" placeholder="Book ID" autocomplete="off">
            <button type="submit">Watch</button>
        </form>
        <h2>Continue watching</h2>
        {{if .Items}}
        <div class="rail">
            {{range .Items}}
            <a class="card" href="{{.Href}}">
                <div class="name">{{if .BookName}}{{.BookName}}{{else}}{{.BookID}}{{end}}</div>
                <div class="ep">Episode {{inc .EpisodeIndex}}{{if .EpisodeName}} · {{.EpisodeName}}{{end}}</div>
                <div class="bar"><span style="width: {{.Percent}}%"></span></div>
                <div class="when">{{formatTimestamp .Position}} / {{formatTimestamp .Duration}} · {{.WatchedAt}}</div>
            </a>
            {{end}}
        </div>
        {{else}}
        <p class="empty">Nothing here yet. Open a drama by its book ID to start watching.</p>
        {{end}}
        <script>
            document.getElementById('open-form').addEventListener('submit', function(e) {
                e.preventDefault();
                var v = document.getElementById('book-id').value.trim();
                if (v) window.location.href = '/watch/' + encodeURIComponent(v);
            });
        </script>
    </div>
</body>
</html>`))

// handleWatchPage renders /watch/{bookId}?ep=N&q=Q. Without an ep param the
// page resumes at the most recently watched episode. Out-of-range episode
// indexes are clamped and unknown qualities silently fall back, so a stale
// bookmarked URL still plays something sensible.
func (s *Server) handleWatchPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/watch/")
	parts := strings.Split(tail, "/")
	if len(parts) != 1 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	bookID := parts[0]

	epRaw := strings.TrimSpace(r.URL.Query().Get("ep"))
	episodeParam, err := parseNonNegativeInt(epRaw, 0)
	if err != nil {
		episodeParam = 0
	}
	requestedQuality, err := parseNonNegativeInt(r.URL.Query().Get("q"), 0)
	if err != nil {
		requestedQuality = 0
	}

	data, err := s.watch.Load(r.Context(), bookID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, watch.ErrInvalidBookID):
		metrics.WatchPagesTotal.WithLabelValues("not_found").Inc()
		s.renderNotFound(w, bookID)
		return
	default:
		metrics.WatchPagesTotal.WithLabelValues("error").Inc()
		s.logger.Error("watch page load failed",
			slog.String("bookId", bookID),
			slog.String("error", err.Error()),
		)
		s.renderUnavailable(w, bookID)
		return
	}

	if data.Drama.ID == "" || len(data.Episodes) == 0 {
		metrics.WatchPagesTotal.WithLabelValues("not_found").Inc()
		s.renderNotFound(w, bookID)
		return
	}

	// A bare /watch/{bookId} URL picks up where the viewer left off; an
	// explicit ep param always wins.
	if epRaw == "" && s.progress != nil {
		if wp, err := s.progress.LatestForBook(r.Context(), data.Drama.ID); err == nil {
			episodeParam = wp.EpisodeIndex
		}
	}

	episodeIndex := watch.ClampEpisodeIndex(episodeParam, len(data.Episodes))
	episode := data.Episodes[episodeIndex]
	quality := watch.EffectiveQuality(episode, requestedQuality)
	videoURL := watch.ResolveStreamURL(episode, quality)

	qualities := watch.AvailableQualities(episode)
	qualityItems := make([]qualityItem, 0, len(qualities))
	for _, q := range qualities {
		qualityItems = append(qualityItems, qualityItem{
			Value:  q,
			Href:   watchPathFor(data.Drama.ID, episodeIndex, q),
			Active: q == quality,
		})
	}

	episodeItems := make([]episodeItem, 0, len(data.Episodes))
	for i, ep := range data.Episodes {
		episodeItems = append(episodeItems, episodeItem{
			Index:        i,
			Name:         ep.Name,
			ImageURL:     imageProxyPath(ep.Image),
			Href:         watchPathFor(data.Drama.ID, i, quality),
			DownloadHref: downloadPathFor(data.Drama.ID, i, quality),
			Active:       i == episodeIndex,
		})
	}

	var resumeFrom float64
	if s.progress != nil {
		if wp, err := s.progress.Get(r.Context(), data.Drama.ID, episodeIndex); err == nil && wp.Position > 0 {
			resumeFrom = wp.Position
		}
	}

	page := watchPageData{
		Title:           fmt.Sprintf("%s · Episode %d", data.Drama.Name, episodeIndex+1),
		BookID:          data.Drama.ID,
		BookName:        data.Drama.Name,
		CoverURL:        imageProxyPath(data.Drama.Cover),
		EpisodeIndex:    episodeIndex,
		EpisodeName:     episode.Name,
		EpisodeCount:    len(data.Episodes),
		VideoURL:        videoURL,
		PosterURL:       imageProxyPath(episode.Image),
		Quality:         quality,
		Qualities:       qualityItems,
		Episodes:        episodeItems,
		HasPrev:         episodeIndex > 0,
		HasNext:         episodeIndex < len(data.Episodes)-1,
		DownloadPath:    downloadPathFor(data.Drama.ID, episodeIndex, quality),
		ProgressEnabled: s.progress != nil,
		ResumeFrom:      resumeFrom,
	}
	if page.HasPrev {
		page.PrevURL = watchPathFor(data.Drama.ID, episodeIndex-1, quality)
	}
	if page.HasNext {
		page.NextURL = watchPathFor(data.Drama.ID, episodeIndex+1, quality)
	}
	page.ProgressPath = fmt.Sprintf("/api/progress/%s/%d", url.PathEscape(data.Drama.ID), episodeIndex)

	metrics.WatchPagesTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := watchPageTemplate.Execute(w, page); err != nil {
		s.logger.Error("failed to render watch page", slog.String("error", err.Error()))
	}
}

// handleHomePage renders the landing page with a continue-watching rail.
func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var items []continueItem
	if s.progress != nil {
		recent, err := s.progress.ListRecent(r.Context(), 30)
		if err != nil {
			s.logger.Warn("continue watching lookup failed", slog.String("error", err.Error()))
		} else {
			items = buildContinueItems(recent)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homePageTemplate.Execute(w, homePageData{Items: items}); err != nil {
		s.logger.Error("failed to render home page", slog.String("error", err.Error()))
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter, bookID string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := notFoundPageTemplate.Execute(w, notFoundPageData{BookID: bookID}); err != nil {
		s.logger.Error("failed to render not found page", slog.String("error", err.Error()))
	}
}

func (s *Server) renderUnavailable(w http.ResponseWriter, bookID string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := unavailablePageTemplate.Execute(w, unavailablePageData{BookID: bookID}); err != nil {
		s.logger.Error("failed to render unavailable page", slog.String("error", err.Error()))
	}
}

// buildContinueItems keeps the most recent entry per book, in recency order.
func buildContinueItems(recent []domain.WatchProgress) []continueItem {
	seen := make(map[string]bool, len(recent))
	items := make([]continueItem, 0, len(recent))
	for _, wp := range recent {
		if wp.BookID == "" || seen[wp.BookID] {
			continue
		}
		seen[wp.BookID] = true

		percent := 0
		if wp.Duration > 0 {
			percent = int(wp.Position / wp.Duration * 100)
			if percent < 0 {
				percent = 0
			}
			if percent > 100 {
				percent = 100
			}
		}
		items = append(items, continueItem{
			BookID:       wp.BookID,
			BookName:     wp.BookName,
			EpisodeIndex: wp.EpisodeIndex,
			EpisodeName:  wp.EpisodeName,
			Href:         watchPathFor(wp.BookID, wp.EpisodeIndex, 0),
			Position:     wp.Position,
			Duration:     wp.Duration,
			Percent:      percent,
			WatchedAt:    wp.UpdatedAt.Format("Jan 2, 2006"),
		})
	}
	return items
}

func watchPathFor(bookID string, episodeIndex, quality int) string {
	path := "/watch/" + url.PathEscape(bookID) + "?ep=" + strconv.Itoa(episodeIndex)
	if quality > 0 {
		path += "&q=" + strconv.Itoa(quality)
	}
	return path
}

func downloadPathFor(bookID string, episodeIndex, quality int) string {
	return fmt.Sprintf("/api/dramas/%s/download?ep=%d&quality=%d",
		url.PathEscape(bookID), episodeIndex, quality)
}

func imageProxyPath(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return "/image?url=" + url.QueryEscape(raw)
}
