package dramabox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"dramastream/watchservice/internal/domain"
)

const (
	defaultBaseURL  = "https://api.dramabox.com"
	maxResponseSize = 4 * 1024 * 1024
)

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      httpClient,
	}
}

// BookDetail fetches one drama's metadata. The catalog answers in one of two
// shapes (see normalizeDetail); both collapse into domain.Drama. An
// unrecognizable payload maps to domain.ErrNotFound.
func (c *Client) BookDetail(ctx context.Context, bookID string) (domain.Drama, error) {
	payload, err := c.doGet(ctx, "/drama/detail", url.Values{"bookId": {bookID}})
	if err != nil {
		return domain.Drama{}, err
	}
	return normalizeDetail(payload)
}

// ChapterList fetches the drama's episodes, ordered by chapter index.
func (c *Client) ChapterList(ctx context.Context, bookID string) ([]domain.Episode, error) {
	payload, err := c.doGet(ctx, "/drama/chapters", url.Values{"bookId": {bookID}})
	if err != nil {
		return nil, err
	}
	return normalizeChapters(payload)
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("catalog HTTP 404: %w", domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog HTTP %d: %w", resp.StatusCode, domain.ErrUnavailable)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("catalog HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// detailShape classifies which of the catalog's two detail layouts a payload
// uses.
type detailShape int

const (
	shapeUnknown detailShape = iota
	shapeDirect              // bookId and coverWap at the top level
	shapeLegacy              // book nested under data.book
)

type detailPayload struct {
	BookID   string          `json:"bookId"`
	BookName string          `json:"bookName"`
	CoverWap json.RawMessage `json:"coverWap"`
	Data     *struct {
		Book *bookPayload `json:"book"`
	} `json:"data"`
}

type bookPayload struct {
	BookID   string `json:"bookId"`
	BookName string `json:"bookName"`
	CoverWap string `json:"coverWap"`
	Cover    string `json:"cover"`
}

func classifyDetail(payload detailPayload) detailShape {
	if strings.TrimSpace(payload.BookID) != "" && len(payload.CoverWap) > 0 {
		return shapeDirect
	}
	if payload.Data != nil && payload.Data.Book != nil && strings.TrimSpace(payload.Data.Book.BookID) != "" {
		return shapeLegacy
	}
	return shapeUnknown
}

// normalizeDetail collapses both detail layouts into one canonical record.
// Shapes that carry no recognizable book map to domain.ErrNotFound.
func normalizeDetail(raw []byte) (domain.Drama, error) {
	var payload detailPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Drama{}, fmt.Errorf("decode detail: %w", err)
	}

	switch classifyDetail(payload) {
	case shapeDirect:
		var cover string
		_ = json.Unmarshal(payload.CoverWap, &cover)
		return domain.Drama{
			ID:    strings.TrimSpace(payload.BookID),
			Name:  payload.BookName,
			Cover: cover,
		}, nil
	case shapeLegacy:
		book := payload.Data.Book
		cover := book.CoverWap
		if cover == "" {
			cover = book.Cover
		}
		return domain.Drama{
			ID:    strings.TrimSpace(book.BookID),
			Name:  book.BookName,
			Cover: cover,
		}, nil
	default:
		return domain.Drama{}, fmt.Errorf("unrecognized detail payload: %w", domain.ErrNotFound)
	}
}

type chapterPayload struct {
	ChapterID    string       `json:"chapterId"`
	ChapterIndex int          `json:"chapterIndex"`
	ChapterName  string       `json:"chapterName"`
	ChapterImg   string       `json:"chapterImg"`
	CDNList      []cdnPayload `json:"cdnList"`
}

type cdnPayload struct {
	IsDefault     int              `json:"isDefault"`
	VideoPathList []videoPathEntry `json:"videoPathList"`
}

type videoPathEntry struct {
	Quality   int    `json:"quality"`
	IsDefault int    `json:"isDefault"`
	VideoPath string `json:"videoPath"`
}

// normalizeChapters accepts either a bare chapter array or the enveloped
// {"data":{"chapterList":[...]}} layout and returns episodes sorted by index.
func normalizeChapters(raw []byte) ([]domain.Episode, error) {
	var chapters []chapterPayload
	if err := json.Unmarshal(raw, &chapters); err != nil {
		var envelope struct {
			Data struct {
				ChapterList []chapterPayload `json:"chapterList"`
			} `json:"data"`
		}
		if envErr := json.Unmarshal(raw, &envelope); envErr != nil {
			return nil, fmt.Errorf("decode chapters: %w", envErr)
		}
		chapters = envelope.Data.ChapterList
	}

	episodes := make([]domain.Episode, 0, len(chapters))
	for _, chapter := range chapters {
		episodes = append(episodes, domain.Episode{
			ID:    strings.TrimSpace(chapter.ChapterID),
			Index: chapter.ChapterIndex,
			Name:  chapter.ChapterName,
			Image: chapter.ChapterImg,
			CDNs:  convertCDNs(chapter.CDNList),
		})
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Index < episodes[j].Index
	})
	return episodes, nil
}

func convertCDNs(list []cdnPayload) []domain.CDN {
	if len(list) == 0 {
		return nil
	}
	cdns := make([]domain.CDN, 0, len(list))
	for _, cdn := range list {
		sources := make([]domain.VideoSource, 0, len(cdn.VideoPathList))
		for _, entry := range cdn.VideoPathList {
			sources = append(sources, domain.VideoSource{
				Quality: entry.Quality,
				Default: entry.IsDefault == 1,
				URL:     entry.VideoPath,
			})
		}
		cdns = append(cdns, domain.CDN{
			Default: cdn.IsDefault == 1,
			Sources: sources,
		})
	}
	return cdns
}
