package domain

// Drama is the canonical show record every detail payload is normalized to.
type Drama struct {
	ID    string `json:"bookId"`
	Name  string `json:"bookName"`
	Cover string `json:"cover,omitempty"`
}

// VideoSource is one playable file a CDN offers for an episode.
type VideoSource struct {
	Quality int    `json:"quality"`
	Default bool   `json:"isDefault,omitempty"`
	URL     string `json:"videoPath"`
}

// CDN is one mirror carrying a set of sources at various qualities.
type CDN struct {
	Default bool          `json:"isDefault,omitempty"`
	Sources []VideoSource `json:"videoPathList"`
}

type Episode struct {
	ID    string `json:"chapterId"`
	Index int    `json:"chapterIndex"`
	Name  string `json:"chapterName"`
	Image string `json:"chapterImg,omitempty"`
	CDNs  []CDN  `json:"cdnList"`
}

// DownloadLink is a resolved download target for one episode.
type DownloadLink struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Quality  int    `json:"quality,omitempty"`
}
