package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// OpenSubtitlesConfig carries the credentials and transport settings for
// the OpenSubtitles REST API.
type OpenSubtitlesConfig struct {
	APIKey    string
	APIURL    string
	UserAgent string
	Timeout   time.Duration
}

// OpenSubtitles is a SourceProvider backed by the opensubtitles.com v1 API.
// Thread-safe for concurrent use.
type OpenSubtitles struct {
	config     OpenSubtitlesConfig
	httpClient *http.Client
}

func NewOpenSubtitles(config OpenSubtitlesConfig) (*OpenSubtitles, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("opensubtitles api key is required")
	}
	if config.APIURL == "" {
		config.APIURL = "https://api.opensubtitles.com/api/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &OpenSubtitles{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// searchResponse mirrors only the fields the resolver needs. Unexpected
// shapes decode to zero values and are dropped, never propagated.
type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Data       []searchItem `json:"data"`
}

type searchItem struct {
	Attributes struct {
		Release        string `json:"release"`
		DownloadCount  int    `json:"download_count"`
		MovieHashMatch bool   `json:"moviehash_match"`
		Files          []struct {
			FileID   int64  `json:"file_id"`
			FileName string `json:"file_name"`
		} `json:"files"`
	} `json:"attributes"`
}

type downloadResponse struct {
	Link string `json:"link"`
}

// Search queries the catalog ordered by download count, adding the
// moviehash parameter when a fingerprint is supplied.
func (p *OpenSubtitles) Search(ctx context.Context, criteria SearchCriteria) ([]Reference, error) {
	params := url.Values{}
	params.Set("imdb_id", strings.TrimPrefix(criteria.MediaID, "tt"))
	params.Set("languages", criteria.Language)
	params.Set("order_by", "download_count")
	params.Set("order_direction", "desc")
	if criteria.Season > 0 && criteria.Episode > 0 {
		params.Set("season_number", strconv.Itoa(criteria.Season))
		params.Set("episode_number", strconv.Itoa(criteria.Episode))
	}
	if criteria.Fingerprint != "" {
		params.Set("moviehash", criteria.Fingerprint)
	}

	body, err := p.doRequest(ctx, http.MethodGet, "/subtitles?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		log.Error("OpenSubtitles search response did not decode: %v", err)
		return nil, ErrUnavailable
	}

	ret := make([]Reference, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		if len(item.Attributes.Files) == 0 {
			continue // fail closed on entries without a downloadable file
		}
		file := item.Attributes.Files[0]
		if file.FileID == 0 {
			continue
		}
		name := file.FileName
		if name == "" {
			name = item.Attributes.Release
		}
		provenance := ProvenanceGeneric
		if criteria.Fingerprint != "" && item.Attributes.MovieHashMatch {
			provenance = ProvenanceFingerprint
		}
		ret = append(ret, Reference{
			Provenance: provenance,
			Locator:    strconv.FormatInt(file.FileID, 10),
			Name:       name,
			Downloads:  item.Attributes.DownloadCount,
		})
	}
	return ret, nil
}

// FetchLink exchanges a file locator for a short-lived download URL.
func (p *OpenSubtitles) FetchLink(ctx context.Context, ref Reference) (string, error) {
	fileID, err := strconv.ParseInt(ref.Locator, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid reference locator %q: %w", ref.Locator, err)
	}

	payload, _ := json.Marshal(map[string]int64{"file_id": fileID})
	body, err := p.doRequest(ctx, http.MethodPost, "/download", payload)
	if err != nil {
		return "", err
	}

	var decoded downloadResponse
	if err := json.Unmarshal(body, &decoded); err != nil || decoded.Link == "" {
		log.Error("OpenSubtitles download response did not decode for file %d", fileID)
		return "", ErrUnavailable
	}
	return decoded.Link, nil
}

func (p *OpenSubtitles) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.APIURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Api-Key", p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Error("OpenSubtitles request %s %s failed: %v", method, path, err)
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("OpenSubtitles request %s %s returned status %d", method, path, resp.StatusCode)
		return nil, ErrUnavailable
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, ErrUnavailable
	}
	return body, nil
}
