package engine

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Transcript acquisition. Retrieval itself uses three Innertube
// strategies in order:
//
//	Primary:  scrape watch page ytInitialPlayerResponse → caption XML
//	Fallback: engagement panel /next → /get_transcript
//	Fallback: ANDROID Innertube /player → captionTracks
//
// On top of that sits the proxy-then-direct fallback: when Webshare
// credentials are configured and the proxy answers a reachability probe,
// retrieval goes through the rotating proxy first; blocking failures are
// retried with exponential backoff before falling back to a direct
// connection with its own retry budget.

// TranscriptKind classifies a fetch outcome.
type TranscriptKind int

const (
	TranscriptOK TranscriptKind = iota
	TranscriptNoCaptions
	TranscriptFetchError
)

// Transcript is the fetcher's result. Fetch never fails past its
// boundary; errors are encoded in Kind/Err.
type Transcript struct {
	Text string
	Kind TranscriptKind
	Err  string
}

func (t Transcript) OK() bool { return t.Kind == TranscriptOK }

// FailureMessage renders a failed fetch as user-facing text.
func (t Transcript) FailureMessage() string {
	switch t.Kind {
	case TranscriptNoCaptions:
		return "No captions available for this video."
	case TranscriptFetchError:
		return "Error getting transcript: " + t.Err
	}
	return ""
}

// transcriptLangs is the prioritized caption language list: English
// locale variants plus the non-English codes the callers accept.
var transcriptLangs = []string{
	"en", "hi", "sk", "pa",
	"en-GB", "en-US", "en-CA", "en-AU", "en-IN",
	"en-NZ", "en-IE", "en-ZA", "en-PH", "en-MY", "en-SG",
}

const (
	webshareProxyHost = "p.webshare.io:80"
	proxyProbeURL     = "https://api.ipify.org"
)

// Fetcher acquires transcripts for video ids, tolerating upstream
// blocking via proxying, fallback, and backoff.
type Fetcher struct {
	direct       *http.Client
	proxied      *http.Client // nil = no proxy credentials
	maxTries     uint
	baseWait     time.Duration
	probeURL     string
	probeTimeout time.Duration

	// retrieve is swappable in tests; production uses retrieveTranscript.
	retrieve func(ctx context.Context, client *http.Client, videoID string, langs []string) (string, error)
}

// NewFetcher builds a Fetcher from config. Absent proxy credentials are
// a valid state: the fetcher then only uses the direct path.
func NewFetcher(cfg Config) *Fetcher {
	f := &Fetcher{
		direct:       cfg.HTTPClient,
		maxTries:     3,
		baseWait:     2 * time.Second,
		probeURL:     proxyProbeURL,
		probeTimeout: 8 * time.Second,
		retrieve:     retrieveTranscript,
	}
	if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
		// Webshare rotating residential endpoint; the -rotate suffix
		// picks a fresh exit IP per connection.
		proxyURL := &url.URL{
			Scheme: "http",
			User:   url.UserPassword(cfg.ProxyUsername+"-rotate", cfg.ProxyPassword),
			Host:   webshareProxyHost,
		}
		f.proxied = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               http.ProxyURL(proxyURL),
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return f
}

// Fetch acquires the transcript for videoID. All failures are encoded
// in the returned Transcript; nothing escapes as an error.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) Transcript {
	IncrTranscriptFetches()

	if f.proxied != nil {
		if f.verifyProxy(ctx) {
			IncrProxyFetches()
			text, err := f.fetchWithBackoff(ctx, f.proxied, videoID)
			switch {
			case err == nil:
				return Transcript{Text: text}
			case errors.Is(err, ErrNoCaptions):
				IncrTranscriptErrors()
				return Transcript{Kind: TranscriptNoCaptions, Err: err.Error()}
			}
			slog.Warn("proxied fetch failed, falling back to direct",
				slog.String("id", videoID), slog.Any("error", err))
		} else {
			slog.Warn("proxy unreachable, using direct connection", slog.String("id", videoID))
		}
	}

	text, err := f.fetchWithBackoff(ctx, f.direct, videoID)
	if err == nil {
		return Transcript{Text: text}
	}
	IncrTranscriptErrors()
	if errors.Is(err, ErrNoCaptions) {
		return Transcript{Kind: TranscriptNoCaptions, Err: err.Error()}
	}
	return Transcript{Kind: TranscriptFetchError, Err: err.Error()}
}

// verifyProxy probes an independent IP-echo endpoint through the proxy.
// A short timeout keeps an unreachable proxy off the request path.
func (f *Fetcher) verifyProxy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, f.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := f.proxied.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64)) //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// fetchWithBackoff retries retrieval on blocking signals with
// wait = baseWait × 2^attempt. Non-blocking failures and disabled
// captions are permanent.
func (f *Fetcher) fetchWithBackoff(ctx context.Context, client *http.Client, videoID string) (string, error) {
	operation := func() (string, error) {
		text, err := f.retrieve(ctx, client, videoID, transcriptLangs)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrNoCaptions) || !IsBlocking(err) {
			return "", backoff.Permanent(err)
		}
		slog.Warn("transcript fetch blocked", slog.String("id", videoID), slog.Any("error", err))
		return "", err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.baseWait
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(f.maxTries))
}

// retrieveTranscript runs the three Innertube strategies in order.
// Disabled captions and blocking signals short-circuit; other failures
// try the next strategy.
func retrieveTranscript(ctx context.Context, client *http.Client, videoID string, langs []string) (string, error) {
	text, err := fetchViaPageScrape(ctx, client, videoID, langs)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, ErrNoCaptions) || IsBlocking(err) {
		return "", err
	}
	slog.Warn("youtube: page scrape failed, trying engagement panel",
		slog.String("id", videoID), slog.Any("err", err))

	text, err = fetchViaEngagementPanel(ctx, client, videoID)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, ErrNoCaptions) || IsBlocking(err) {
		return "", err
	}
	slog.Warn("youtube: engagement panel failed, trying player",
		slog.String("id", videoID), slog.Any("err", err))

	return fetchViaPlayer(ctx, client, videoID, langs)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchViaPageScrape scrapes the YouTube watch page HTML and extracts
// the caption track XML URL from ytInitialPlayerResponse. Works from any IP.
func fetchViaPageScrape(ctx context.Context, client *http.Client, videoID string, langs []string) (string, error) {
	watchURL := "https://www.youtube.com/watch?v=" + videoID

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range ChromeHeaders() {
			req.Header.Set(k, v)
		}
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read watch page: %w", err)
	}

	idx := strings.Index(string(body), ytInitialPlayerResponseMarker)
	if idx < 0 {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return "", errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	if playerResp.Captions == nil {
		if playerResp.PlayabilityStatus != nil && playerResp.PlayabilityStatus.Status == "OK" {
			return "", fmt.Errorf("%w: captions disabled for this video", ErrNoCaptions)
		}
		return "", errors.New("no captions in ytInitialPlayerResponse")
	}
	tracks := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", fmt.Errorf("%w: no caption tracks in watch page", ErrNoCaptions)
	}
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return "", errors.New("all tracks require PoToken")
	}
	return fetchTimedText(ctx, client, track.BaseURL)
}

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next JSON response is URL-encoded.
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", errors.New("getTranscriptEndpoint not found in engagement panels")
}

// fetchViaEngagementPanel fetches a transcript via:
//  1. POST /next → engagementPanels containing the transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
//
// This approach works from datacenter IPs where /player returns LOGIN_REQUIRED.
func fetchViaEngagementPanel(ctx context.Context, client *http.Client, videoID string) (string, error) {
	visitorData := generateVisitorData()

	nextData, err := postInnerTubeWEB(ctx, client, ytNextURL, map[string]any{
		"videoId": videoID,
		"context": ytWebContext(visitorData),
	}, visitorData)
	if err != nil {
		return "", fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}

	transcriptData, err := postInnerTubeWEB(ctx, client, ytGetTranscriptURL, map[string]any{
		"params": token,
		"context": map[string]any{
			"client": ytWebClientCtx{
				ClientName:    "WEB",
				ClientVersion: ytWebVersion,
				VisitorData:   visitorData,
				Hl:            "en",
				Gl:            "US",
			},
		},
	}, visitorData)
	if err != nil {
		return "", fmt.Errorf("/get_transcript: %w", err)
	}

	var transcriptResp ytGetTranscriptResp
	if err := json.Unmarshal(transcriptData, &transcriptResp); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}

	text := parseTranscriptSegments(transcriptResp)
	if text == "" {
		return "", errors.New("empty transcript segments")
	}
	return text, nil
}

// fetchViaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func fetchViaPlayer(ctx context.Context, client *http.Client, videoID string, langs []string) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytInnertubeURL+"?prettyPrint=false", strings.NewReader(string(reqBody)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	var playerResp innertubePlayerResp
	if err := json.NewDecoder(resp.Body).Decode(&playerResp); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	if playerResp.Captions == nil {
		if playerResp.PlayabilityStatus != nil && playerResp.PlayabilityStatus.Status == "OK" {
			return "", fmt.Errorf("%w: captions disabled for this video", ErrNoCaptions)
		}
		reason := ""
		if playerResp.PlayabilityStatus != nil {
			reason = playerResp.PlayabilityStatus.Reason
		}
		if reason != "" {
			return "", fmt.Errorf("captions unavailable: %s", reason)
		}
		return "", fmt.Errorf("%w: no captions in player response", ErrNoCaptions)
	}
	tracks := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", fmt.Errorf("%w: no caption tracks", ErrNoCaptions)
	}
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return "", errors.New("all caption tracks require PoToken")
	}
	return fetchTimedText(ctx, client, track.BaseURL)
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken, which only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return tracks[0], false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL.
func fetchTimedText(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", RandomUserAgent())
		return client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", err
	}

	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := CleanHTML(line.Text)
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// parseTranscriptSegments extracts plain text from a /get_transcript JSON response.
func parseTranscriptSegments(resp ytGetTranscriptResp) string {
	var sb strings.Builder
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			if seg.TranscriptSegmentRenderer == nil {
				continue
			}
			for _, run := range seg.TranscriptSegmentRenderer.Snippet.Runs {
				if run.Text != "" {
					if sb.Len() > 0 {
						sb.WriteByte(' ')
					}
					sb.WriteString(run.Text)
				}
			}
		}
	}
	return sb.String()
}
