// internal/infra/capture/microlink.go
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"causelist_notification_bot/internal/domain/causelist"
	"causelist_notification_bot/internal/domain/snapshot"
	"causelist_notification_bot/internal/infra/statestore"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// MicrolinkProvider captures snapshots through the microlink render API.
// The page HTML is fetched directly for date extraction; the PNG comes from
// the render service and is cached on disk with a TTL so repeated ticks
// inside one evening don't re-render an unchanged page.
type MicrolinkProvider struct {
	apiURL   string
	cacheTTL time.Duration
	layout   statestore.Layout
	ex       *causelist.Extractor
	hc       *http.Client
	log      *logrus.Entry

	now func() time.Time
}

func NewMicrolinkProvider(apiURL string, cacheTTL time.Duration, layout statestore.Layout, ex *causelist.Extractor, log *logrus.Entry) *MicrolinkProvider {
	return &MicrolinkProvider{
		apiURL:   apiURL,
		cacheTTL: cacheTTL,
		layout:   layout,
		ex:       ex,
		hc:       &http.Client{Timeout: 60 * time.Second},
		log:      log,
		now:      time.Now,
	}
}

// cacheMeta is the sidecar written next to the cached screenshot.
type cacheMeta struct {
	Timestamp int64  `json:"timestamp"`
	TTL       int64  `json:"ttl"`
	SourceURL string `json:"source_url"`
}

// Capture fetches the target page, extracts the cause-list date and obtains
// a full-page PNG. snapshot.ErrDateNotFound is returned without touching the
// render API when the page carries no plausible date.
func (p *MicrolinkProvider) Capture(ctx context.Context, targetURL string, profile snapshot.QualityProfile) (*snapshot.Snapshot, error) {
	doc, err := p.fetchDocument(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("fetch target page: %w", err)
	}

	listDate, found := p.ex.Extract(doc)
	if !found {
		return nil, snapshot.ErrDateNotFound
	}

	if p.cacheIsValid(targetURL) {
		p.log.Debug("Reusing cached screenshot.")
	} else {
		shotURL, err := p.requestScreenshot(ctx, targetURL, profile)
		if err != nil {
			return nil, fmt.Errorf("request screenshot: %w", err)
		}
		if err := p.downloadScreenshot(ctx, shotURL, targetURL); err != nil {
			return nil, fmt.Errorf("download screenshot: %w", err)
		}
	}

	artifact, err := p.stageArtifact()
	if err != nil {
		return nil, fmt.Errorf("stage snapshot artifact: %w", err)
	}

	return &snapshot.Snapshot{
		ListDate:    listDate,
		ImagePath:   artifact,
		ContentType: "image/png",
		CapturedAt:  p.now(),
	}, nil
}

// stageArtifact copies the cached screenshot into a per-cycle file that the
// caller owns and discards when its cycle ends. The cached copy itself stays
// put so reuse within the TTL survives across cycles.
func (p *MicrolinkProvider) stageArtifact() (string, error) {
	src, err := os.Open(p.layout.Screenshot())
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(p.layout.Root, "delivery-*.png")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (p *MicrolinkProvider) fetchDocument(ctx context.Context, targetURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "causelist-bot/1.0")

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, targetURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// requestScreenshot asks the render API for a full-page PNG and returns the
// URL of the rendered artifact.
func (p *MicrolinkProvider) requestScreenshot(ctx context.Context, targetURL string, profile snapshot.QualityProfile) (string, error) {
	q := url.Values{}
	q.Set("url", targetURL)
	q.Set("screenshot.fullPage", "true")
	q.Set("screenshot.type", "png")
	q.Set("viewport.width", strconv.FormatInt(profile.Width, 10))
	q.Set("viewport.height", strconv.FormatInt(profile.Height, 10))
	q.Set("viewport.deviceScaleFactor", strconv.FormatFloat(profile.Scale, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("render API returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Screenshot struct {
				URL string `json:"url"`
			} `json:"screenshot"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("malformed render API response: %w", err)
	}
	if payload.Data.Screenshot.URL == "" {
		return "", fmt.Errorf("render API response carries no screenshot URL")
	}
	return payload.Data.Screenshot.URL, nil
}

func (p *MicrolinkProvider) downloadScreenshot(ctx context.Context, shotURL, sourceURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shotURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d fetching rendered image", resp.StatusCode)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.layout.Screenshot(), img, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}

	meta, _ := json.Marshal(cacheMeta{
		Timestamp: p.now().Unix(),
		TTL:       int64(p.cacheTTL.Seconds()),
		SourceURL: sourceURL,
	})
	if err := os.WriteFile(p.layout.Meta(), meta, 0o644); err != nil {
		return fmt.Errorf("write screenshot metadata: %w", err)
	}
	return nil
}

// cacheIsValid reports whether a cached screenshot for the same source URL
// exists and is still younger than its TTL.
func (p *MicrolinkProvider) cacheIsValid(sourceURL string) bool {
	if _, err := os.Stat(p.layout.Screenshot()); err != nil {
		return false
	}
	raw, err := os.ReadFile(p.layout.Meta())
	if err != nil {
		return false
	}
	var meta cacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return false
	}
	if meta.SourceURL != sourceURL {
		return false
	}
	age := p.now().Unix() - meta.Timestamp
	return age >= 0 && age < meta.TTL
}
