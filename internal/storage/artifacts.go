package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/pkg/zip"
)

// ArtifactWriter persists the artifacts of a completed job: decoded panel
// images, the panel script and the downloaded video.
type ArtifactWriter struct {
	store      *FileStore
	httpClient *http.Client
	logger     *infra.Logger
}

// SavedArtifacts lists the storage keys written for one job.
type SavedArtifacts struct {
	Images []string
	Panels string
	Video  string
}

// NewArtifactWriter builds a writer. downloadTimeout bounds the video
// download; zero means ten minutes.
func NewArtifactWriter(store *FileStore, downloadTimeout time.Duration, logger *infra.Logger) *ArtifactWriter {
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Minute
	}
	return &ArtifactWriter{
		store:      store,
		httpClient: &http.Client{Timeout: downloadTimeout},
		logger:     infra.Component(logger, "artifacts"),
	}
}

// WithHTTPClient replaces the client used for video downloads.
func (w *ArtifactWriter) WithHTTPClient(client *http.Client) *ArtifactWriter {
	if client != nil {
		w.httpClient = client
	}
	return w
}

// Save writes every artifact present in payload. Images that fail to decode
// are skipped; a failed video download is reported but does not undo the
// files already written.
func (w *ArtifactWriter) Save(ctx context.Context, jobID string, payload *domain.ResultPayload) (*SavedArtifacts, error) {
	if w == nil || w.store == nil {
		return nil, errors.New("storage: no artifact store configured")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("storage: job id is required")
	}
	saved := &SavedArtifacts{}
	if payload.Empty() {
		return saved, nil
	}

	var errs []error
	for idx, encoded := range payload.Images {
		data, err := DecodeImage(encoded)
		if err != nil {
			w.logger.Warn().Err(err).Str("job_id", jobID).Int("index", idx).Msg("artifacts: skip undecodable image")
			continue
		}
		key := artifactKey(jobID, fmt.Sprintf("panel-%02d", idx+1), http.DetectContentType(data))
		stored, err := w.store.Write(ctx, key, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		saved.Images = append(saved.Images, stored)
	}

	if len(payload.Panels) > 0 {
		stored, err := w.store.Write(ctx, artifactKey(jobID, "panels", "text/plain"), []byte(PanelScript(payload.Panels)))
		if err != nil {
			errs = append(errs, err)
		} else {
			saved.Panels = stored
		}
	}

	if strings.TrimSpace(payload.URL) != "" {
		stored, err := w.downloadVideo(ctx, jobID, payload.URL)
		if err != nil {
			errs = append(errs, err)
		} else {
			saved.Video = stored
		}
	}

	w.logger.Info().
		Str("job_id", jobID).
		Int("images", len(saved.Images)).
		Bool("panels", saved.Panels != "").
		Bool("video", saved.Video != "").
		Msg("artifacts: saved")
	return saved, errors.Join(errs...)
}

func (w *ArtifactWriter) downloadVideo(ctx context.Context, jobID, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("storage: invalid video url: %s", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || extensionForMIME(mime) == "" {
		mime = "video/mp4"
	}
	f, key, err := w.store.Create(artifactKey(jobID, "video", mime))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = w.store.Remove(key)
		return "", fmt.Errorf("storage: write video: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close video: %w", err)
	}
	return key, nil
}

// Bundle packs the in-payload artifacts (images and panel script) into a zip
// archive. The video is referenced by a link file since it lives remotely.
func Bundle(payload *domain.ResultPayload) ([]byte, error) {
	if payload.Empty() {
		return nil, errors.New("storage: nothing to bundle")
	}
	var assets []zip.Asset
	for idx, encoded := range payload.Images {
		data, err := DecodeImage(encoded)
		if err != nil {
			continue
		}
		mime := http.DetectContentType(data)
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("panel-%02d%s", idx+1, fallbackExt(mime, ".bin")),
			MIME:     mime,
			Data:     data,
		})
	}
	if len(payload.Panels) > 0 {
		assets = append(assets, zip.Asset{Filename: "panels.txt", MIME: "text/plain", Data: []byte(PanelScript(payload.Panels))})
	}
	if u := strings.TrimSpace(payload.URL); u != "" {
		assets = append(assets, zip.Asset{Filename: "video.url", MIME: "text/plain", Data: []byte("[InternetShortcut]\nURL=" + u + "\n")})
	}
	return zip.ArchiveAssets(assets)
}

// DecodeImage decodes a base64 image, accepting an optional data-URL prefix.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if _, rest, ok := strings.Cut(encoded, ","); ok {
			encoded = rest
		}
	}
	if encoded == "" {
		return nil, errors.New("storage: empty image")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: decode image: %w", err)
	}
	return data, nil
}

// PanelScript renders panel lines as a numbered script.
func PanelScript(panels []string) string {
	var b strings.Builder
	for idx, line := range panels {
		fmt.Fprintf(&b, "%d. %s\n", idx+1, strings.TrimSpace(line))
	}
	return b.String()
}

func artifactKey(jobID, name, mime string) string {
	return path.Join("generated", jobID, name+fallbackExt(mime, ".bin"))
}

func fallbackExt(mime, fallback string) string {
	if ext := extensionForMIME(mime); ext != "" {
		return ext
	}
	return fallback
}

func extensionForMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}
