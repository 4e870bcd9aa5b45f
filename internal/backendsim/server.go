package backendsim

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
)

// Stage is one step of the simulated pipeline and the progress reported
// once it finishes.
type Stage struct {
	Name     string
	Progress int
}

// Stages lists the pipeline in order.
var Stages = []Stage{
	{Name: "script", Progress: 25},
	{Name: "images", Progress: 50},
	{Name: "narration", Progress: 75},
	{Name: "video", Progress: 100},
}

const (
	failingStage  = "images"
	failureReason = "image generation failed"
	maxPanels     = 12
)

// pixelPNG is a transparent 1x1 PNG, base64 encoded.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// placeholderVideo is an ftyp box, enough for players to identify an mp4.
var placeholderVideo = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

var (
	failWord       = regexp.MustCompile(`(?i)\bfail\b`)
	sentenceBreaks = regexp.MustCompile(`[.!?。！？]+`)
)

// Options configures a Server.
type Options struct {
	StageDuration time.Duration
	// PublicURL prefixes video links; when empty the request host is used.
	PublicURL string
	Logger    *infra.Logger
	Now       func() time.Time
}

// Server simulates the generation backend with an in-memory task table.
// Task state is derived from the time elapsed since submission.
type Server struct {
	stage     time.Duration
	publicURL string
	logger    *infra.Logger
	now       func() time.Time

	mu    sync.RWMutex
	tasks map[string]*task
}

type task struct {
	id        string
	novel     string
	createdAt time.Time
}

type statusResponse struct {
	Status   domain.RemoteStatus `json:"status"`
	Progress int                 `json:"progress"`
	Stage    string              `json:"stage,omitempty"`
	Result   string              `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(opts Options) *Server {
	stage := opts.StageDuration
	if stage <= 0 {
		stage = 3 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		stage:     stage,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		logger:    infra.Component(opts.Logger, "backendsim"),
		now:       now,
		tasks:     make(map[string]*task),
	}
}

// Handler exposes the generation API under /api/v1 and the rendered
// videos under /videos.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/generation-jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/{id}/status", s.jobStatus)
	})
	r.Get("/videos/{file}", s.video)
	return r
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NovelPrompt string `json:"novel_prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.NovelPrompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: "novel_prompt is required"})
		return
	}
	t := &task{id: uuid.NewString(), novel: strings.TrimSpace(req.NovelPrompt), createdAt: s.now()}
	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()

	s.logger.Info().Str("job_id", t.id).Int("novel_len", len(t.novel)).Msg("backendsim: task accepted")
	writeJSON(w, http.StatusOK, map[string]string{"task_id": t.id})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.statusOf(t, s.baseURL(r)))
}

func (s *Server) video(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(chi.URLParam(r, "file"), ".mp4")
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok || s.statusOf(t, "").Status != domain.RemoteStatusCompleted {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholderVideo)
}

// statusOf derives the task status from the number of finished stages.
func (s *Server) statusOf(t *task, baseURL string) statusResponse {
	done := int(s.now().Sub(t.createdAt) / s.stage)
	failing := failWord.MatchString(t.novel)

	for i := 0; i < done && i < len(Stages); i++ {
		if failing && Stages[i].Name == failingStage {
			progress := 0
			if i > 0 {
				progress = Stages[i-1].Progress
			}
			return statusResponse{Status: domain.RemoteStatusFailed, Progress: progress, Stage: Stages[i].Name, Error: failureReason}
		}
	}

	switch {
	case done <= 0:
		return statusResponse{Status: domain.RemoteStatusPending, Progress: 0, Stage: Stages[0].Name}
	case done < len(Stages):
		return statusResponse{Status: domain.RemoteStatusProcessing, Progress: Stages[done-1].Progress, Stage: Stages[done].Name}
	}

	result, _ := json.Marshal(s.resultFor(t, baseURL))
	return statusResponse{Status: domain.RemoteStatusCompleted, Progress: 100, Result: string(result)}
}

func (s *Server) resultFor(t *task, baseURL string) domain.ResultPayload {
	panels := Panels(t.novel)
	images := make([]string, len(panels))
	for i := range images {
		images[i] = pixelPNG
	}
	return domain.ResultPayload{
		Images: images,
		Panels: panels,
		URL:    baseURL + "/videos/" + t.id + ".mp4",
	}
}

func (s *Server) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// Panels splits the novel into one panel per sentence.
func Panels(novel string) []string {
	var panels []string
	for _, part := range sentenceBreaks.Split(novel, -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		panels = append(panels, part)
		if len(panels) == maxPanels {
			break
		}
	}
	if len(panels) == 0 {
		panels = []string{strings.TrimSpace(novel)}
	}
	return panels
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
