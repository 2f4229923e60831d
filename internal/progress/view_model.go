package progress

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/veranemoloko/vidbatch/internal/domain"
)

const bytesPerMB = 1024 * 1024

// View is a point-in-time copy of the ViewModel's values.
type View struct {
	Percent     float64
	HasPercent  bool
	Downloaded  float64
	Total       float64
	Videos      string
	Error       string
	DownloadURL string
}

// ViewModel holds the last applied progress values for display.
// It is written by the consumer's drain loop and read by renderers.
type ViewModel struct {
	mu   sync.RWMutex
	view View
}

// NewViewModel returns an empty ViewModel.
func NewViewModel() *ViewModel {
	return &ViewModel{}
}

// Reset blanks every value.
func (m *ViewModel) Reset() {
	m.mu.Lock()
	m.view = View{}
	m.mu.Unlock()
}

// Apply merges the numeric fields and the video list of a snapshot.
// Absent fields keep their last-known value.
func (m *ViewModel) Apply(s domain.ProgressSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := s.Progress; p != nil {
		if p.Percent != nil {
			m.view.Percent = *p.Percent
			m.view.HasPercent = true
		}
		if p.Downloaded != nil {
			m.view.Downloaded = *p.Downloaded
		}
		if p.Total != nil {
			m.view.Total = *p.Total
		}
	}

	if len(s.Videos) > 0 {
		m.view.Videos = FormatVideos(s.Videos)
	}
}

// SetError records a user visible error message.
func (m *ViewModel) SetError(msg string) {
	m.mu.Lock()
	m.view.Error = msg
	m.mu.Unlock()
}

// SetDownloadURL records the artifact location handed off on completion.
func (m *ViewModel) SetDownloadURL(u string) {
	m.mu.Lock()
	m.view.DownloadURL = u
	m.mu.Unlock()
}

// View returns a copy of the current values.
func (m *ViewModel) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// SizeText renders the byte counts as megabytes, e.g. "1.50 MB / 3.00 MB".
func (v View) SizeText() string {
	return fmt.Sprintf("%.2f MB / %.2f MB",
		v.Downloaded/bytesPerMB,
		v.Total/bytesPerMB,
	)
}

// ProgressText renders "<percent>% (<size>)" or an empty string before the
// first percent value arrived.
func (v View) ProgressText() string {
	if !v.HasPercent {
		return ""
	}
	return fmt.Sprintf("%s%% (%s)", strconv.FormatFloat(v.Percent, 'f', -1, 64), v.SizeText())
}

// FormatVideos joins the video list into one display string.
func FormatVideos(videos []domain.VideoMeta) string {
	titles := make([]string, 0, len(videos))
	for _, v := range videos {
		if v.Uploader != "" {
			titles = append(titles, fmt.Sprintf("%s (%s)", v.Title, v.Uploader))
			continue
		}
		titles = append(titles, v.Title)
	}
	return strings.Join(titles, ", ")
}
