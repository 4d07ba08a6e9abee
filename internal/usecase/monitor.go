package usecase

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// Photo capture intervals and video chunk length supported by the capture
// policy. Automatic chunked video recording is out of scope; chunks arrive
// through the manual capture path only.
const (
	PhotoIntervalShort = 30 * time.Second
	PhotoIntervalLong  = 60 * time.Second
	VideoChunkLength   = 5 * time.Minute
)

var allowedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var allowedVideoMIMEs = map[string]bool{
	"video/webm": true,
	"video/mp4":  true,
}

// MonitoringService ingests camera/screen captures for a session. Ingest
// failures never affect interview state; callers log and retry on the next
// capture tick.
type MonitoringService struct {
	Snapshots domain.SnapshotRepository
	MaxSizeMB int64

	mu      *sync.Mutex
	stopped map[string]time.Time
}

// NewMonitoringService constructs a MonitoringService.
func NewMonitoringService(snapshots domain.SnapshotRepository, maxSizeMB int64) MonitoringService {
	return MonitoringService{
		Snapshots: snapshots,
		MaxSizeMB: maxSizeMB,
		mu:        &sync.Mutex{},
		stopped:   map[string]time.Time{},
	}
}

// Stop records that capture for a session has been stopped. Stored captures
// are kept; only further ingest is refused.
func (m MonitoringService) Stop(applicationID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := time.Now().UTC()
	m.stopped[applicationID] = at
	return at
}

// Resume re-enables capture ingest for a session.
func (m MonitoringService) Resume(applicationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stopped, applicationID)
}

// StoppedAt reports the stop time for a session, if capture was stopped.
func (m MonitoringService) StoppedAt(applicationID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.stopped[applicationID]
	return at, ok
}

// ValidatePhotoInterval checks a client-requested capture interval against
// the supported policy.
func ValidatePhotoInterval(d time.Duration) error {
	if d != PhotoIntervalShort && d != PhotoIntervalLong {
		return fmt.Errorf("%w: photo interval must be 30s or 60s", domain.ErrInvalidArgument)
	}
	return nil
}

// StoreImage decodes a base64 still frame, sniffs its content type, and
// persists it, returning the storage key.
func (m MonitoringService) StoreImage(ctx domain.Context, applicationID, kind, b64 string) (string, error) {
	if kind != domain.MonitoringCamera && kind != domain.MonitoringScreen {
		return "", fmt.Errorf("%w: unknown capture kind %q", domain.ErrInvalidArgument, kind)
	}
	data, err := decodeBase64Payload(b64)
	if err != nil {
		return "", err
	}
	if err := m.checkSize(data); err != nil {
		return "", err
	}
	mt := mimetype.Detect(data)
	if !allowedImageMIMEs[mt.String()] {
		return "", fmt.Errorf("%w: unsupported image type %s", domain.ErrInvalidArgument, mt.String())
	}
	return m.store(ctx, applicationID, kind, mt.String(), data)
}

// StoreVideoChunk persists one fixed-duration recording chunk.
func (m MonitoringService) StoreVideoChunk(ctx domain.Context, applicationID, kind string, data []byte) (string, error) {
	if kind != domain.MonitoringCamera && kind != domain.MonitoringScreen {
		return "", fmt.Errorf("%w: unknown capture kind %q", domain.ErrInvalidArgument, kind)
	}
	if err := m.checkSize(data); err != nil {
		return "", err
	}
	mt := mimetype.Detect(data)
	if !allowedVideoMIMEs[mt.String()] {
		return "", fmt.Errorf("%w: unsupported video type %s", domain.ErrInvalidArgument, mt.String())
	}
	return m.store(ctx, applicationID, kind, mt.String(), data)
}

// Stats returns stored capture counts per kind for an application.
func (m MonitoringService) Stats(ctx domain.Context, applicationID string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, kind := range []string{domain.MonitoringCamera, domain.MonitoringScreen} {
		n, err := m.Snapshots.CountByKind(ctx, applicationID, kind)
		if err != nil {
			return nil, fmt.Errorf("op=monitor.stats: %w", err)
		}
		out[kind] = n
	}
	return out, nil
}

func (m MonitoringService) store(ctx domain.Context, applicationID, kind, mime string, data []byte) (string, error) {
	if _, stopped := m.StoppedAt(applicationID); stopped {
		return "", fmt.Errorf("%w: monitoring stopped for session", domain.ErrInvalidState)
	}
	snap := domain.Snapshot{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Kind:          kind,
		MIME:          mime,
		Data:          data,
		Size:          int64(len(data)),
		CreatedAt:     time.Now().UTC(),
	}
	key, err := m.Snapshots.Create(ctx, snap)
	if err != nil {
		slog.Error("snapshot store failed",
			slog.String("application_id", applicationID),
			slog.String("kind", kind),
			slog.Any("error", err))
		return "", fmt.Errorf("op=monitor.store: %w", err)
	}
	return key, nil
}

func (m MonitoringService) checkSize(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty capture payload", domain.ErrInvalidArgument)
	}
	if max := m.MaxSizeMB * 1024 * 1024; max > 0 && int64(len(data)) > max {
		return fmt.Errorf("%w: capture exceeds %dMB", domain.ErrInvalidArgument, m.MaxSizeMB)
	}
	return nil
}

// decodeBase64Payload accepts both raw base64 and data-URL payloads
// ("data:image/png;base64,....").
func decodeBase64Payload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload", domain.ErrInvalidArgument)
	}
	return data, nil
}
