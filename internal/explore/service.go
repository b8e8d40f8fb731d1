package explore

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"backend-fogtrek/internal/classify"
	"backend-fogtrek/internal/dedup"
	"backend-fogtrek/internal/history"
	"backend-fogtrek/internal/shared/geo"
	"backend-fogtrek/internal/stats"
	"backend-fogtrek/internal/stream"
)

// ErrInvalidFix marks a fix with non-finite or out-of-range coordinates.
// Such fixes are dropped at the boundary, never queued or classified.
var ErrInvalidFix = errors.New("invalid fix")

// Service owns the per-device runtime state (dedup buffer + stats state)
// and wires the core pipeline to persistence and the live feed. The mutex
// provides the single-writer serialization the core requires.
type Service struct {
	engine    *stats.Engine
	store     *history.Store
	snapshots *history.SnapshotCache
	hub       *stream.Hub

	mu      sync.Mutex
	devices map[string]*deviceState
}

type deviceState struct {
	buffer *dedup.Buffer
	state  stats.State
}

func NewService(engine *stats.Engine, store *history.Store, snapshots *history.SnapshotCache, hub *stream.Hub) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		snapshots: snapshots,
		hub:       hub,
		devices:   map[string]*deviceState{},
	}
}

// device returns the runtime state for a device, building it from persisted
// history on first touch.
func (s *Service) device(ctx context.Context, deviceID string) (*deviceState, error) {
	if dev, ok := s.devices[deviceID]; ok {
		return dev, nil
	}

	var fixes []geo.GeoFix
	if s.store != nil {
		loaded, err := s.store.Load(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		fixes = loaded
	}

	dev := &deviceState{
		buffer: dedup.New(),
		state:  s.engine.FromHistory(fixes),
	}
	for _, f := range fixes {
		dev.buffer.Offer(f)
	}
	s.devices[deviceID] = dev
	return dev, nil
}

// OfferFix runs one fix through the pipeline: validate, dedup, increment,
// persist, broadcast. A rejected duplicate still reports current stats.
func (s *Service) OfferFix(ctx context.Context, deviceID string, fix geo.GeoFix) (OfferResult, error) {
	if !fix.Valid() {
		log.Printf("dropping invalid fix for %s: lat=%v lng=%v", deviceID, fix.Lat, fix.Lng)
		return OfferResult{}, ErrInvalidFix
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.device(ctx, deviceID)
	if err != nil {
		return OfferResult{}, err
	}

	if !dev.buffer.Offer(fix) {
		return OfferResult{Accepted: false, Stats: s.summarize(dev.state)}, nil
	}

	verdict := classify.ClassifiedFix{GeoFix: fix, StartsNewSession: true}
	if prev := dev.state.LastProcessed; prev != nil {
		pair := classify.Classify(s.engine.Policy(), []geo.GeoFix{*prev, fix})
		verdict = pair[len(pair)-1]
	}

	dev.state = s.engine.Increment(dev.state, fix)

	if s.store != nil {
		if err := s.store.Append(ctx, deviceID, fix); err != nil {
			return OfferResult{}, err
		}
	}
	s.saveSnapshot(ctx, deviceID, dev.state)
	s.broadcast(deviceID, verdict)

	return OfferResult{
		Accepted:            true,
		ConnectsToPrevious:  verdict.ConnectsToPrevious,
		StartsNewSession:    verdict.StartsNewSession,
		DisconnectionReason: verdict.DisconnectionReason,
		Stats:               s.summarize(dev.state),
	}, nil
}

// Summary returns the device's current stats snapshot.
func (s *Service) Summary(ctx context.Context, deviceID string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.device(ctx, deviceID)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(dev.state), nil
}

// ClassifiedHistory returns the full classified fix sequence for renderers.
func (s *Service) ClassifiedHistory(ctx context.Context, deviceID string) ([]classify.ClassifiedFix, error) {
	var fixes []geo.GeoFix
	if s.store != nil {
		loaded, err := s.store.Load(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		fixes = loaded
	}
	return classify.Classify(s.engine.Policy(), fixes), nil
}

// Recalculate refreshes the revealed-area figures from the full history.
func (s *Service) Recalculate(ctx context.Context, deviceID string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.device(ctx, deviceID)
	if err != nil {
		return Summary{}, err
	}

	var fixes []geo.GeoFix
	if s.store != nil {
		if fixes, err = s.store.Load(ctx, deviceID); err != nil {
			return Summary{}, err
		}
	}
	dev.state = s.engine.RecalculateArea(dev.state, fixes)
	s.saveSnapshot(ctx, deviceID, dev.state)
	return s.summarize(dev.state), nil
}

// Rebuild recomputes the device state from scratch over persisted history,
// replacing the running state entirely.
func (s *Service) Rebuild(ctx context.Context, deviceID string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fixes []geo.GeoFix
	if s.store != nil {
		loaded, err := s.store.Load(ctx, deviceID)
		if err != nil {
			return Summary{}, err
		}
		fixes = loaded
	}

	dev := &deviceState{buffer: dedup.New(), state: s.engine.FromHistory(fixes)}
	for _, f := range fixes {
		dev.buffer.Offer(f)
	}
	s.devices[deviceID] = dev
	s.saveSnapshot(ctx, deviceID, dev.state)
	return s.summarize(dev.state), nil
}

func (s *Service) StartSession(ctx context.Context, deviceID string) (Summary, error) {
	return s.mutate(ctx, deviceID, s.engine.StartSession)
}

func (s *Service) EndSession(ctx context.Context, deviceID string) (Summary, error) {
	return s.mutate(ctx, deviceID, s.engine.EndSession)
}

func (s *Service) Pause(ctx context.Context, deviceID string) (Summary, error) {
	return s.mutate(ctx, deviceID, s.engine.Pause)
}

func (s *Service) Resume(ctx context.Context, deviceID string) (Summary, error) {
	return s.mutate(ctx, deviceID, s.engine.Resume)
}

// ClearHistory wipes the device's persisted fixes and resets runtime state.
func (s *Service) ClearHistory(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Clear(ctx, deviceID); err != nil {
			return err
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, deviceID); err != nil {
			log.Printf("snapshot delete error: %v", err)
		}
	}
	s.devices[deviceID] = &deviceState{buffer: dedup.New(), state: s.engine.FromHistory(nil)}
	return nil
}

// RunAreaRefresher periodically refreshes revealed area for every active
// device until the context is cancelled. Area is a pure function of fix
// count and is deliberately not updated per fix.
func (s *Service) RunAreaRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.deviceIDs() {
				if _, err := s.Recalculate(ctx, id); err != nil {
					log.Printf("area refresh for %s: %v", id, err)
				}
			}
		}
	}
}

func (s *Service) deviceIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) mutate(ctx context.Context, deviceID string, op func(stats.State) stats.State) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.device(ctx, deviceID)
	if err != nil {
		return Summary{}, err
	}
	dev.state = op(dev.state)
	s.saveSnapshot(ctx, deviceID, dev.state)
	return s.summarize(dev.state), nil
}

func (s *Service) saveSnapshot(ctx context.Context, deviceID string, st stats.State) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, deviceID, st); err != nil {
		log.Printf("snapshot save error: %v", err)
	}
}

func (s *Service) broadcast(deviceID string, fix classify.ClassifiedFix) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(FeedEvent{DeviceID: deviceID, Fix: fix})
	s.hub.Broadcast(deviceID, payload)
}

func (s *Service) summarize(st stats.State) Summary {
	return Summary{
		Total:          st.Total,
		Session:        st.Session,
		CurrentSession: st.CurrentSession,
		Formatted: FormattedStats{
			TotalDistance:   stats.FormatDistance(st.Total.DistanceM),
			TotalArea:       stats.FormatArea(st.Total.AreaM2),
			TotalActiveTime: stats.FormatDuration(st.Total.ActiveTimeMs),
			SessionDistance: stats.FormatDistance(st.Session.DistanceM),
			SessionArea:     stats.FormatArea(st.Session.AreaM2),
			SessionTimer:    stats.FormatTimer(st.Session.ActiveTimeMs),
		},
	}
}
