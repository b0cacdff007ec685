package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
)

// In-memory collaborator doubles for the pipeline. They mirror the store
// contracts: object writes overwrite by key, result saves upsert by
// (video_name, frame_time), queries return ascending frame time.

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (s *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *fakeObjectStore) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data, "application/json")
}

func (s *fakeObjectStore) DownloadFile(_ context.Context, key string, destPath string) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("object %s not found", key)
	}
	return os.WriteFile(destPath, data, 0644)
}

func (s *fakeObjectStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeResultStore struct {
	mu        sync.Mutex
	records   map[string]map[string]entity.FrameResult
	saves     int
	afterSave func()
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{records: map[string]map[string]entity.FrameResult{}}
}

func (s *fakeResultStore) Save(_ context.Context, result *entity.FrameResult) error {
	s.mu.Lock()
	byVideo, ok := s.records[result.VideoName]
	if !ok {
		byVideo = map[string]entity.FrameResult{}
		s.records[result.VideoName] = byVideo
	}
	byVideo[result.FrameTime] = *result
	s.saves++
	hook := s.afterSave
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeResultStore) Get(_ context.Context, videoName, frameTime string) (*entity.FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.records[videoName][frameTime]
	if !ok {
		return nil, fmt.Errorf("frame result %s/%s not found", videoName, frameTime)
	}
	return &result, nil
}

func (s *fakeResultStore) QueryByVideo(_ context.Context, videoName string) ([]entity.FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []entity.FrameResult
	for _, result := range s.records[videoName] {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].FrameTime < results[j].FrameTime })
	return results, nil
}

func (s *fakeResultStore) drop(videoName, frameTime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[videoName], frameTime)
}

func (s *fakeResultStore) count(videoName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[videoName])
}

type fakeRecognizer struct {
	mu         sync.Mutex
	detections map[string][]entity.Detection
	failWith   map[string]error
	calls      int
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{detections: map[string][]entity.Detection{}, failWith: map[string]error{}}
}

func (r *fakeRecognizer) RecognizeCelebrities(_ context.Context, _ string, key string) ([]entity.Detection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.failWith[key]; ok {
		return nil, err
	}
	return r.detections[key], nil
}

// fakeExtractor fabricates frameCount one-second samples, persisting raw
// frames and the manifest exactly like the real extractor does.
type fakeExtractor struct {
	store      port.ObjectStore
	frameCount int
	calls      int
	err        error
}

func (e *fakeExtractor) ExtractFrames(ctx context.Context, _ string, run *entity.VideoRun) (*port.FrameExtractionResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	items := make([]entity.FrameWorkItem, 0, e.frameCount)
	for t := 0; t < e.frameCount; t++ {
		key := path.Join(run.OutputPrefix, "raw", entity.FrameTimeKey(t)+".jpg")
		if err := e.store.Put(ctx, key, []byte("jpeg-"+entity.FrameTimeKey(t)), "image/jpeg"); err != nil {
			return nil, err
		}
		items = append(items, entity.FrameWorkItem{VideoName: run.VideoName, FrameTime: t, RawFrameKey: key})
	}

	manifestKey := path.Join(run.OutputPrefix, "maps", "00_distributed_map.json")
	if err := e.store.PutJSON(ctx, manifestKey, entity.WorkManifest{VideoName: run.VideoName, Items: items}); err != nil {
		return nil, err
	}
	return &port.FrameExtractionResult{ManifestKey: manifestKey, FrameCount: len(items), Items: items}, nil
}

type passthroughAnnotator struct{}

func (passthroughAnnotator) Annotate(image []byte, _ []entity.Detection) ([]byte, error) {
	return image, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]entity.VideoRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]entity.VideoRun{}}
}

func (r *fakeRunRepo) Create(_ context.Context, run *entity.VideoRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.CorrelationID] = *run
	return nil
}

func (r *fakeRunRepo) Update(_ context.Context, run *entity.VideoRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.CorrelationID] = *run
	return nil
}

func (r *fakeRunRepo) FindByCorrelationID(_ context.Context, correlationID string) (*entity.VideoRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[correlationID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", correlationID)
	}
	return &run, nil
}

func (r *fakeRunRepo) FindLatestByInputKey(_ context.Context, bucket, inputKey string) (*entity.VideoRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.VideoRun
	for _, run := range r.runs {
		if run.Bucket != bucket || run.InputKey != inputKey {
			continue
		}
		if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
			copied := run
			latest = &copied
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no run for %s/%s", bucket, inputKey)
	}
	return latest, nil
}

func (r *fakeRunRepo) get(correlationID string) (entity.VideoRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[correlationID]
	return run, ok
}

type fakeStatusPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakeStatusPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, append([]byte(nil), msg...))
	return nil
}

func (p *fakeStatusPublisher) last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return nil
	}
	return p.messages[len(p.messages)-1]
}

type fakeDLQPublisher struct {
	mu      sync.Mutex
	reasons []string
}

func (p *fakeDLQPublisher) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasons = append(p.reasons, reason)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, _, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

var testLogger = zap.NewNop()
