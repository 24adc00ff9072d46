package detectionService

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"EcosnapAI/internal/api/detection"
	detectionRepository "EcosnapAI/internal/api/detection/repository"
	"EcosnapAI/internal/entity"
	"EcosnapAI/pkg/classifier"
	redisPkg "EcosnapAI/pkg/redis"
	"EcosnapAI/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type fakeExtractor struct {
	block chan struct{}
	err   error
}

func (f *fakeExtractor) Features(input []float32) ([]float32, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}

	embedding := make([]float32, classifier.EmbeddingSize)
	for i := range embedding {
		embedding[i] = input[i%len(input)]
	}
	return embedding, nil
}

func (f *fakeExtractor) Close() error { return nil }

type memStore struct {
	mu         sync.Mutex
	detections []entity.WasteDetection
	runs       map[string]entity.TrainingRun
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]entity.TrainingRun)}
}

func (s *memStore) detectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detections)
}

func (s *memStore) run(id string) (entity.TrainingRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

type fakeRepo struct {
	store     *memStore
	createErr error
}

func (f *fakeRepo) NewClient(tx bool) (detectionRepository.Client, error) {
	return detectionRepository.Client{
		Detection: &fakeDetectionStore{store: f.store, createErr: f.createErr},
		Training:  &fakeTrainingStore{f.store},
		Commit:    func() error { return nil },
		Rollback:  func() error { return nil },
	}, nil
}

type fakeDetectionStore struct {
	store     *memStore
	createErr error
}

func (f *fakeDetectionStore) CreateDetection(c context.Context, d entity.WasteDetection) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.detections = append(f.store.detections, d)
	return nil
}

func (f *fakeDetectionStore) GetDetections(c context.Context, limit int) ([]entity.WasteDetection, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if limit > len(f.store.detections) {
		limit = len(f.store.detections)
	}
	return append([]entity.WasteDetection(nil), f.store.detections[:limit]...), nil
}

type fakeTrainingStore struct{ store *memStore }

func (f *fakeTrainingStore) CreateTrainingRun(c context.Context, run entity.TrainingRun) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.runs[run.ID] = run
	return nil
}

func (f *fakeTrainingStore) UpdateTrainingRun(c context.Context, run entity.TrainingRun) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.runs[run.ID] = run
	return nil
}

func (f *fakeTrainingStore) GetTrainingRunByID(c context.Context, id string) (entity.TrainingRun, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	run, ok := f.store.runs[id]
	if !ok {
		return entity.TrainingRun{}, detection.ErrTrainingRunNotFound
	}
	return run, nil
}

func (f *fakeTrainingStore) GetTrainingRuns(c context.Context) ([]entity.TrainingRun, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	runs := make([]entity.TrainingRun, 0, len(f.store.runs))
	for _, run := range f.store.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte)}
}

func (f *fakeCache) SetPrediction(ctx context.Context, imageHash string, payload []byte, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[imageHash] = payload
	return nil
}

func (f *fakeCache) GetPrediction(ctx context.Context, imageHash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.items[imageHash]
	if !ok {
		return nil, redisPkg.ErrCacheMiss
	}
	return payload, nil
}

type fakeS3 struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (f *fakeS3) UploadBytes(key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	location := "https://bucket.s3.amazonaws.com/" + key
	f.uploads = append(f.uploads, location)
	return location, nil
}

func (f *fakeS3) PresignUrl(fileUrl string) (string, error) {
	return fileUrl + "?signed", nil
}

func (f *fakeS3) DeleteFile(fileUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, fileUrl)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: 59, G: 130, B: 246, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, extractor classifier.FeatureExtractor, deps Deps) (IDetectionService, *memStore) {
	t.Helper()

	store := newMemStore()
	headPath := filepath.Join(t.TempDir(), "head.json")
	cls := classifier.New(testLogger(), extractor, headPath)
	trainer := classifier.NewTrainer(testLogger(), extractor)

	svc := NewDetectionService(testLogger(), &fakeRepo{store: store}, cls, trainer, utils.New(), headPath, deps)
	return svc, store
}

func TestDetectFromBytesInvalidImage(t *testing.T) {
	svc, store := newTestService(t, &fakeExtractor{}, Deps{})

	_, err := svc.DetectFromBytes(context.Background(), []byte("not an image"), entity.SourceUpload, "")
	if !errors.Is(err, detection.ErrInvalidImage) {
		t.Fatalf("error = %v, want ErrInvalidImage", err)
	}
	if store.detectionCount() != 0 {
		t.Fatal("invalid image was persisted")
	}
}

func TestDetectFromBytesEmptyPayload(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, Deps{})

	if _, err := svc.DetectFromBytes(context.Background(), nil, entity.SourceUpload, ""); !errors.Is(err, detection.ErrNoImageProvided) {
		t.Fatalf("error = %v, want ErrNoImageProvided", err)
	}
}

func TestDetectFromBytesModelNotLoaded(t *testing.T) {
	svc, _ := newTestService(t, nil, Deps{})

	_, err := svc.DetectFromBytes(context.Background(), testJPEG(t), entity.SourceUpload, "")
	if !errors.Is(err, detection.ErrModelNotLoaded) {
		t.Fatalf("error = %v, want ErrModelNotLoaded", err)
	}
}

func TestDetectFromBytesPersistsDetection(t *testing.T) {
	svc, store := newTestService(t, &fakeExtractor{}, Deps{})

	result, err := svc.DetectFromBytes(context.Background(), testJPEG(t), entity.SourceUpload, "")
	if err != nil {
		t.Fatalf("DetectFromBytes: %v", err)
	}

	if result.WasteType == "" || result.RiskLevel == "" {
		t.Fatalf("incomplete result: %+v", result)
	}
	if len(result.AllPredictions) != len(classifier.ClassNames) {
		t.Fatalf("AllPredictions has %d entries", len(result.AllPredictions))
	}

	if store.detectionCount() != 1 {
		t.Fatalf("persisted %d detections, want 1", store.detectionCount())
	}

	detections, err := svc.GetDetections(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetDetections: %v", err)
	}
	if len(detections) != 1 || detections[0].Source != entity.SourceUpload {
		t.Fatalf("unexpected detections: %+v", detections)
	}
	if detections[0].ID == "" {
		t.Fatal("detection persisted without ID")
	}
}

func TestDetectFromBytesUsesCache(t *testing.T) {
	cache := newFakeCache()
	svc, store := newTestService(t, &fakeExtractor{}, Deps{Redis: cache})

	payload := testJPEG(t)

	first, err := svc.DetectFromBytes(context.Background(), payload, entity.SourceUpload, "")
	if err != nil {
		t.Fatalf("first DetectFromBytes: %v", err)
	}

	second, err := svc.DetectFromBytes(context.Background(), payload, entity.SourceUpload, "")
	if err != nil {
		t.Fatalf("second DetectFromBytes: %v", err)
	}

	if first.WasteType != second.WasteType || first.Confidence != second.Confidence {
		t.Fatalf("cached result diverges: %+v vs %+v", first, second)
	}

	// The cache hit skips inference and persistence.
	if store.detectionCount() != 1 {
		t.Fatalf("persisted %d detections, want 1", store.detectionCount())
	}
}

func TestGetDetectionsPresignsImageRefs(t *testing.T) {
	bucket := &fakeS3{}
	svc, store := newTestService(t, &fakeExtractor{}, Deps{S3: bucket})

	if _, err := svc.DetectFromBytes(context.Background(), testJPEG(t), entity.SourceUpload, ""); err != nil {
		t.Fatalf("DetectFromBytes: %v", err)
	}
	if len(bucket.uploads) != 1 {
		t.Fatalf("uploaded %d images, want 1", len(bucket.uploads))
	}
	if store.detectionCount() != 1 {
		t.Fatalf("persisted %d detections, want 1", store.detectionCount())
	}

	detections, err := svc.GetDetections(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetDetections: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(detections))
	}
	if !strings.HasSuffix(detections[0].ImageRef, "?signed") {
		t.Fatalf("image ref was not presigned: %q", detections[0].ImageRef)
	}
}

func TestPersistFailureRemovesUploadedImage(t *testing.T) {
	bucket := &fakeS3{}
	store := newMemStore()
	headPath := filepath.Join(t.TempDir(), "head.json")
	cls := classifier.New(testLogger(), &fakeExtractor{}, headPath)
	trainer := classifier.NewTrainer(testLogger(), &fakeExtractor{})
	repo := &fakeRepo{store: store, createErr: errors.New("database down")}

	svc := NewDetectionService(testLogger(), repo, cls, trainer, utils.New(), headPath, Deps{S3: bucket})

	// The prediction itself still succeeds, only the audit row is lost.
	if _, err := svc.DetectFromBytes(context.Background(), testJPEG(t), entity.SourceUpload, ""); err != nil {
		t.Fatalf("DetectFromBytes: %v", err)
	}

	if store.detectionCount() != 0 {
		t.Fatalf("persisted %d detections, want 0", store.detectionCount())
	}
	if len(bucket.uploads) != 1 {
		t.Fatalf("uploaded %d images, want 1", len(bucket.uploads))
	}
	if len(bucket.deletes) != 1 || bucket.deletes[0] != bucket.uploads[0] {
		t.Fatalf("orphaned upload was not removed: deletes = %v", bucket.deletes)
	}
}

func TestDetectFromURLFetchFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, Deps{})

	_, err := svc.DetectFromURL(context.Background(), "ftp://example.com/image.jpg")
	if !errors.Is(err, detection.ErrImageFetchFailed) {
		t.Fatalf("error = %v, want ErrImageFetchFailed", err)
	}
}

func TestModelInfo(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, Deps{})

	info := svc.ModelInfo()
	if !info.ModelLoaded {
		t.Fatal("model reported as not loaded")
	}
	if info.ConfidenceThreshold != classifier.ConfidenceThreshold {
		t.Fatalf("threshold = %v", info.ConfidenceThreshold)
	}
	if len(info.ClassNames) != len(classifier.ClassNames) {
		t.Fatalf("class names = %v", info.ClassNames)
	}
	want := []int{1, classifier.Channels, classifier.ImageSize, classifier.ImageSize}
	for i, v := range want {
		if info.InputShape[i] != v {
			t.Fatalf("input shape = %v, want %v", info.InputShape, want)
		}
	}
}

func TestTriggerTrainingConflict(t *testing.T) {
	block := make(chan struct{})
	svc, store := newTestService(t, &fakeExtractor{block: block, err: errors.New("backbone gone")}, Deps{})

	req := detection.TrainRequest{Synthetic: true, Epochs: 1}

	run, err := svc.TriggerTraining(context.Background(), req, "api")
	if err != nil {
		t.Fatalf("TriggerTraining: %v", err)
	}
	if run.Status != entity.TrainingStatusRunning {
		t.Fatalf("run status = %q", run.Status)
	}

	if _, err := svc.TriggerTraining(context.Background(), req, "api"); !errors.Is(err, detection.ErrTrainingInProgress) {
		t.Fatalf("second trigger error = %v, want ErrTrainingInProgress", err)
	}

	close(block)

	deadline := time.After(5 * time.Second)
	for {
		if stored, ok := store.run(run.ID); ok && stored.Status == entity.TrainingStatusFailed {
			if stored.Error == "" {
				t.Fatal("failed run has no error message")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("training run never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The slot frees up once the run finishes.
	waitErr := errors.New("still busy")
	for i := 0; i < 100 && waitErr != nil; i++ {
		_, waitErr = svc.TriggerTraining(context.Background(), req, "api")
		if errors.Is(waitErr, detection.ErrTrainingInProgress) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		waitErr = nil
	}
	if waitErr != nil {
		t.Fatal("training slot never freed")
	}
}

func TestGetTrainingRunNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, Deps{})

	if _, err := svc.GetTrainingRun(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, detection.ErrTrainingRunNotFound) {
		t.Fatalf("error = %v, want ErrTrainingRunNotFound", err)
	}
}
