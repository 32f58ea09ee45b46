package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/recognition"
	"github.com/hitoshi/plantswap/internal/storage"
)

// --- モック定義 ---

type mockRecognitionService struct {
	analyzeFn func(ctx context.Context, images []recognition.Image, location *model.Location) ([]recognition.Match, error)
}

func (m *mockRecognitionService) Analyze(ctx context.Context, images []recognition.Image, location *model.Location) ([]recognition.Match, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, images, location)
	}
	return nil, nil
}

var _ RecognitionServiceInterface = (*mockRecognitionService)(nil)

type mockRecognitionMetrics struct {
	requestCount int
	latencies    []time.Duration
}

func (m *mockRecognitionMetrics) RecordRecognitionRequest() { m.requestCount++ }

func (m *mockRecognitionMetrics) RecordRecognitionLatency(d time.Duration) {
	m.latencies = append(m.latencies, d)
}

var _ RecognitionMetricsRecorder = (*mockRecognitionMetrics)(nil)

func recognizeRequestBody(t *testing.T, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("リクエストのエンコードに失敗: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/plants/recognize", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return authedRequest(req, "user-1")
}

func TestPlantHandler_Recognize_Success(t *testing.T) {
	collector := &mockRecognitionMetrics{}
	images := &mockImageStorage{
		fetchFn: func(_ context.Context, key string) (*storage.Object, error) {
			return &storage.Object{Data: []byte("bytes-of-" + key), ContentType: "image/jpeg"}, nil
		},
	}
	plant := &model.Plant{
		ID:        "plant-1",
		PowoID:    "urn:lsid:ipni.org:names:30000959-2",
		HumanName: "スイスチーズプラント",
		Species:   "Monstera deliciosa",
	}
	recognizer := &mockRecognitionService{
		analyzeFn: func(_ context.Context, imgs []recognition.Image, location *model.Location) ([]recognition.Match, error) {
			if len(imgs) != 2 {
				t.Fatalf("画像数 = %d, want 2", len(imgs))
			}
			if imgs[0].Filename != "key-1" || string(imgs[0].Data) != "bytes-of-key-1" {
				t.Errorf("1枚目の画像が不正: %+v", imgs[0])
			}
			if location == nil || location.Lat != 52.5 {
				t.Errorf("location = %+v", location)
			}
			return []recognition.Match{{Plant: plant, Score: 0.93}}, nil
		},
	}
	h := NewPlantHandler(recognizer, images, collector, newTestLogger())

	req := recognizeRequestBody(t, map[string]any{
		"images":   []string{"key-1", "key-2"},
		"location": map[string]float64{"lat": 52.5, "lon": 13.4},
	})
	rec := httptest.NewRecorder()
	h.Recognize(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var body recognizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if len(body.Matches) != 1 {
		t.Fatalf("候補数 = %d, want 1", len(body.Matches))
	}
	if body.Matches[0].Plant.Species != "Monstera deliciosa" {
		t.Errorf("学名 = %q", body.Matches[0].Plant.Species)
	}
	if body.Matches[0].Score != 0.93 {
		t.Errorf("スコア = %v, want 0.93", body.Matches[0].Score)
	}

	if collector.requestCount != 1 {
		t.Errorf("requestCount = %d, want 1", collector.requestCount)
	}
	if len(collector.latencies) != 1 {
		t.Errorf("latencies = %v, want 1件", collector.latencies)
	}
}

func TestPlantHandler_Recognize_UnknownImageKey(t *testing.T) {
	h := NewPlantHandler(&mockRecognitionService{}, &mockImageStorage{}, nil, newTestLogger())

	req := recognizeRequestBody(t, map[string]any{"images": []string{"missing-key"}})
	rec := httptest.NewRecorder()
	h.Recognize(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body.Code != model.ErrCodeImageNotFound {
		t.Errorf("エラーコード = %q, want %q", body.Code, model.ErrCodeImageNotFound)
	}
}

func TestPlantHandler_Recognize_InvalidImageCount(t *testing.T) {
	tests := []struct {
		name   string
		images []string
	}{
		{name: "画像の指定なし", images: nil},
		{name: "上限超過", images: []string{"k1", "k2", "k3", "k4", "k5", "k6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPlantHandler(&mockRecognitionService{}, &mockImageStorage{}, nil, newTestLogger())

			req := recognizeRequestBody(t, map[string]any{"images": tt.images})
			rec := httptest.NewRecorder()
			h.Recognize(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestPlantHandler_Recognize_MalformedBody(t *testing.T) {
	h := NewPlantHandler(&mockRecognitionService{}, &mockImageStorage{}, nil, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/plants/recognize", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	h.Recognize(rec, authedRequest(req, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPlantHandler_Recognize_UpstreamFailure(t *testing.T) {
	collector := &mockRecognitionMetrics{}
	images := &mockImageStorage{
		fetchFn: func(_ context.Context, key string) (*storage.Object, error) {
			return &storage.Object{Data: []byte("data"), ContentType: "image/jpeg"}, nil
		},
	}
	recognizer := &mockRecognitionService{
		analyzeFn: func(_ context.Context, _ []recognition.Image, _ *model.Location) ([]recognition.Match, error) {
			return nil, errors.New("plantnet returned status 500")
		},
	}
	h := NewPlantHandler(recognizer, images, collector, newTestLogger())

	req := recognizeRequestBody(t, map[string]any{"images": []string{"key-1"}})
	rec := httptest.NewRecorder()
	h.Recognize(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body.Code != model.ErrCodeRecognitionFailed {
		t.Errorf("エラーコード = %q, want %q", body.Code, model.ErrCodeRecognitionFailed)
	}
	// 失敗時もリクエストとレイテンシは記録される
	if collector.requestCount != 1 || len(collector.latencies) != 1 {
		t.Errorf("メトリクスが記録されていません: requests=%d latencies=%d", collector.requestCount, len(collector.latencies))
	}
}

func TestPlantHandler_Recognize_StorageError(t *testing.T) {
	images := &mockImageStorage{
		fetchFn: func(_ context.Context, _ string) (*storage.Object, error) {
			return nil, errors.New("object store unreachable")
		},
	}
	h := NewPlantHandler(&mockRecognitionService{}, images, nil, newTestLogger())

	req := recognizeRequestBody(t, map[string]any{"images": []string{"key-1"}})
	rec := httptest.NewRecorder()
	h.Recognize(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
