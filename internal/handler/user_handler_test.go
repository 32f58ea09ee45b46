package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/plantswap/internal/model"
)

// --- モック定義 ---

type mockUserProfile struct {
	upsertFn func(ctx context.Context, userID string, loc model.Location) error
	findFn   func(ctx context.Context, userID string) (*model.Location, error)
}

func (m *mockUserProfile) UpsertLocation(ctx context.Context, userID string, loc model.Location) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, loc)
	}
	return nil
}

func (m *mockUserProfile) FindLocation(ctx context.Context, userID string) (*model.Location, error) {
	if m.findFn != nil {
		return m.findFn(ctx, userID)
	}
	return nil, nil
}

var _ UserProfileInterface = (*mockUserProfile)(nil)

func TestUserHandler_UpdateLocation_Success(t *testing.T) {
	var saved model.Location
	users := &mockUserProfile{
		upsertFn: func(_ context.Context, userID string, loc model.Location) error {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			saved = loc
			return nil
		},
	}
	h := NewUserHandler(users, newTestLogger())

	req := jsonRequest(t, http.MethodPut, "/api/users/me/location", map[string]float64{
		"lat": 52.5163,
		"lon": 13.3777,
	})
	rec := httptest.NewRecorder()
	h.UpdateLocation(rec, authedRequest(req, "user-1"))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("ステータスコード = %d, want %d", rec.Code, http.StatusNoContent)
	}
	// 保存前に小数第1位へ丸められる
	if saved.Lat != 52.5 || saved.Lon != 13.4 {
		t.Errorf("保存された座標 = %+v, want (52.5, 13.4)", saved)
	}
}

func TestUserHandler_UpdateLocation_OutOfRange(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{name: "緯度が大きすぎる", lat: 90.1, lon: 0},
		{name: "緯度が小さすぎる", lat: -90.1, lon: 0},
		{name: "経度が大きすぎる", lat: 0, lon: 180.1},
		{name: "経度が小さすぎる", lat: 0, lon: -180.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockUserProfile{
				upsertFn: func(_ context.Context, _ string, _ model.Location) error {
					t.Error("不正な座標が保存されようとしました")
					return nil
				},
			}
			h := NewUserHandler(users, newTestLogger())

			req := jsonRequest(t, http.MethodPut, "/api/users/me/location", map[string]float64{
				"lat": tt.lat,
				"lon": tt.lon,
			})
			rec := httptest.NewRecorder()
			h.UpdateLocation(rec, authedRequest(req, "user-1"))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestUserHandler_UpdateLocation_MalformedBody(t *testing.T) {
	h := NewUserHandler(&mockUserProfile{}, newTestLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/location", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	h.UpdateLocation(rec, authedRequest(req, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_UpdateLocation_Unauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUserProfile{}, newTestLogger())

	req := jsonRequest(t, http.MethodPut, "/api/users/me/location", map[string]float64{"lat": 52.5, "lon": 13.4})
	rec := httptest.NewRecorder()
	h.UpdateLocation(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestUserHandler_GetLocation(t *testing.T) {
	t.Run("設定済みの座標を返す", func(t *testing.T) {
		users := &mockUserProfile{
			findFn: func(_ context.Context, userID string) (*model.Location, error) {
				return &model.Location{Lat: 35.7, Lon: 139.8}, nil
			},
		}
		h := NewUserHandler(users, newTestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users/me/location", nil)
		rec := httptest.NewRecorder()
		h.GetLocation(rec, authedRequest(req, "user-1"))

		if rec.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", rec.Code, http.StatusOK)
		}

		var body model.Location
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if body.Lat != 35.7 || body.Lon != 139.8 {
			t.Errorf("座標 = %+v", body)
		}
	})

	t.Run("未設定は204", func(t *testing.T) {
		h := NewUserHandler(&mockUserProfile{}, newTestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users/me/location", nil)
		rec := httptest.NewRecorder()
		h.GetLocation(rec, authedRequest(req, "user-1"))

		if rec.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})

	t.Run("取得失敗は500", func(t *testing.T) {
		users := &mockUserProfile{
			findFn: func(_ context.Context, _ string) (*model.Location, error) {
				return nil, errors.New("db down")
			},
		}
		h := NewUserHandler(users, newTestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/users/me/location", nil)
		rec := httptest.NewRecorder()
		h.GetLocation(rec, authedRequest(req, "user-1"))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}
