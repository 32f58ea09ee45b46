package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// compile-time interface check
var _ SSRFGuardService = (*ssrfGuard)(nil)

// TestNewSSRFGuard はSSRFGuardの生成をテストする。
func TestNewSSRFGuard(t *testing.T) {
	guard := NewSSRFGuard()
	if guard == nil {
		t.Fatal("NewSSRFGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5 * time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("ループバックへのリクエストがブロックされなかった")
	}
}

// TestValidateURL はURL事前検証の許可・拒否判定をテストする。
func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"外部HTTPSエンドポイント", "https://my-api.plantnet.org/v2", false},
		{"外部HTTPエンドポイント", "http://example.com", false},
		{"空URL", "", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"ftpスキーム", "ftp://example.com", true},
		{"localhost", "https://localhost/certs", true},
		{"ループバックIP", "http://127.0.0.1:8080", true},
		{"プライベートIP 10系", "http://10.0.0.5", true},
		{"プライベートIP 192.168系", "http://192.168.1.1", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data", true},
		{"IPv6ループバック", "http://[::1]/", true},
		{"ホストなし", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateURL(%q) がエラーを返さなかった", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateURL(%q) が予期しないエラーを返した: %v", tt.url, err)
			}
		})
	}
}
