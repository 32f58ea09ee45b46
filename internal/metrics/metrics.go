// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordImageUpload()
	RecordRecognitionRequest()
	RecordRecognitionLatency(duration time.Duration)
	RecordSpeciesInserted()
	RecordImagesCleaned(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	loginFail          *prometheus.CounterVec
	imageUploads       prometheus.Counter
	recognitionReqs    prometheus.Counter
	recognitionLatency prometheus.Histogram
	speciesInserted    prometheus.Counter
	imagesCleaned      prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantswap_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plantswap_login_fail_total",
			Help: "失敗分類別のログイン失敗数",
		}, []string{"reason"}),
		imageUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantswap_image_uploads_total",
			Help: "画像アップロード成功の合計数",
		}),
		recognitionReqs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantswap_recognition_requests_total",
			Help: "種識別リクエストの合計数",
		}),
		recognitionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plantswap_recognition_latency_seconds",
			Help:    "種識別のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		speciesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantswap_species_inserted_total",
			Help: "種カタログに新規作成されたレコードの合計数",
		}),
		imagesCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantswap_images_cleaned_total",
			Help: "クリーンアップで削除された未参照画像の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plantswap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.imageUploads,
		c.recognitionReqs,
		c.recognitionLatency,
		c.speciesInserted,
		c.imagesCleaned,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を失敗分類とともに記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordImageUpload は画像アップロード成功を記録する。
func (c *Collector) RecordImageUpload() {
	c.imageUploads.Inc()
}

// RecordRecognitionRequest は種識別リクエストを記録する。
func (c *Collector) RecordRecognitionRequest() {
	c.recognitionReqs.Inc()
}

// RecordRecognitionLatency は種識別のレイテンシを記録する。
func (c *Collector) RecordRecognitionLatency(duration time.Duration) {
	c.recognitionLatency.Observe(duration.Seconds())
}

// RecordSpeciesInserted は種カタログへの新規作成を記録する。
func (c *Collector) RecordSpeciesInserted() {
	c.speciesInserted.Inc()
}

// RecordImagesCleaned はクリーンアップで削除された画像数を記録する。
func (c *Collector) RecordImagesCleaned(count int) {
	c.imagesCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
