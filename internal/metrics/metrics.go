// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess            = "success"
	LoginMissingCode        = "missing_code"
	LoginInvalidState       = "invalid_state"
	LoginProviderError      = "provider_error"
	LoginIncompleteIdentity = "incomplete_identity"
	LoginError              = "error"
)

// セッション拒否理由のラベル値
const (
	RejectInvalidToken = "invalid_token"
	RejectUnknownUser  = "unknown_user"
	RejectInactiveUser = "inactive_user"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordSessionRejected(reason string)
	RecordProviderLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	sessionRejected *prometheus.CounterVec
	providerLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerdock_login_total",
			Help: "OAuthコールバック処理の結果別件数",
		}, []string{"result"}),
		sessionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerdock_session_rejected_total",
			Help: "セッション検証で拒否されたリクエストの理由別件数",
		}, []string{"reason"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careerdock_oauth_exchange_latency_seconds",
			Help:    "OAuthプロバイダーとのコード交換のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careerdock_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.sessionRejected,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordSessionRejected はセッション拒否を記録する。
func (c *Collector) RecordSessionRejected(reason string) {
	c.sessionRejected.WithLabelValues(reason).Inc()
}

// RecordProviderLatency はプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(duration time.Duration) {
	c.providerLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string)                  {}
func (Nop) RecordSessionRejected(string)        {}
func (Nop) RecordProviderLatency(time.Duration) {}
func (Nop) RecordHTTPStatus(int)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 一部のコレクターが失敗しても、収集できたメトリクスは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
