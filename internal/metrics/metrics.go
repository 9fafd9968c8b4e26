package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sigtrade_ticks_total", Help: "Ticks run, by outcome"},
		[]string{"symbol", "result"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sigtrade_orders_total", Help: "Orders accepted by the broker"},
		[]string{"symbol", "side"},
	)
	TickErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sigtrade_tick_errors_total", Help: "Aborted ticks, by error kind"},
		[]string{"symbol", "kind"},
	)
	AggregateScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "sigtrade_aggregate_score", Help: "Last weighted indicator score"},
		[]string{"symbol"},
	)
	PositionActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "sigtrade_position_active", Help: "1 while a position is open"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, OrdersTotal, TickErrorsTotal, AggregateScore, PositionActive)
}

func SetPositionActive(symbol string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	PositionActive.WithLabelValues(symbol).Set(v)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
