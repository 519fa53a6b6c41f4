package prom

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	xhttp "github.com/retailcore/till-service/pkg/http"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemTill     = "till"
	SystemVariance = "variance"
	SystemAlerts   = "alerts"
)

const (
	MetricSessionsOpened        = "sessions_opened_total"
	MetricSessionsClosed        = "sessions_closed_total"
	MetricCashDrops             = "cash_drops_total"
	MetricVarianceCases         = "cases_total"
	MetricVarianceAmount        = "amount"
	MetricAlertDeliveryDuration = "delivered_duration_seconds"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers the service's metric families. Call once at startup;
// the Add/Inc helpers are no-ops until then.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemTill, MetricSessionsOpened, []string{"branch"}))
	hasError(createCounterVec(SystemTill, MetricSessionsClosed, []string{"branch"}))
	hasError(createCounterVec(SystemTill, MetricCashDrops, []string{"branch"}))
	hasError(createCounterVec(SystemVariance, MetricVarianceCases, []string{"type"}))
	hasError(createHistogramVec(SystemVariance, MetricVarianceAmount, []string{"type"}))
	hasError(createHistogramVec(SystemAlerts, MetricAlertDeliveryDuration, []string{"endpoint"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogram:
		return createHistogram(metricSubsystem, metricName)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return prometheus.Register(MetricCollectionHistogram[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionGaugeVec[subsystem+name])
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncGaugeVec(subsystem, name string, labelValues ...string) {
	AddGaugeVec(subsystem, name, 1, labelValues...)
}

func AddGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func IncSessionOpened(branch string) { IncCounterVec(SystemTill, MetricSessionsOpened, branch) }
func IncSessionClosed(branch string) { IncCounterVec(SystemTill, MetricSessionsClosed, branch) }
func IncCashDrop(branch string)      { IncCounterVec(SystemTill, MetricCashDrops, branch) }
func IncVarianceCase(varType string) { IncCounterVec(SystemVariance, MetricVarianceCases, varType) }

func ObserveVarianceAmount(amount float64, varType string) {
	AddHistogramVec(SystemVariance, MetricVarianceAmount, amount, varType)
}

func AddAlertDeliveryDuration(duration float64, endpoint string) {
	AddHistogramVec(SystemAlerts, MetricAlertDeliveryDuration, duration, endpoint)
}
