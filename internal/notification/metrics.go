package notification

import (
	"strconv"
	"time"
)

// DeliveryMeasurement is the measurement name of delivery points.
const DeliveryMeasurement = "notification_delivery"

// PointWriter writes one time series point. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// MetricsRecorder writes each delivery attempt as a point.
type MetricsRecorder struct {
	writer PointWriter
}

// NewMetricsRecorder creates a DeliveryRecorder backed by w.
func NewMetricsRecorder(w PointWriter) *MetricsRecorder {
	return &MetricsRecorder{writer: w}
}

// RecordDelivery implements DeliveryRecorder.
func (r *MetricsRecorder) RecordDelivery(d Delivery) {
	tags := map[string]string{
		"outcome":       string(d.Outcome),
		"resource_type": d.ResourceType.String(),
	}
	if d.StatusCode != 0 {
		tags["status_code"] = strconv.Itoa(d.StatusCode)
	}
	fields := map[string]any{
		"attempt":         d.Attempt,
		"latency_ms":      float64(d.Latency) / float64(time.Millisecond),
		"notification_id": d.NotificationID,
		"subscription":    d.SubscriptionHref,
	}
	r.writer.WritePointWithTime(DeliveryMeasurement, tags, fields, d.At)
}

// Recorders fans each delivery out to every recorder in order.
type Recorders []DeliveryRecorder

// RecordDelivery implements DeliveryRecorder.
func (rs Recorders) RecordDelivery(d Delivery) {
	for _, r := range rs {
		r.RecordDelivery(d)
	}
}
