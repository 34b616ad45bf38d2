package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"tripgenie/internal/types"
)

// MetricResult categorizes an attempt outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// PipelineMetrics abstracts telemetry for the alerting pipeline. Emission is
// best-effort: metric failures are logged and never surfaced to the caller.
type PipelineMetrics interface {
	// RecordTripEvaluated counts one trip examined by a scheduler run.
	RecordTripEvaluated(ctx context.Context)
	// RecordNotification counts a created notification, by severity.
	RecordNotification(ctx context.Context, severity types.Severity)
	// RecordEmail counts an email delivery attempt outcome.
	RecordEmail(ctx context.Context, result MetricResult)
	// RecordReplan counts a replanning attempt outcome.
	RecordReplan(ctx context.Context, result MetricResult)
	// RecordRunDuration records how long a full scheduler run took.
	RecordRunDuration(ctx context.Context, duration time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchPipelineMetrics implements PipelineMetrics.
var _ PipelineMetrics = (*CloudWatchPipelineMetrics)(nil)

// CloudWatchPipelineMetrics implements PipelineMetrics by emitting metrics
// to AWS CloudWatch under the TripGenie namespace.
type CloudWatchPipelineMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchPipelineMetrics creates metrics that publish to CloudWatch.
func NewCloudWatchPipelineMetrics(client CloudWatchClient, logger *slog.Logger) *CloudWatchPipelineMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchPipelineMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordTripEvaluated emits a TripEvaluated count.
func (m *CloudWatchPipelineMetrics) RecordTripEvaluated(ctx context.Context) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricTripEvaluated),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordNotification emits a NotificationCreated count with the Severity dimension.
func (m *CloudWatchPipelineMetrics) RecordNotification(ctx context.Context, severity types.Severity) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationCreated),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimSeverity), Value: aws.String(string(severity))},
		},
	})
}

// RecordEmail emits an EmailAttempt count with the Result dimension.
func (m *CloudWatchPipelineMetrics) RecordEmail(ctx context.Context, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEmailAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordReplan emits a ReplanAttempt count with the Result dimension.
func (m *CloudWatchPipelineMetrics) RecordReplan(ctx context.Context, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricReplanAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordRunDuration emits the wall-clock duration of a scheduler run in
// milliseconds.
func (m *CloudWatchPipelineMetrics) RecordRunDuration(ctx context.Context, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchPipelineMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to put metric data",
			"metric", aws.ToString(datum.MetricName),
			"error", err,
		)
	}
}

// NoopMetrics discards all metrics. Used when telemetry is disabled.
type NoopMetrics struct{}

var _ PipelineMetrics = NoopMetrics{}

func (NoopMetrics) RecordTripEvaluated(context.Context)                {}
func (NoopMetrics) RecordNotification(context.Context, types.Severity) {}
func (NoopMetrics) RecordEmail(context.Context, MetricResult)          {}
func (NoopMetrics) RecordReplan(context.Context, MetricResult)         {}
func (NoopMetrics) RecordRunDuration(context.Context, time.Duration)   {}
