package newsletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"forkfire/internal/types"
)

// SendResult labels the outcome of one recipient send for metrics.
type SendResult string

const (
	SendResultSuccess SendResult = "success"
	SendResultFailure SendResult = "failure"
)

// Metric and dimension names emitted to CloudWatch.
const (
	metricSendAttempt      = "SendAttempt"
	metricDispatchDuration = "DispatchDuration"
	metricDispatchSize     = "DispatchSize"
	dimResult              = "Result"
)

// DispatchMetrics records dispatch telemetry. The dispatcher calls
// RecordSend once per recipient and RecordDispatch once per batch.
type DispatchMetrics interface {
	RecordSend(ctx context.Context, result SendResult)
	RecordDispatch(ctx context.Context, report types.DispatchReport, duration time.Duration)
}

// NoopDispatchMetrics discards all metrics. Used in local development and
// as the default when no collector is configured.
type NoopDispatchMetrics struct{}

func (NoopDispatchMetrics) RecordSend(context.Context, SendResult)                              {}
func (NoopDispatchMetrics) RecordDispatch(context.Context, types.DispatchReport, time.Duration) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchDispatchMetrics implements DispatchMetrics by emitting to AWS
// CloudWatch. Emission failures are logged and ignored; metrics must never
// affect a dispatch outcome.
type CloudWatchDispatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchDispatchMetrics creates a collector publishing to the given
// CloudWatch namespace.
func NewCloudWatchDispatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchDispatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchDispatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordSend emits a SendAttempt datum with a Result dimension.
func (m *CloudWatchDispatchMetrics) RecordSend(ctx context.Context, result SendResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricSendAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(dimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record send metric", "error", err.Error())
	}
}

// RecordDispatch emits the batch duration and size for one dispatch.
func (m *CloudWatchDispatchMetrics) RecordDispatch(ctx context.Context, report types.DispatchReport, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricDispatchDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
			{
				MetricName: aws.String(metricDispatchSize),
				Value:      aws.Float64(float64(report.Total)),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record dispatch metrics", "error", err.Error())
	}
}

// Compile-time assertions.
var (
	_ DispatchMetrics = NoopDispatchMetrics{}
	_ DispatchMetrics = (*CloudWatchDispatchMetrics)(nil)
)
