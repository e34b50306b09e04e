package dynamo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"irrigation-flow-analyzer/src/types"
	"irrigation-flow-analyzer/src/utils"
)

const (
	partitionKey = "valve-runs"
	// Items expire once they age out of the longest anomaly window,
	// with slack for late reprocessing.
	itemTTL = 180 * 24 * time.Hour
)

// runMetricsItem is the DynamoDB shape of one RunMetrics record. All
// items share a static partition key and sort by run end time, so a
// trailing window is a single range query. FlowStability is omitted for
// indeterminate runs; DynamoDB has no NaN.
type runMetricsItem struct {
	PK              string   `dynamodbav:"PK"`
	SK              string   `dynamodbav:"SK"`
	Valve           int      `dynamodbav:"valve"`
	BaselineMedian  float64  `dynamodbav:"baseline_median"`
	BaselineMean    float64  `dynamodbav:"baseline_mean"`
	BaselineStd     float64  `dynamodbav:"baseline_std"`
	ValveMedian     float64  `dynamodbav:"valve_median"`
	ValveMean       float64  `dynamodbav:"valve_mean"`
	ValveMax        float64  `dynamodbav:"valve_max"`
	ValveStd        float64  `dynamodbav:"valve_std"`
	NetFlowIncrease float64  `dynamodbav:"net_flow_increase"`
	FlowStability   *float64 `dynamodbav:"flow_stability,omitempty"`
	DurationMinutes float64  `dynamodbav:"duration_minutes"`
	TTL             int64    `dynamodbav:"ttl"`
}

// RunMetricsStore persists the per-run flow metrics history consumed by
// the anomaly scorer.
type RunMetricsStore struct {
	client *dynamodb.DynamoDB
	table  string
}

func NewRunMetricsStore(client *dynamodb.DynamoDB, table string) *RunMetricsStore {
	return &RunMetricsStore{client: client, table: table}
}

func (s *RunMetricsStore) PutRunMetrics(ctx context.Context, m types.RunMetrics) error {
	record := runMetricsItem{
		PK:              partitionKey,
		SK:              m.OffTime.UTC().Format(time.RFC3339),
		Valve:           m.Valve,
		BaselineMedian:  m.BaselineMedian,
		BaselineMean:    m.BaselineMean,
		BaselineStd:     m.BaselineStd,
		ValveMedian:     m.ValveMedian,
		ValveMean:       m.ValveMean,
		ValveMax:        m.ValveMax,
		ValveStd:        m.ValveStd,
		NetFlowIncrease: m.NetFlowIncrease,
		DurationMinutes: m.DurationMinutes,
		TTL:             m.OffTime.Add(itemTTL).Unix(),
	}
	if !m.StabilityIndeterminate() {
		stability := m.FlowStability
		record.FlowStability = &stability
	}

	item, err := dynamodbattribute.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run metrics: %w", err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store run metrics: %w", err)
	}
	return nil
}

// QueryValveStats fetches every run since the window start and reduces
// the history to per-valve window means of the scored metrics.
func (s *RunMetricsStore) QueryValveStats(ctx context.Context, since time.Time) (map[int]types.ValveWindowStats, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND SK >= :since"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk":    {S: aws.String(partitionKey)},
			":since": {S: aws.String(since.UTC().Format(time.RFC3339))},
		},
	}

	var items []runMetricsItem
	err := s.client.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		var pageItems []runMetricsItem
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &pageItems); err == nil {
			items = append(items, pageItems...)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query run metrics: %w", err)
	}

	return reduce(items), nil
}

func reduce(items []runMetricsItem) map[int]types.ValveWindowStats {
	flows := map[int][]float64{}
	maxFlows := map[int][]float64{}
	stabilities := map[int][]float64{}

	for _, it := range items {
		flows[it.Valve] = append(flows[it.Valve], it.NetFlowIncrease)
		maxFlows[it.Valve] = append(maxFlows[it.Valve], it.ValveMax)
		if it.FlowStability != nil {
			stabilities[it.Valve] = append(stabilities[it.Valve], *it.FlowStability)
		}
	}

	stats := make(map[int]types.ValveWindowStats, len(flows))
	for valve, values := range flows {
		stability := math.NaN()
		if len(stabilities[valve]) > 0 {
			stability = utils.Average(stabilities[valve])
		}

		stats[valve] = types.ValveWindowStats{
			Runs:             len(values),
			MeanFlowIncrease: utils.Average(values),
			MeanMaxFlow:      utils.Average(maxFlows[valve]),
			MeanStability:    stability,
		}
	}
	return stats
}
