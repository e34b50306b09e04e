package timestream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/timestreamquery"

	"irrigation-flow-analyzer/src/types"
)

// Timestream returns scalar timestamps in this layout.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Source reads valve events and flow telemetry from Timestream tables.
type Source struct {
	client      *timestreamquery.TimestreamQuery
	database    string
	eventsTable string
	flowTable   string
}

func NewSource(p client.ConfigProvider, database, eventsTable, flowTable string) *Source {
	return &Source{
		client:      timestreamquery.New(p),
		database:    database,
		eventsTable: eventsTable,
		flowTable:   flowTable,
	}
}

// QueryValveEvents returns the signed valve-state samples recorded in
// [start, end), oldest first.
func (s *Source) QueryValveEvents(ctx context.Context, start, end time.Time) ([]types.ValveStateSample, error) {
	query := fmt.Sprintf(
		`SELECT time, measure_value::bigint FROM "%s"."%s" WHERE measure_name = 'valve_state' AND time >= from_iso8601_timestamp('%s') AND time < from_iso8601_timestamp('%s') ORDER BY time ASC`,
		s.database, s.eventsTable, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	rows, err := s.queryAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("valve event query: %w", err)
	}

	samples := make([]types.ValveStateSample, 0, len(rows))
	for _, row := range rows {
		ts, raw, err := scalarPair(row)
		if err != nil {
			return nil, err
		}
		valve, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid valve state value %q: %v", raw, err)
		}
		samples = append(samples, types.ValveStateSample{Timestamp: ts, Valve: valve})
	}
	return samples, nil
}

// QueryFlow returns the flow-rate samples recorded in [start, end),
// oldest first.
func (s *Source) QueryFlow(ctx context.Context, start, end time.Time) ([]types.FlowSample, error) {
	query := fmt.Sprintf(
		`SELECT time, measure_value::double FROM "%s"."%s" WHERE measure_name = 'flow_rate' AND time >= from_iso8601_timestamp('%s') AND time < from_iso8601_timestamp('%s') ORDER BY time ASC`,
		s.database, s.flowTable, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	rows, err := s.queryAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("flow query: %w", err)
	}

	samples := make([]types.FlowSample, 0, len(rows))
	for _, row := range rows {
		ts, raw, err := scalarPair(row)
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid flow value %q: %v", raw, err)
		}
		samples = append(samples, types.FlowSample{Timestamp: ts, Value: value})
	}
	return samples, nil
}

func (s *Source) queryAll(ctx context.Context, query string) ([]*timestreamquery.Row, error) {
	var rows []*timestreamquery.Row

	input := &timestreamquery.QueryInput{QueryString: aws.String(query)}
	for {
		output, err := s.client.QueryWithContext(ctx, input)
		if err != nil {
			return nil, err
		}
		rows = append(rows, output.Rows...)

		if output.NextToken == nil {
			return rows, nil
		}
		input.NextToken = output.NextToken
	}
}

// scalarPair pulls the (time, value) scalars out of a two-column row.
func scalarPair(row *timestreamquery.Row) (time.Time, string, error) {
	if len(row.Data) < 2 || row.Data[0].ScalarValue == nil || row.Data[1].ScalarValue == nil {
		return time.Time{}, "", fmt.Errorf("unexpected row shape: %v", row)
	}

	ts, err := time.Parse(timeLayout, *row.Data[0].ScalarValue)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid row timestamp %q: %v", *row.Data[0].ScalarValue, err)
	}
	return ts, *row.Data[1].ScalarValue, nil
}
