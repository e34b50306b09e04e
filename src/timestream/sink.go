package timestream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/timestreamwrite"

	"irrigation-flow-analyzer/src/types"
)

// Timestream caps WriteRecords batches at 100 records.
const maxBatch = 100

// Sink appends derived points to a Timestream table as multi-measure
// records. The record version is the invocation time, so re-running an
// overlapping lookback window upserts identical points instead of
// failing on duplicates.
type Sink struct {
	client   *timestreamwrite.TimestreamWrite
	database string
	table    string
}

func NewSink(p client.ConfigProvider, database, table string) *Sink {
	return &Sink{
		client:   timestreamwrite.New(p),
		database: database,
		table:    table,
	}
}

func (s *Sink) Write(ctx context.Context, records []types.Record) error {
	converted := make([]*timestreamwrite.Record, len(records))
	for i, r := range records {
		converted[i] = convert(r)
	}

	version := time.Now().UnixMilli()

	for start := 0; start < len(converted); start += maxBatch {
		end := start + maxBatch
		if end > len(converted) {
			end = len(converted)
		}

		_, err := s.client.WriteRecordsWithContext(ctx, &timestreamwrite.WriteRecordsInput{
			DatabaseName:     aws.String(s.database),
			TableName:        aws.String(s.table),
			CommonAttributes: &timestreamwrite.Record{Version: aws.Int64(version)},
			Records:          converted[start:end],
		})
		if err != nil {
			return fmt.Errorf("writing %d records to %s: %w", end-start, s.table, err)
		}
	}

	return nil
}

func convert(r types.Record) *timestreamwrite.Record {
	dimensions := make([]*timestreamwrite.Dimension, 0, len(r.Tags))
	for name, value := range r.Tags {
		dimensions = append(dimensions, &timestreamwrite.Dimension{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	measures := make([]*timestreamwrite.MeasureValue, 0, len(r.Fields))
	for name, value := range r.Fields {
		measures = append(measures, &timestreamwrite.MeasureValue{
			Name:  aws.String(name),
			Value: aws.String(strconv.FormatFloat(value, 'f', -1, 64)),
			Type:  aws.String(timestreamwrite.MeasureValueTypeDouble),
		})
	}

	return &timestreamwrite.Record{
		Dimensions:       dimensions,
		MeasureName:      aws.String(r.Series),
		MeasureValueType: aws.String(timestreamwrite.MeasureValueTypeMulti),
		MeasureValues:    measures,
		Time:             aws.String(strconv.FormatInt(r.Timestamp.UnixMilli(), 10)),
		TimeUnit:         aws.String(timestreamwrite.TimeUnitMilliseconds),
	}
}
