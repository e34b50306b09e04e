package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	log "github.com/sirupsen/logrus"

	"irrigation-flow-analyzer/src/config"
	"irrigation-flow-analyzer/src/dynamo"
	"irrigation-flow-analyzer/src/pipeline"
	"irrigation-flow-analyzer/src/timestream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(cfg.Region)}))

	source := timestream.NewSource(sess, cfg.TimestreamDatabase, cfg.ValveEventsTable, cfg.FlowTable)
	sink := timestream.NewSink(sess, cfg.TimestreamDatabase, cfg.DerivedTable)
	history := dynamo.NewRunMetricsStore(dynamodb.New(sess), cfg.RunMetricsTable)

	p := pipeline.New(cfg, source, source, history, sink)

	// Fired by an EventBridge schedule. A failed run exits cleanly so
	// the next scheduled invocation simply reconciles a wider overlap.
	lambda.Start(func(ctx context.Context, event events.CloudWatchEvent) error {
		now := time.Now().UTC()
		log.Infof("Reconciling valve runs over the trailing %s", cfg.Lookback)

		if err := p.Run(ctx, now); err != nil {
			log.Warnf("Correlation stage aborted: %v", err)
			return nil
		}
		if err := p.ScoreAnomalies(ctx, now); err != nil {
			log.Warnf("Anomaly scoring aborted: %v", err)
		}
		return nil
	})
}
