// Command loxvm-telemetry-dynamodb is the recorder subprocess the CLI
// spawns over stdin/stdout (spec.md treats the driver as an external
// collaborator; this is one such collaborator). It speaks the same
// line-delimited JSON-RPC protocol as the teacher's plugin subprocesses,
// but with a single "put_run" method that writes one DynamoDB item per
// interpreted run.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

type request struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type runItem struct {
	RunID      string `dynamodbav:"run_id"`
	SessionID  string `dynamodbav:"session_id"`
	Source     string `dynamodbav:"source"`
	Result     string `dynamodbav:"result"`
	RecordedAt string `dynamodbav:"recorded_at"`
}

var (
	clientOnce sync.Once
	client     *dynamodb.Client
	clientErr  error
	tableName  = envOr("LOXVM_TELEMETRY_TABLE", "loxvm-runs")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			encoder.Encode(response{Error: fmt.Sprintf("parse error: %v", err)})
			continue
		}

		result, err := handle(req)
		resp := response{Result: result}
		if err != nil {
			resp.Error = err.Error()
		}
		if err := encoder.Encode(resp); err != nil {
			fmt.Fprintf(os.Stderr, "loxvm-telemetry-dynamodb: encode response: %v\n", err)
		}
	}
}

func handle(req request) (interface{}, error) {
	switch req.Method {
	case "put_run":
		return handlePutRun(req.Params)
	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func handlePutRun(params []interface{}) (interface{}, error) {
	if len(params) < 3 {
		return nil, fmt.Errorf("expected session_id, source, result")
	}
	sessionID, _ := params[0].(string)
	source, _ := params[1].(string)
	runResult, _ := params[2].(string)

	c, err := getClient()
	if err != nil {
		return nil, err
	}

	item := runItem{
		RunID:      uuid.NewString(),
		SessionID:  sessionID,
		Source:     source,
		Result:     runResult,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal run item: %w", err)
	}

	_, err = c.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return item.RunID, nil
}

func getClient() (*dynamodb.Client, error) {
	clientOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			clientErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		client = dynamodb.NewFromConfig(cfg)
	})
	return client, clientErr
}
