package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/timeclock-api/internal/domain"
)

// Named counters in the counters table.
const counterSessions = "session_id"

// CounterRepo hands out monotonically increasing ids from an atomic counter
// item. DynamoDB's ADD update is atomic, so two concurrent Next calls can
// never observe the same value and a value is never reissued.
type CounterRepo struct {
	client    *dynamodb.Client
	tableName string
	opTimeout time.Duration
}

func NewCounterRepo(client *dynamodb.Client, tableName string, opTimeout time.Duration) *CounterRepo {
	return &CounterRepo{client: client, tableName: tableName, opTimeout: opTimeout}
}

// Next increments the named counter and returns the new value.
func (r *CounterRepo) Next(ctx context.Context, name string) (int64, error) {
	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("counter_name", name),
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, storageError("increment counter "+name, err)
	}
	attr, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %s returned no numeric seq: %w", name, domain.ErrStorage)
	}
	v, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s returned %q: %w", name, attr.Value, domain.ErrStorage)
	}
	return v, nil
}
