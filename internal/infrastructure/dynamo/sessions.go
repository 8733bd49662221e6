package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/pkg/duration"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
// Every call runs under a bounded timeout and reports infrastructure failures
// as domain.ErrStorage.
type SessionRepo struct {
	client    *dynamodb.Client
	tableName string
	counters  *CounterRepo
	opTimeout time.Duration
}

func NewSessionRepo(client *dynamodb.Client, tableName string, counters *CounterRepo, opTimeout time.Duration) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName, counters: counters, opTimeout: opTimeout}
}

// sessionItem is the storage shape of a session. The total_time column keeps
// the historical "H:M:S" text form; notified is numeric so it can serve as a
// GSI hash key.
type sessionItem struct {
	SessionID int64      `dynamodbav:"session_id"`
	UserID    string     `dynamodbav:"user_id"`
	TimeIn    time.Time  `dynamodbav:"time_in"`
	TimeOut   *time.Time `dynamodbav:"time_out,omitempty"`
	TotalTime *string    `dynamodbav:"total_time,omitempty"`
	Notified  int        `dynamodbav:"notified"`
	CreatedAt time.Time  `dynamodbav:"created_at"`
	UpdatedAt time.Time  `dynamodbav:"updated_at"`
}

func (it *sessionItem) toDomain() (*domain.Session, error) {
	s := &domain.Session{
		SessionID: it.SessionID,
		UserID:    it.UserID,
		TimeIn:    it.TimeIn,
		TimeOut:   it.TimeOut,
		Notified:  it.Notified != 0,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
	if it.TotalTime != nil {
		t, err := duration.Parse(*it.TotalTime)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w: %v", it.SessionID, domain.ErrInvariant, err)
		}
		s.TotalTime = &t
	}
	return s, nil
}

// FindOpen returns the single open session for a user, domain.ErrNotFound
// when the user is clocked out, or domain.ErrInvariant when the table holds
// more than one open row for that user.
func (r *SessionRepo) FindOpen(ctx context.Context, user string) (*domain.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("attribute_not_exists(time_out)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: user},
		},
	})
	if err != nil {
		return nil, storageError("query open session", err)
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("no open session for user %s: %w", user, domain.ErrNotFound)
	case 1:
		return unmarshalSession(items[0])
	default:
		return nil, fmt.Errorf("%d open sessions for user %s: %w", len(items), user, domain.ErrInvariant)
	}
}

// Create inserts a new open session. The id comes from the atomic session
// counter, so it is unique, monotonically increasing and never reused.
func (r *SessionRepo) Create(ctx context.Context, user string, timeIn time.Time) (*domain.Session, error) {
	id, err := r.counters.Next(ctx, counterSessions)
	if err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it := sessionItem{
		SessionID: id,
		UserID:    user,
		TimeIn:    timeIn,
		Notified:  0,
		CreatedAt: timeIn,
		UpdatedAt: timeIn,
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return nil, fmt.Errorf("session id %d already exists: %w", id, domain.ErrInvariant)
		}
		return nil, storageError("put session", err)
	}
	return it.toDomain()
}

// Close records the end of a session. time_out and total_time are written in
// one update; the condition rejects a second close or a close of a missing
// row as an invariant violation.
func (r *SessionRepo) Close(ctx context.Context, id int64, timeOut time.Time, total duration.Triple) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldTimeOut:   timeOut.Format(time.RFC3339Nano),
		fieldTotalTime: total.String(),
		fieldUpdatedAt: timeOut.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(fieldSessionID, id),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(session_id) AND attribute_not_exists(time_out)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("close of session %d that is missing or already closed: %w", id, domain.ErrInvariant)
		}
		return storageError("close session", err)
	}
	return nil
}

// MarkNotified flags a session as having received its overtime alert. The
// condition keeps the flag off closed rows; losing the race with a concurrent
// clock-out surfaces as domain.ErrSessionClosed, which callers treat as a
// benign skip.
func (r *SessionRepo) MarkNotified(ctx context.Context, id int64, now time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldNotified:  1,
		fieldUpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(fieldSessionID, id),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(session_id) AND attribute_not_exists(time_out)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("session %d: %w", id, domain.ErrSessionClosed)
		}
		return storageError("mark session notified", err)
	}
	return nil
}

// ListUnnotified returns a snapshot of every session that has not yet been
// flagged, open or closed. The overtime scan restricts itself to the open
// ones.
func (r *SessionRepo) ListUnnotified(ctx context.Context) ([]domain.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexNotified),
		KeyConditionExpression: aws.String("notified = :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		return nil, storageError("query unnotified sessions", err)
	}
	return unmarshalSessions(items)
}

// ListByUser returns every retained session for a user, the audit trail.
func (r *SessionRepo) ListByUser(ctx context.Context, user string) ([]domain.Session, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	items, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: user},
		},
	})
	if err != nil {
		return nil, storageError("query sessions by user", err)
	}
	return unmarshalSessions(items)
}

// queryAll drains every page of a query so callers always see a complete
// snapshot.
func (r *SessionRepo) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *SessionRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

func unmarshalSession(item map[string]types.AttributeValue) (*domain.Session, error) {
	var it sessionItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return it.toDomain()
}

func unmarshalSessions(items []map[string]types.AttributeValue) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0, len(items))
	for _, item := range items {
		s, err := unmarshalSession(item)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorage, err)
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
