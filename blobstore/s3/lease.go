package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrLeaseHeld is returned when another owner holds an unexpired lease.
var ErrLeaseHeld = errors.New("s3: lease held by another owner")

// DDBClient is the subset of *dynamodb.Client used by Lease.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// Lease grants one process ownership of a remote store through a
// conditional DynamoDB write. Expired leases may be taken over.
//
// Table schema: partition key "resource" (S). Items carry "owner" (S) and
// "expires_at" (N, unix milliseconds).
type Lease struct {
	client   DDBClient
	table    string
	resource string
	owner    string
	ttl      time.Duration
	now      func() time.Time
}

// LeaseOption configures a Lease.
type LeaseOption func(*Lease)

// WithLeaseClock replaces time.Now.
func WithLeaseClock(now func() time.Time) LeaseOption {
	return func(l *Lease) {
		l.now = now
	}
}

// NewLease returns a lease on resource for owner.
func NewLease(client DDBClient, table, resource, owner string, ttl time.Duration, opts ...LeaseOption) *Lease {
	l := &Lease{
		client:   client,
		table:    table,
		resource: resource,
		owner:    owner,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns this lease's owner id.
func (l *Lease) Owner() string { return l.owner }

// Acquire takes or renews the lease.
func (l *Lease) Acquire(ctx context.Context) error {
	now := l.now()
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			"resource":   &types.AttributeValueMemberS{Value: l.resource},
			"owner":      &types.AttributeValueMemberS{Value: l.owner},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(l.ttl).UnixMilli(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#r) OR #o = :owner OR expires_at < :now"),
		ExpressionAttributeNames: map[string]string{
			"#r": "resource",
			"#o": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.owner},
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", ErrLeaseHeld, l.resource)
		}
		return fmt.Errorf("s3: acquire lease %s: %w", l.resource, err)
	}
	return nil
}

// Release gives the lease up if this owner holds it.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"resource": &types.AttributeValueMemberS{Value: l.resource},
		},
		ConditionExpression:      aws.String("#o = :owner"),
		ExpressionAttributeNames: map[string]string{"#o": "owner"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil
		}
		return fmt.Errorf("s3: release lease %s: %w", l.resource, err)
	}
	return nil
}

// Holder returns the current owner and expiry, or "" when unheld.
func (l *Lease) Holder(ctx context.Context) (string, time.Time, error) {
	resp, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.table),
		Key:            map[string]types.AttributeValue{"resource": &types.AttributeValueMemberS{Value: l.resource}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("s3: read lease %s: %w", l.resource, err)
	}
	if len(resp.Item) == 0 {
		return "", time.Time{}, nil
	}
	owner, ok := resp.Item["owner"].(*types.AttributeValueMemberS)
	if !ok {
		return "", time.Time{}, errors.New("s3: invalid lease owner attribute")
	}
	exp, ok := resp.Item["expires_at"].(*types.AttributeValueMemberN)
	if !ok {
		return "", time.Time{}, errors.New("s3: invalid lease expiry attribute")
	}
	ms, err := strconv.ParseInt(exp.Value, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("s3: parse lease expiry: %w", err)
	}
	return owner.Value, time.UnixMilli(ms), nil
}
