package s3

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryDDB evaluates the two condition expressions Lease issues.
type memoryDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMemoryDDB() *memoryDDB {
	return &memoryDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func str(v types.AttributeValue) string {
	switch a := v.(type) {
	case *types.AttributeValueMemberS:
		return a.Value
	case *types.AttributeValueMemberN:
		return a.Value
	}
	return ""
}

func num(v types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(str(v), 10, 64)
	return n
}

func (m *memoryDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := aws.ToString(in.TableName) + "/" + str(in.Item["resource"])
	if cur, ok := m.items[key]; ok && strings.Contains(aws.ToString(in.ConditionExpression), "attribute_not_exists") {
		sameOwner := str(cur["owner"]) == str(in.ExpressionAttributeValues[":owner"])
		expired := num(cur["expires_at"]) < num(in.ExpressionAttributeValues[":now"])
		if !sameOwner && !expired {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("held")}
		}
	}
	m.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memoryDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: m.items[aws.ToString(in.TableName)+"/"+str(in.Key["resource"])]}, nil
}

func (m *memoryDDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := aws.ToString(in.TableName) + "/" + str(in.Key["resource"])
	cur, ok := m.items[key]
	if !ok || str(cur["owner"]) != str(in.ExpressionAttributeValues[":owner"]) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("not owner")}
	}
	delete(m.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestLease_Exclusive(t *testing.T) {
	ctx := context.Background()
	ddb := newMemoryDDB()
	now := time.UnixMilli(1_000_000)
	clock := func() time.Time { return now }

	a := NewLease(ddb, "leases", "bucket/world", "a", time.Minute, WithLeaseClock(clock))
	b := NewLease(ddb, "leases", "bucket/world", "b", time.Minute, WithLeaseClock(clock))

	require.NoError(t, a.Acquire(ctx))
	require.NoError(t, a.Acquire(ctx), "renewal by the holder")
	assert.ErrorIs(t, b.Acquire(ctx), ErrLeaseHeld)

	owner, exp, err := b.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", owner)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), exp.UnixMilli())

	// Releasing someone else's lease is a no-op.
	require.NoError(t, b.Release(ctx))
	assert.ErrorIs(t, b.Acquire(ctx), ErrLeaseHeld)

	require.NoError(t, a.Release(ctx))
	require.NoError(t, b.Acquire(ctx))
}

func TestLease_ExpiredTakeover(t *testing.T) {
	ctx := context.Background()
	ddb := newMemoryDDB()
	now := time.UnixMilli(1_000_000)
	clock := func() time.Time { return now }

	a := NewLease(ddb, "leases", "r", "a", time.Second, WithLeaseClock(clock))
	b := NewLease(ddb, "leases", "r", "b", time.Second, WithLeaseClock(clock))

	require.NoError(t, a.Acquire(ctx))
	now = now.Add(2 * time.Second)
	require.NoError(t, b.Acquire(ctx))

	owner, _, err := a.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", owner)
}
