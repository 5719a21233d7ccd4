package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/fusego/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB holds committed versions per base_uri, newest first.
type fakeDDB struct {
	items       map[string][]map[string]types.AttributeValue
	failNextPut bool
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string][]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failNextPut {
		f.failNextPut = false

		return nil, &types.ConditionalCheckFailedException{Message: aws.String("version exists")}
	}

	uri := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	f.items[uri] = append([]map[string]types.AttributeValue{params.Item}, f.items[uri]...)

	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	uri := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	items := f.items[uri]
	if len(items) > 1 {
		items = items[:1]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestDDBPointerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyReturnsNotFound", func(t *testing.T) {
		store := NewDDBPointerStore(newFakeDDB(), "commits", "s3://bucket/prefix")

		_, err := store.Current(ctx)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		store := NewDDBPointerStore(newFakeDDB(), "commits", "s3://bucket/prefix")

		require.NoError(t, store.SetCurrent(ctx, "snapshot-1.fsg"))

		name, err := store.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "snapshot-1.fsg", name)

		require.NoError(t, store.SetCurrent(ctx, "snapshot-2.fsg"))

		name, err = store.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "snapshot-2.fsg", name)
	})

	t.Run("VersionsIncrease", func(t *testing.T) {
		ddb := newFakeDDB()
		store := NewDDBPointerStore(ddb, "commits", "s3://bucket/prefix")

		require.NoError(t, store.SetCurrent(ctx, "snapshot-1.fsg"))
		require.NoError(t, store.SetCurrent(ctx, "snapshot-2.fsg"))

		latest := ddb.items["s3://bucket/prefix"][0]
		assert.Equal(t, "2", latest["version"].(*types.AttributeValueMemberN).Value)
	})

	t.Run("ConcurrentCommitDetected", func(t *testing.T) {
		ddb := newFakeDDB()
		store := NewDDBPointerStore(ddb, "commits", "s3://bucket/prefix")

		ddb.failNextPut = true

		err := store.SetCurrent(ctx, "snapshot-1.fsg")
		assert.ErrorIs(t, err, ErrConcurrentCommit)
	})
}
