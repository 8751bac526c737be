// Package dynamodb provides the DynamoDB-backed key-value store.
package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	pkgerrors "careflow-backend/pkg/errors"
)

// kvItem is the single-table record shape: the storage key as partition
// key and the opaque JSON value alongside it.
type kvItem struct {
	PK    string `dynamodbav:"PK"`
	Value []byte `dynamodbav:"Value"`
}

// KVStore implements ports.KeyValueStore over one DynamoDB table
type KVStore struct {
	client    *awsdynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewKVStore creates a store over the given table
func NewKVStore(client *awsdynamodb.Client, tableName string, logger *zap.Logger) *KVStore {
	return &KVStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Get implements ports.KeyValueStore
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := s.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		s.logger.Error("dynamodb get failed", zap.String("key", key), zap.Error(err))
		return nil, false, pkgerrors.NewStorageError("failed to read key", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var item kvItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, pkgerrors.NewStorageError("failed to decode stored item", err)
	}
	return item.Value, true, nil
}

// Set implements ports.KeyValueStore
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(kvItem{PK: key, Value: value})
	if err != nil {
		return pkgerrors.NewStorageError("failed to encode item", err)
	}

	_, err = s.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		s.logger.Error("dynamodb put failed", zap.String("key", key), zap.Error(err))
		return pkgerrors.NewStorageError("failed to write key", err)
	}
	return nil
}

// Remove implements ports.KeyValueStore
func (s *KVStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		s.logger.Error("dynamodb delete failed", zap.String("key", key), zap.Error(err))
		return pkgerrors.NewStorageError("failed to remove key", err)
	}
	return nil
}
