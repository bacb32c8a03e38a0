package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-shop-api/internal/domain"
)

// KeyStore keeps confirmation keys in the user_verifications table.
// PK: user_id, SK: type (the purpose).
//
// DynamoDB TTL deletion runs lazily and can lag by hours, so Get also checks
// expires_at itself. Save replaces the whole item, which clears attempts.
type KeyStore struct {
	client    ItemAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

type KeyStoreOption func(*KeyStore)

// WithKeyStoreClock overrides the time source used for expiry.
func WithKeyStoreClock(now func() time.Time) KeyStoreOption {
	return func(s *KeyStore) { s.now = now }
}

func NewKeyStore(client ItemAPI, tableName string, ttl time.Duration, opts ...KeyStoreOption) *KeyStore {
	s := &KeyStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KeyStore) Save(ctx context.Context, subjectID string, purpose domain.Purpose, value string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode key value: %w", err)
	}
	rec := domain.ConfirmationRecord{
		UserID:    subjectID,
		Type:      string(purpose),
		Key:       domain.KeyFor(subjectID, purpose),
		Value:     string(payload),
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal confirmation record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	return nil
}

func (s *KeyStore) Get(ctx context.Context, subjectID string, purpose domain.Purpose) (string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            compositeKey(fieldUserID, subjectID, fieldType, string(purpose)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get key: %w", err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var rec domain.ConfirmationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", false, fmt.Errorf("unmarshal confirmation record: %w", err)
	}
	if s.now().Unix() >= rec.ExpiresAt {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal([]byte(rec.Value), &v); err != nil {
		return "", false, fmt.Errorf("decode key value: %w", err)
	}
	return v, true, nil
}

func (s *KeyStore) Delete(ctx context.Context, subjectID string, purpose domain.Purpose) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       compositeKey(fieldUserID, subjectID, fieldType, string(purpose)),
	})
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// Fail atomically adds one to the attempts attribute of a live record.
func (s *KeyStore) Fail(ctx context.Context, subjectID string, purpose domain.Purpose) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 compositeKey(fieldUserID, subjectID, fieldType, string(purpose)),
		UpdateExpression:    aws.String("ADD #n :one"),
		ConditionExpression: aws.String("attribute_exists(#uid) AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#n":   fieldAttempts,
			"#uid": fieldUserID,
			"#exp": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, nil
		}
		return 0, fmt.Errorf("count attempt: %w", err)
	}
	var n int
	if err := attributevalue.Unmarshal(out.Attributes[fieldAttempts], &n); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return n, nil
}
