package dynamo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeItems is an in-memory stand-in for a single DynamoDB table.
// It understands the handful of expressions the repos emit.
type fakeItems struct {
	mu      sync.Mutex
	keys    []string
	items   map[string]map[string]types.AttributeValue
	failAll error
}

func newFakeItems(keyAttrs ...string) *fakeItems {
	return &fakeItems{keys: keyAttrs, items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeItems) id(key map[string]types.AttributeValue) string {
	parts := make([]string, 0, len(f.keys))
	for _, k := range f.keys {
		if s, ok := key[k].(*types.AttributeValueMemberS); ok {
			parts = append(parts, s.Value)
		}
	}
	return strings.Join(parts, "|")
}

func (f *fakeItems) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	return &dynamodb.GetItemOutput{Item: f.items[f.id(in.Key)]}, nil
}

func (f *fakeItems) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	id := f.id(in.Item)
	if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if _, ok := f.items[id]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeItems) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	id := f.id(in.Key)
	item, ok := f.items[id]
	if !ok {
		if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_exists") {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item = map[string]types.AttributeValue{}
		for k, v := range in.Key {
			item[k] = v
		}
		f.items[id] = item
	}
	if in.UpdateExpression != nil && strings.HasPrefix(*in.UpdateExpression, "ADD ") {
		return f.add(item, in)
	}
	for nameKey, attr := range in.ExpressionAttributeNames {
		item[attr] = in.ExpressionAttributeValues[":v"+strings.TrimPrefix(nameKey, "#f")]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

// add handles "ADD #name :delta", honouring an expiry guard bound to :now.
func (f *fakeItems) add(item map[string]types.AttributeValue, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	if now, ok := in.ExpressionAttributeValues[":now"]; ok {
		if number(item[in.ExpressionAttributeNames["#exp"]]) <= number(now) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	parts := strings.Fields(*in.UpdateExpression)
	if len(parts) != 3 {
		return nil, errors.New("fake: unsupported ADD expression")
	}
	attr := in.ExpressionAttributeNames[parts[1]]
	sum := number(item[attr]) + number(in.ExpressionAttributeValues[parts[2]])
	item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(sum, 10)}
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{attr: item[attr]}}, nil
}

func number(v types.AttributeValue) int64 {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	i, _ := strconv.ParseInt(n.Value, 10, 64)
	return i
}

func (f *fakeItems) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	delete(f.items, f.id(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query scans every item for an exact match on the single value placeholder.
func (f *fakeItems) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	attr, want, err := queryTarget(in)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []map[string]types.AttributeValue
	for _, id := range ids {
		if s, ok := f.items[id][attr].(*types.AttributeValueMemberS); ok && s.Value == want {
			out = append(out, f.items[id])
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func queryTarget(in *dynamodb.QueryInput) (string, string, error) {
	cond := *in.KeyConditionExpression
	lhs, rhs, ok := strings.Cut(cond, " = ")
	if !ok {
		return "", "", errors.New("fake: unsupported key condition")
	}
	if name, ok := in.ExpressionAttributeNames[lhs]; ok {
		lhs = name
	}
	v, ok := in.ExpressionAttributeValues[rhs].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", errors.New("fake: unsupported value")
	}
	return lhs, v.Value, nil
}
