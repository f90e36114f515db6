package dynamo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tablestore/store"
)

// tokenKey is the LastEvaluatedKey of a base-table query or scan.
type tokenKey struct {
	PartitionKey string `dynamodbav:"PartitionKey" json:"pk"`
	RowKey       string `dynamodbav:"RowKey" json:"rk"`
}

func encodeToken(lastKey map[string]types.AttributeValue) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}
	var k tokenKey
	if err := attributevalue.UnmarshalMap(lastKey, &k); err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	buf, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func decodeToken(token string) (map[string]types.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}
	buf, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid continuation token: %w", err)
	}
	var k tokenKey
	if err := json.Unmarshal(buf, &k); err != nil {
		return nil, fmt.Errorf("invalid continuation token: %w", err)
	}
	return attributevalue.MarshalMap(k)
}

// QueryEntities issues a key-condition Query when the partition key is given
// and a Scan otherwise. A row-key-only filter becomes a scan filter.
func (s *Service) QueryEntities(ctx context.Context, name string, q store.PageQuery, token string) (store.Page, error) {
	startKey, err := decodeToken(token)
	if err != nil {
		return store.Page{}, err
	}

	var limit *int32
	if q.Limit > 0 {
		limit = aws.Int32(q.Limit)
	}

	var items []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue

	if q.Filter.PartitionKey != "" {
		input := &dynamodb.QueryInput{
			TableName:              s.tableName(name),
			KeyConditionExpression: aws.String("#pk = :pk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": store.AttrPartitionKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: q.Filter.PartitionKey},
			},
			ExclusiveStartKey: startKey,
			Limit:             limit,
		}
		if q.Filter.RowKey != "" {
			input.KeyConditionExpression = aws.String("#pk = :pk AND #rk = :rk")
			input.ExpressionAttributeNames["#rk"] = store.AttrRowKey
			input.ExpressionAttributeValues[":rk"] = &types.AttributeValueMemberS{Value: q.Filter.RowKey}
		}

		out, err := s.api.Query(ctx, input)
		if err != nil {
			return store.Page{}, mapError(err, store.Batch{})
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	} else {
		input := &dynamodb.ScanInput{
			TableName:         s.tableName(name),
			ExclusiveStartKey: startKey,
			Limit:             limit,
		}
		if q.Filter.RowKey != "" {
			input.FilterExpression = aws.String("#rk = :rk")
			input.ExpressionAttributeNames = map[string]string{"#rk": store.AttrRowKey}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":rk": &types.AttributeValueMemberS{Value: q.Filter.RowKey},
			}
		}

		out, err := s.api.Scan(ctx, input)
		if err != nil {
			return store.Page{}, mapError(err, store.Batch{})
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	}

	next, err := encodeToken(lastKey)
	if err != nil {
		return store.Page{}, err
	}

	page := store.Page{
		Entries:           make([]store.Record, len(items)),
		ContinuationToken: next,
	}
	for i, item := range items {
		page.Entries[i] = store.Record(item)
	}
	return page, nil
}
