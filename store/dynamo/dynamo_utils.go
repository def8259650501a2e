package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zlnvch/layerdeck/store"
)

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	if !devMode {
		// Production: default chain (task role, AWS endpoints)
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewFromConfig(cfg), nil
	}

	// Local DynamoDB accepts any static credentials
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.New(dynamodb.Options{
		Credentials:      cfg.Credentials,
		Region:           cfg.Region,
		EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
	}), nil
}

func hasTable(ctx context.Context, client *dynamodb.Client, tableName string) (bool, error) {
	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		for _, name := range page.TableNames {
			if name == tableName {
				return true, nil
			}
		}
	}
	return false, nil
}

func itemKey(pk string, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// getItem reads a single item of type T by PK and SK
func getItem[T any](dynamoStore *DynamoLayerdeckStore, ctx context.Context, pk string, sk string, consistentRead bool) (T, error) {
	var item T

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            itemKey(pk, sk),
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return item, fmt.Errorf("GetItem failed: %w", err)
	}
	if resp.Item == nil {
		return item, store.ErrItemNotFound
	}

	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return item, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

// putNewItem inserts item only if no item with the same PK exists yet.
// When keepExisting is set, a clash returns the stored item instead of
// ErrConditionFailed.
func putNewItem[T any](dynamoStore *DynamoLayerdeckStore, ctx context.Context, item T, keepExisting bool) (T, error) {
	var zero T

	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return zero, fmt.Errorf("marshal error: %w", err)
	}
	pk, okPK := avMap["PK"].(*types.AttributeValueMemberS)
	sk, okSK := avMap["SK"].(*types.AttributeValueMemberS)
	if !okPK || !okSK {
		return zero, errors.New("item is missing a string PK or SK")
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return item, nil
	}

	var cce *types.ConditionalCheckFailedException
	if !errors.As(err, &cce) {
		return zero, fmt.Errorf("failed to put item: %w", err)
	}
	if !keepExisting {
		return zero, store.ErrConditionFailed
	}

	existing, err := getItem[T](dynamoStore, ctx, pk.Value, sk.Value, true)
	if err != nil {
		return zero, fmt.Errorf("failed to get existing item: %w", err)
	}
	return existing, nil
}

// indexQuery selects the items of one GSI partition
type indexQuery struct {
	index   string
	pkField string
	pkValue string
	forward bool
	// 0 means no limit
	limit int32
}

func (q indexQuery) input(tableName string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(tableName),
		IndexName:              aws.String(q.index),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": q.pkField,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: q.pkValue},
		},
		ScanIndexForward: aws.Bool(q.forward),
	}
}

// queryIndex returns every item of type T in the partition, ordered by the
// index sort key. The index must project all attributes.
func queryIndex[T any](dynamoStore *DynamoLayerdeckStore, ctx context.Context, q indexQuery) ([]T, error) {
	results := []T{}

	input := q.input(dynamoStore.tableName)
	if q.limit > 0 {
		input.Limit = aws.Int32(q.limit)
	}

	// The page limit is per request, so the overall limit is enforced here too
	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)
	for paginator.HasMorePages() {
		if q.limit > 0 && len(results) >= int(q.limit) {
			break
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s failed: %w", q.index, err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}
		results = append(results, pageItems...)
	}

	if q.limit > 0 && len(results) > int(q.limit) {
		results = results[:q.limit]
	}
	return results, nil
}

// countIndex counts the items of a partition without fetching them
func countIndex(dynamoStore *DynamoLayerdeckStore, ctx context.Context, q indexQuery) (int, error) {
	input := q.input(dynamoStore.tableName)
	input.Select = types.SelectCount

	var total int32
	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s failed: %w", q.index, err)
		}
		total += page.Count
	}
	return int(total), nil
}

// writeBatchRequests sends up to 25 writes, retrying unprocessed ones with
// backoff. Whatever is still unprocessed on failure is returned as []T.
func writeBatchRequests[T any](dynamoStore *DynamoLayerdeckStore, ctx context.Context, requests []types.WriteRequest) ([]T, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	backoff := 50 * time.Millisecond
	for {
		resp, err := dynamoStore.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				dynamoStore.tableName: requests,
			},
		})
		if err != nil {
			return unmarshalUnprocessed[T](requests), fmt.Errorf("BatchWriteItem failed: %w", err)
		}

		requests = resp.UnprocessedItems[dynamoStore.tableName]
		if len(requests) == 0 {
			return nil, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unmarshalUnprocessed[T](requests), ctx.Err()
		case <-timer.C:
		}

		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func unmarshalUnprocessed[T any](reqs []types.WriteRequest) []T {
	failed := make([]T, 0, len(reqs))
	for _, wr := range reqs {
		var av map[string]types.AttributeValue
		switch {
		case wr.PutRequest != nil:
			av = wr.PutRequest.Item
		case wr.DeleteRequest != nil:
			// Deletes only carry the key
			av = wr.DeleteRequest.Key
		default:
			continue
		}

		var item T
		if err := attributevalue.UnmarshalMap(av, &item); err == nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// deleteItemWithCondition deletes an item by PK and SK. A non-empty
// conditionField must equal expectedValue, otherwise ErrConditionFailed is
// returned. A missing item is ErrItemNotFound.
func deleteItemWithCondition(dynamoStore *DynamoLayerdeckStore, ctx context.Context, pk string, sk string, conditionField string, expectedValue string) error {
	key := itemKey(pk, sk)

	input := &dynamodb.DeleteItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Key:                 key,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}
	if conditionField != "" {
		input.ConditionExpression = aws.String("attribute_exists(PK) AND #f = :val")
		input.ExpressionAttributeNames = map[string]string{"#f": conditionField}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":val": &types.AttributeValueMemberS{Value: expectedValue},
		}
	}

	_, err := dynamoStore.client.DeleteItem(ctx, input)
	if err == nil {
		return nil
	}

	var cce *types.ConditionalCheckFailedException
	if !errors.As(err, &cce) {
		return fmt.Errorf("delete failed: %w", err)
	}

	// Tell a missing item apart from a failed condition
	getResp, getErr := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       key,
	})
	if getErr != nil {
		return fmt.Errorf("delete failed, and GetItem check also failed: %w", getErr)
	}
	if getResp.Item == nil {
		return store.ErrItemNotFound
	}
	return store.ErrConditionFailed
}

// batchDeleteByIndexThrottled pages through a GSI partition and deletes the
// main table items in 25-item batches, waiting at least throttle per batch.
func batchDeleteByIndexThrottled(dynamoStore *DynamoLayerdeckStore, ctx context.Context, q indexQuery, throttle time.Duration) (int, error) {
	const queryPageSize int32 = 200

	deleted := 0
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		input := q.input(dynamoStore.tableName)
		input.Limit = aws.Int32(queryPageSize)
		input.ExclusiveStartKey = lastEvaluatedKey
		input.ProjectionExpression = aws.String("PK, SK")

		resp, err := dynamoStore.client.Query(ctx, input)
		if err != nil {
			return deleted, fmt.Errorf("query %s failed: %w", q.index, err)
		}

		delRequests := make([]types.WriteRequest, 0, len(resp.Items))
		for _, item := range resp.Items {
			pkAttr, okPK := item["PK"]
			skAttr, okSK := item["SK"]
			if !okPK || !okSK {
				continue
			}
			delRequests = append(delRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
				},
			})
		}

		for start := 0; start < len(delRequests); start += 25 {
			end := min(start+25, len(delRequests))
			batchStart := time.Now()

			if _, err := writeBatchRequests[map[string]types.AttributeValue](dynamoStore, ctx, delRequests[start:end]); err != nil {
				return deleted, fmt.Errorf("batch delete failed: %w", err)
			}
			deleted += end - start

			if wait := throttle - time.Since(batchStart); wait > 0 {
				select {
				case <-ctx.Done():
					return deleted, ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		lastEvaluatedKey = resp.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			return deleted, nil
		}
	}
}

// updateItem rewrites the listed attributes of an existing item and returns
// the stored result. Attributes that marshal to NULL are removed.
func updateItem[T any](dynamoStore *DynamoLayerdeckStore, ctx context.Context, item T, fieldsToUpdate []string) (T, error) {
	var zero T

	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return zero, fmt.Errorf("marshal error: %w", err)
	}
	pkAttr, okPK := avMap["PK"]
	skAttr, okSK := avMap["SK"]
	if !okPK || !okSK {
		return zero, errors.New("item is missing PK or SK")
	}

	var sets, removes []string
	exprAttrNames := make(map[string]string)
	exprAttrValues := make(map[string]types.AttributeValue)
	for _, field := range fieldsToUpdate {
		if field == "PK" || field == "SK" {
			continue
		}
		val, ok := avMap[field]
		if !ok {
			continue
		}

		exprAttrNames["#"+field] = field
		if _, isNull := val.(*types.AttributeValueMemberNULL); isNull {
			removes = append(removes, "#"+field)
			continue
		}
		sets = append(sets, fmt.Sprintf("#%s = :%s", field, field))
		exprAttrValues[":"+field] = val
	}
	if len(sets) == 0 && len(removes) == 0 {
		return zero, errors.New("nothing to update")
	}

	var updateExpr []string
	if len(sets) > 0 {
		updateExpr = append(updateExpr, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		updateExpr = append(updateExpr, "REMOVE "+strings.Join(removes, ", "))
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(dynamoStore.tableName),
		Key:                      map[string]types.AttributeValue{"PK": pkAttr, "SK": skAttr},
		UpdateExpression:         aws.String(strings.Join(updateExpr, " ")),
		ExpressionAttributeNames: exprAttrNames,
		ConditionExpression:      aws.String("attribute_exists(PK) AND attribute_exists(SK)"),
		ReturnValues:             types.ReturnValueAllNew,
	}
	if len(exprAttrValues) > 0 {
		input.ExpressionAttributeValues = exprAttrValues
	}

	out, err := dynamoStore.client.UpdateItem(ctx, input)
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return zero, store.ErrItemNotFound
		}
		return zero, fmt.Errorf("update failed: %w", err)
	}

	var updated T
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return zero, fmt.Errorf("failed to unmarshal updated item: %w", err)
	}
	return updated, nil
}

// incrementCounter atomically adds count to a numeric attribute of an
// existing item and stamps timeField with now. A missing item is
// ErrItemNotFound so deleted records are never recreated partially.
func incrementCounter(dynamoStore *DynamoLayerdeckStore, ctx context.Context, pk string, sk string, counterField string, count int, timeField string, now int64) error {
	_, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(dynamoStore.tableName),
		Key:              itemKey(pk, sk),
		UpdateExpression: aws.String("SET #c = if_not_exists(#c, :zero) + :val, #t = :now"),
		ExpressionAttributeNames: map[string]string{
			"#c": counterField,
			"#t": timeField,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":val":  &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return store.ErrItemNotFound
		}
		return fmt.Errorf("increment counter failed: %w", err)
	}
	return nil
}
