// Package dynamo implements txlog.Log on DynamoDB.
//
// DynamoDB conditional writes provide the compare-and-swap semantics
// plain object stores lack, so multiple processes can safely index the
// same table. Each commit is one item keyed (table_id, version); the
// commit succeeds only if its version does not exist yet.
//
// Table schema:
//   - Partition key: table_id (string)
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name otree-commits \
//	  --attribute-definitions AttributeName=table_id,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=table_id,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/otree/codec"
	"github.com/hupe1980/otree/core"
	"github.com/hupe1980/otree/cube"
	"github.com/hupe1980/otree/txlog"
)

// Client is the DynamoDB surface the log uses; satisfied by
// *dynamodb.Client and easy to fake in tests.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Log implements txlog.Log as an event-sourced commit sequence in
// DynamoDB: Snapshot folds all commits of a table, Commit appends one
// with a conditional put.
type Log struct {
	client    Client
	tableName string
	codec     codec.Codec
}

// NewLog creates a DynamoDB-backed log writing to the given DynamoDB
// table.
func NewLog(client Client, tableName string) *Log {
	return &Log{client: client, tableName: tableName, codec: codec.JSON{}}
}

// Snapshot implements txlog.Log by folding every committed update.
func (l *Log) Snapshot(ctx context.Context, tableID core.TableID) (txlog.Snapshot, error) {
	snap := txlog.Snapshot{TableID: tableID}
	updates, err := l.updatesAfter(ctx, tableID, 0)
	if err != nil {
		return txlog.Snapshot{}, err
	}
	for _, u := range updates {
		snap = txlog.Apply(snap, u)
	}
	return snap, nil
}

// Commit implements txlog.Log via a conditional put on the version sort
// key.
func (l *Log) Commit(ctx context.Context, tableID core.TableID, update txlog.Update) error {
	payload, err := l.codec.Marshal(update)
	if err != nil {
		return fmt.Errorf("dynamo: encode update: %w", err)
	}

	version := update.BaseVersion + 1
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"table_id": &types.AttributeValueMemberS{Value: string(tableID)},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
			"update":   &types.AttributeValueMemberB{Value: payload},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return fmt.Errorf("dynamo: commit version %d: %w", version, err)
	}

	// Lost the race: collect what the winners touched.
	winners, qerr := l.updatesAfter(ctx, tableID, update.BaseVersion)
	if qerr != nil {
		return qerr
	}
	dims := update.Changes.Revision.Dimensions()
	touched := cube.Set{}
	head := update.BaseVersion
	for _, w := range winners {
		head = w.BaseVersion + 1
		touched = touched.Union(txlog.TouchedSet(dims, w.Touched))
	}
	return &txlog.ConflictError{
		TableID:     tableID,
		BaseVersion: update.BaseVersion,
		HeadVersion: head,
		Touched:     touched,
	}
}

// updatesAfter returns the committed updates with version > after, in
// ascending version order.
func (l *Log) updatesAfter(ctx context.Context, tableID core.TableID, after int64) ([]txlog.Update, error) {
	var updates []txlog.Update

	var startKey map[string]types.AttributeValue
	for {
		resp, err := l.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(l.tableName),
			KeyConditionExpression: aws.String("table_id = :tid AND version > :after"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tid":   &types.AttributeValueMemberS{Value: string(tableID)},
				":after": &types.AttributeValueMemberN{Value: strconv.FormatInt(after, 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo: query commits: %w", err)
		}
		for _, item := range resp.Items {
			blob, ok := item["update"].(*types.AttributeValueMemberB)
			if !ok {
				return nil, fmt.Errorf("dynamo: commit item missing update payload")
			}
			var u txlog.Update
			if err := l.codec.Unmarshal(blob.Value, &u); err != nil {
				return nil, fmt.Errorf("dynamo: decode update: %w", err)
			}
			updates = append(updates, u)
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return updates, nil
}
