package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const DefaultDynamoTable = "gptcli"

// DynamoAPI is the subset of the DynamoDB client the store exercises.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore persists sessions in a DynamoDB table keyed by the stringified
// user id, for the stateless webhook mode.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoStore{client: client, table: table}
}

type dynamoItem struct {
	ID       string  `dynamodbav:"id"`
	UserData Session `dynamodbav:"user_data"`
}

func (s *DynamoStore) Get(ctx context.Context, userID int64) (Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       dynamoKey(userID),
	})
	if err != nil {
		return Session{}, fmt.Errorf("dynamo get %d: %w", userID, err)
	}
	if out.Item == nil {
		return Session{}, nil
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Session{}, fmt.Errorf("dynamo decode %d: %w", userID, err)
	}
	return item.UserData, nil
}

func (s *DynamoStore) Put(ctx context.Context, userID int64, sess Session) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		ID:       strconv.FormatInt(userID, 10),
		UserData: sess,
	})
	if err != nil {
		return fmt.Errorf("dynamo encode %d: %w", userID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamo put %d: %w", userID, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       dynamoKey(userID),
	}); err != nil {
		return fmt.Errorf("dynamo delete %d: %w", userID, err)
	}
	return nil
}

func dynamoKey(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: strconv.FormatInt(userID, 10)},
	}
}
