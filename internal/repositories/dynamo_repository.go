package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the slice of the DynamoDB client the gateway uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// The cart is stored as one JSON attribute so decimals keep their exact form.
type dynamoCartRecord struct {
	UserID    string `dynamodbav:"user_id"`
	Document  string `dynamodbav:"document"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

type dynamoCartGateway struct {
	client  DynamoAPI
	table   string
	timeout time.Duration
}

func NewDynamoClient(ctx context.Context, cfg config.DynamoDB) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func NewDynamoCartGateway(client DynamoAPI, table string, timeout time.Duration) CartGateway {
	return &dynamoCartGateway{client: client, table: table, timeout: timeout}
}

func (r *dynamoCartGateway) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func (r *dynamoCartGateway) Load(ctx context.Context, userID string) (*models.Cart, error) {
	dCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.GetItem(dCtx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classifyDynamo(dCtx, "get item", err)
	}

	if len(out.Item) == 0 {
		return nil, ErrCartNotFound
	}

	var record dynamoCartRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart record: %w", err)
	}

	cart := &models.Cart{}
	if err := json.Unmarshal([]byte(record.Document), cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart document: %w", err)
	}

	return cart, nil
}

func (r *dynamoCartGateway) Save(ctx context.Context, cart *models.Cart) error {
	document, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart document: %w", err)
	}

	item, err := attributevalue.MarshalMap(dynamoCartRecord{
		UserID:    cart.UserID,
		Document:  string(document),
		UpdatedAt: cart.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cart record: %w", err)
	}

	dCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.PutItem(dCtx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return classifyDynamo(dCtx, "put item", err)
	}

	return nil
}

func (r *dynamoCartGateway) Delete(ctx context.Context, userID string) error {
	dCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.DeleteItem(dCtx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       r.key(userID),
	}); err != nil {
		return classifyDynamo(dCtx, "delete item", err)
	}

	return nil
}

func (r *dynamoCartGateway) Ping(ctx context.Context) error {
	dCtx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.DescribeTable(dCtx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)}); err != nil {
		return unavailable("describe table", err)
	}

	return nil
}

func classifyDynamo(ctx context.Context, op string, err error) error {
	if exceededBound(ctx) {
		return unavailable(op, err)
	}

	var (
		throughput  *types.ProvisionedThroughputExceededException
		limit       *types.RequestLimitExceeded
		internal    *types.InternalServerError
		maxAttempts *retry.MaxAttemptsError
	)

	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) ||
		errors.As(err, &maxAttempts) || isTransportFailure(err) {
		return unavailable(op, err)
	}

	return fmt.Errorf("dynamodb %s: %w", op, err)
}
