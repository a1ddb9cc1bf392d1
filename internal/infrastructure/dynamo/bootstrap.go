package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-healthcare-api/internal/config"
)

// BootstrapAPI is the subset of the DynamoDB client Bootstrap calls.
type BootstrapAPI interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// tableActiveTimeout bounds the wait for a new table and its GSIs to become ACTIVE.
var tableActiveTimeout = 5 * time.Minute

// waiterOptions tunes the TableExists poll interval. Tests shorten it.
var waiterOptions = func(*dynamodb.TableExistsWaiterOptions) {}

// Bootstrap creates the credential tables and GSIs if they don't already exist and waits
// until every table is ACTIVE. Safe to call on every startup; existing tables are skipped.
func Bootstrap(ctx context.Context, client BootstrapAPI, tables config.DynamoTables) error {
	inputs := []*dynamodb.CreateTableInput{
		hashTable(tables.Users, fieldUserID),
		// user_emails and role_names hold one lock item per value so uniqueness is enforced at commit.
		hashTable(tables.UserEmails, fieldEmail),
		hashTable(tables.RoleNames, fieldName),
		hashTable(tables.RoleUser, fieldUserID),
		hashTable(tables.AccessTokens, fieldTokenHash),
	}

	roles := hashTable(tables.Roles, fieldRoleID)
	roles.AttributeDefinitions = append(roles.AttributeDefinitions,
		types.AttributeDefinition{AttributeName: aws.String(fieldName), AttributeType: types.ScalarAttributeTypeS})
	roles.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{gsi(indexRoleName, fieldName, "")}
	inputs = append(inputs, roles)

	codes := hashTable(tables.VerificationCodes, fieldCodeID)
	codes.AttributeDefinitions = append(codes.AttributeDefinitions,
		types.AttributeDefinition{AttributeName: aws.String(fieldUserID), AttributeType: types.ScalarAttributeTypeS})
	codes.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{gsi(indexCodesByUserID, fieldUserID, fieldCodeID)}
	inputs = append(inputs, codes)

	for _, in := range inputs {
		if err := createTable(ctx, client, in); err != nil {
			return err
		}
	}
	waiter := dynamodb.NewTableExistsWaiter(client, waiterOptions)
	for _, in := range inputs {
		err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName}, tableActiveTimeout)
		if err != nil {
			return fmt.Errorf("wait for table %s: %w", aws.ToString(in.TableName), err)
		}
	}
	enableTTL(ctx, client, tables.VerificationCodes, fieldPurgeAt)
	return nil
}

func hashTable(name, hashKey string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
	}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

// createTable treats an existing table as success; it may still be CREATING, which the
// caller's wait covers.
func createTable(ctx context.Context, client BootstrapAPI, input *dynamodb.CreateTableInput) error {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		var riue *types.ResourceInUseException
		if errors.As(err, &riue) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", aws.ToString(input.TableName), err)
	}
	slog.Info("created table", "table", aws.ToString(input.TableName))
	return nil
}

func enableTTL(ctx context.Context, client BootstrapAPI, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", tableName, "err", err)
	}
}
