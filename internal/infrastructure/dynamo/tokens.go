package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-healthcare-api/internal/domain"
)

// Access tokens are keyed by token_hash so authentication is a single GetItem.

func (v *view) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal access token: %w", err)
	}
	return v.write(ctx, putIfAbsent(v.tables.AccessTokens, fieldTokenHash, item,
		fmt.Errorf("access token already exists: %w", domain.ErrConflict)))
}

func (v *view) FindAccessToken(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	item, err := v.getItem(ctx, v.tables.AccessTokens, strKey(fieldTokenHash, tokenHash))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("access token not found: %w", domain.ErrNotFound)
	}
	var t domain.AccessToken
	if err := attributevalue.UnmarshalMap(item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (v *view) TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldLastUsedAt: at.UTC()})
	if err != nil {
		return err
	}
	ue.Names["#k"] = fieldTokenHash
	return v.write(ctx, op{
		item: types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(v.tables.AccessTokens),
			Key:                       strKey(fieldTokenHash, tokenHash),
			UpdateExpression:          aws.String(ue.Expr),
			ConditionExpression:       aws.String("attribute_exists(#k)"),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		}},
		onConflict: fmt.Errorf("access token not found: %w", domain.ErrNotFound),
	})
}
