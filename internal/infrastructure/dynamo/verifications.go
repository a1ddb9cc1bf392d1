package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-healthcare-api/internal/domain"
)

// purgeAfter is how long an expired code row is retained before the table TTL removes it.
const purgeAfter = 24 * time.Hour

// CreateVerificationCode appends a code row. code_id is a ULID, so user_id-code_id-index
// returns a user's codes in creation order.
func (v *view) CreateVerificationCode(ctx context.Context, c *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	item[fieldPurgeAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ExpiresAt.Add(purgeAfter).Unix(), 10)}
	return v.write(ctx,
		liveCheck(v.tables.Users, fieldUserID, c.UserID, fmt.Errorf("user not found: %w", domain.ErrNotFound)),
		putIfAbsent(v.tables.VerificationCodes, fieldCodeID, item, fmt.Errorf("verification code already exists: %w", domain.ErrConflict)),
	)
}

// FindActiveVerificationCode walks the user's codes newest first and judges only the newest of type t.
func (v *view) FindActiveVerificationCode(ctx context.Context, userID string, t domain.VerificationType, now time.Time) (*domain.VerificationCode, error) {
	p := dynamodb.NewQueryPaginator(v.api, &dynamodb.QueryInput{
		TableName:              aws.String(v.tables.VerificationCodes),
		IndexName:              aws.String(indexCodesByUserID),
		KeyConditionExpression: aws.String("#u = :u"),
		FilterExpression:       aws.String("#t = :t"),
		ExpressionAttributeNames: map[string]string{
			"#u": fieldUserID,
			"#t": fieldType,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
			":t": &types.AttributeValueMemberS{Value: string(t)},
		},
		ScanIndexForward: aws.Bool(false),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			continue
		}
		var c domain.VerificationCode
		if err := attributevalue.UnmarshalMap(page.Items[0], &c); err != nil {
			return nil, err
		}
		if c.Expired(now) {
			break
		}
		return &c, nil
	}
	return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
}
