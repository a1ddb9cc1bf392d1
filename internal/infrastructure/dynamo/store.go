package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-healthcare-api/internal/config"
	"github.com/go-healthcare-api/internal/domain"
)

// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
const maxTransactItems = 100

// Store is the DynamoDB domain.TxStore. Every write is a TransactWriteItems call so that
// uniqueness locks and reference checks commit together with the row they guard.
type Store struct {
	*view
}

func NewStore(api API, tables config.DynamoTables) *Store {
	v := &view{api: api, tables: tables}
	v.write = v.commit
	return &Store{view: v}
}

// RunInTx buffers every write made through tx and commits them in a single transaction
// once fn returns nil. Reads inside fn observe committed state only.
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.CredentialStore) error) error {
	var buffered []op
	tx := &view{api: s.api, tables: s.tables, write: func(_ context.Context, ops ...op) error {
		buffered = append(buffered, ops...)
		return nil
	}}
	if err := fn(tx); err != nil {
		return err
	}
	if len(buffered) == 0 {
		return nil
	}
	return s.commit(ctx, buffered...)
}

// op is one transactional action plus the error reported when its condition fails.
type op struct {
	item       types.TransactWriteItem
	onConflict error
}

// view implements domain.CredentialStore. Writes go through write, which either commits
// immediately or buffers into an open transaction.
type view struct {
	api    API
	tables config.DynamoTables
	write  func(ctx context.Context, ops ...op) error
}

func (v *view) commit(ctx context.Context, ops ...op) error {
	if len(ops) > maxTransactItems {
		return fmt.Errorf("transaction has %d actions, limit is %d", len(ops), maxTransactItems)
	}
	items := make([]types.TransactWriteItem, len(ops))
	for i, o := range ops {
		items[i] = o.item
	}
	_, err := v.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return cancellationError(err, ops)
	}
	return nil
}

// cancellationError maps a failed condition to the error registered on the offending action.
func cancellationError(err error, ops []op) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return err
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" || i >= len(ops) {
			continue
		}
		if ops[i].onConflict != nil {
			return ops[i].onConflict
		}
		return fmt.Errorf("condition failed: %w", domain.ErrConflict)
	}
	return err
}

func (v *view) getItem(ctx context.Context, table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out, err := v.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

func putIfAbsent(table, keyAttr string, item map[string]types.AttributeValue, onConflict error) op {
	return op{
		item: types.TransactWriteItem{Put: &types.Put{
			TableName:                aws.String(table),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#k)"),
			ExpressionAttributeNames: map[string]string{"#k": keyAttr},
		}},
		onConflict: onConflict,
	}
}

// liveCheck asserts that the keyed item exists and is not soft-deleted.
func liveCheck(table, keyAttr, keyValue string, onMissing error) op {
	return op{
		item: types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:           aws.String(table),
			Key:                 strKey(keyAttr, keyValue),
			ConditionExpression: aws.String("attribute_exists(#k) AND attribute_not_exists(#d)"),
			ExpressionAttributeNames: map[string]string{
				"#k": keyAttr,
				"#d": fieldDeletedAt,
			},
		}},
		onConflict: onMissing,
	}
}
