package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-healthcare-api/internal/domain"
)

type roleNameLock struct {
	Name   domain.RoleName `dynamodbav:"name"`
	RoleID string          `dynamodbav:"role_id"`
}

// CreateRole writes the role row together with its role_names lock item, so a name is
// held by at most one role even when several processes seed at once.
func (v *view) CreateRole(ctx context.Context, r *domain.Role) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal role: %w", err)
	}
	lock, err := attributevalue.MarshalMap(roleNameLock{Name: r.Name, RoleID: r.RoleID})
	if err != nil {
		return fmt.Errorf("marshal role name lock: %w", err)
	}
	return v.write(ctx,
		putIfAbsent(v.tables.Roles, fieldRoleID, item, fmt.Errorf("role %s already exists: %w", r.RoleID, domain.ErrConflict)),
		putIfAbsent(v.tables.RoleNames, fieldName, lock, fmt.Errorf("role %s already exists: %w", r.Name, domain.ErrConflict)),
	)
}

func (v *view) ListRoles(ctx context.Context) ([]domain.Role, error) {
	p := dynamodb.NewScanPaginator(v.api, &dynamodb.ScanInput{
		TableName:                aws.String(v.tables.Roles),
		FilterExpression:         aws.String("attribute_not_exists(#d)"),
		ExpressionAttributeNames: map[string]string{"#d": fieldDeletedAt},
	})
	roles := []domain.Role{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Role
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		roles = append(roles, batch...)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// FindRoleByName queries name-index. "name" is a reserved word, hence the placeholder.
func (v *view) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	p := dynamodb.NewQueryPaginator(v.api, &dynamodb.QueryInput{
		TableName:              aws.String(v.tables.Roles),
		IndexName:              aws.String(indexRoleName),
		KeyConditionExpression: aws.String("#n = :n"),
		FilterExpression:       aws.String("attribute_not_exists(#d)"),
		ExpressionAttributeNames: map[string]string{
			"#n": fieldName,
			"#d": fieldDeletedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: string(name)},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			continue
		}
		var r domain.Role
		if err := attributevalue.UnmarshalMap(page.Items[0], &r); err != nil {
			return nil, err
		}
		return &r, nil
	}
	return nil, fmt.Errorf("role %s not found: %w", name, domain.ErrNotFound)
}

// SetUserRoles replaces the role_user item keyed by user_id. The referenced role must be live.
func (v *view) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	switch len(roleIDs) {
	case 0:
		return v.write(ctx, op{item: types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(v.tables.RoleUser),
			Key:       strKey(fieldUserID, userID),
		}}})
	case 1:
	default:
		return fmt.Errorf("a user holds exactly one role: %w", domain.ErrConflict)
	}

	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(domain.RoleUser{UserID: userID, RoleID: roleIDs[0], CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("marshal role_user: %w", err)
	}
	return v.write(ctx,
		liveCheck(v.tables.Roles, fieldRoleID, roleIDs[0], fmt.Errorf("role not found: %w", domain.ErrNotFound)),
		op{item: types.TransactWriteItem{Put: &types.Put{TableName: aws.String(v.tables.RoleUser), Item: item}}},
	)
}

func (v *view) UserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	item, err := v.getItem(ctx, v.tables.RoleUser, strKey(fieldUserID, userID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []domain.Role{}, nil
	}
	var link domain.RoleUser
	if err := attributevalue.UnmarshalMap(item, &link); err != nil {
		return nil, err
	}
	if link.DeletedAt != nil {
		return []domain.Role{}, nil
	}

	item, err = v.getItem(ctx, v.tables.Roles, strKey(fieldRoleID, link.RoleID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []domain.Role{}, nil
	}
	var r domain.Role
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, err
	}
	if r.DeletedAt != nil {
		return []domain.Role{}, nil
	}
	return []domain.Role{r}, nil
}
