package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/noah-isme/quote-desk-api/internal/models"
)

// dynamoAPI is the subset of the DynamoDB client used by the quote store.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type quoteItem struct {
	ID        string `dynamodbav:"id"`
	Title     string `dynamodbav:"title"`
	Content   string `dynamodbav:"content"`
	Email     string `dynamodbav:"email"`
	Service   string `dynamodbav:"service"`
	Status    string `dynamodbav:"status"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// QuoteDynamoRepository stores quotes in a DynamoDB table keyed by id.
//
// List and CountByStatus scan the whole table and filter in memory. That is
// fine for a moderation desk holding thousands of requests, not millions.
type QuoteDynamoRepository struct {
	ddb       dynamoAPI
	tableName string
	observer  QueryObserver
}

// NewQuoteDynamoRepository constructs the repository. observer may be nil.
func NewQuoteDynamoRepository(ddb dynamoAPI, tableName string, observer QueryObserver) *QuoteDynamoRepository {
	if tableName == "" {
		tableName = "quotes"
	}
	return &QuoteDynamoRepository{ddb: ddb, tableName: tableName, observer: observer}
}

// Create writes a new quote; an existing id is rejected by the condition.
func (r *QuoteDynamoRepository) Create(ctx context.Context, quote *models.Quote) error {
	defer r.observe("quotes.create", time.Now())
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	if quote.Status == "" {
		quote.Status = models.QuoteStatusPending
	}
	now := time.Now().UTC()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now

	av, err := attributevalue.MarshalMap(toQuoteItem(*quote))
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		return fmt.Errorf("create quote: %w", err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows when the quote does not exist, matching the SQL store.
func (r *QuoteDynamoRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	defer r.observe("quotes.get", time.Now())
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            quoteKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, sql.ErrNoRows
	}
	var it quoteItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	quote := fromQuoteItem(it)
	return &quote, nil
}

// List scans the table, then filters, sorts and pages in memory.
func (r *QuoteDynamoRepository) List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, int, error) {
	defer r.observe("quotes.list", time.Now())
	all, err := r.scanAll(ctx)
	if err != nil {
		return nil, 0, err
	}

	allowed := make(map[models.QuoteStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		allowed[s] = true
	}
	needle := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]models.Quote, 0, len(all))
	for _, q := range all {
		if !allowed[q.Status] {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(q.Title), needle) && !strings.Contains(strings.ToLower(q.Content), needle) {
			continue
		}
		matched = append(matched, q)
	}

	asc := strings.EqualFold(filter.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareQuotes(matched[i], matched[j], filter.SortBy)
		if asc {
			return c < 0
		}
		return c > 0
	})

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []models.Quote{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// CountByStatus tallies every quote by status.
func (r *QuoteDynamoRepository) CountByStatus(ctx context.Context) (models.QuoteCounts, error) {
	defer r.observe("quotes.count_by_status", time.Now())
	all, err := r.scanAll(ctx)
	if err != nil {
		return models.QuoteCounts{}, err
	}
	var counts models.QuoteCounts
	for _, q := range all {
		counts.Add(q.Status, 1)
	}
	return counts, nil
}

// UpdateStatus sets the moderation status. sql.ErrNoRows when the id is unknown.
func (r *QuoteDynamoRepository) UpdateStatus(ctx context.Context, id string, status models.QuoteStatus) error {
	defer r.observe("quotes.update_status", time.Now())
	return r.update(ctx, id, "status", string(status))
}

// UpdateTitle renames the quote. sql.ErrNoRows when the id is unknown.
func (r *QuoteDynamoRepository) UpdateTitle(ctx context.Context, id, title string) error {
	defer r.observe("quotes.update_title", time.Now())
	return r.update(ctx, id, "title", title)
}

// Delete removes the item. sql.ErrNoRows when the id is unknown.
func (r *QuoteDynamoRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("quotes.delete", time.Now())
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      quoteKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete quote: %w", err)
	}
	return nil
}

func (r *QuoteDynamoRepository) update(ctx context.Context, id, attribute, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 quoteKey(id),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		UpdateExpression:    aws.String("SET #attr = :value, #updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#id":         "id",
			"#attr":       attribute,
			"#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value":      &types.AttributeValueMemberS{Value: value},
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update quote %s: %w", attribute, err)
	}
	return nil
}

func (r *QuoteDynamoRepository) scanAll(ctx context.Context) ([]models.Quote, error) {
	var (
		quotes []models.Quote
		start  map[string]types.AttributeValue
	)
	for {
		out, err := r.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan quotes: %w", err)
		}
		var items []quoteItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal quotes: %w", err)
		}
		for _, it := range items {
			quotes = append(quotes, fromQuoteItem(it))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return quotes, nil
		}
		start = out.LastEvaluatedKey
	}
}

func (r *QuoteDynamoRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

// compareQuotes orders by the sort column and breaks ties on id.
func compareQuotes(a, b models.Quote, sortBy string) int {
	if sortBy == models.QuoteSortTitle {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
	} else if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func quoteKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func toQuoteItem(q models.Quote) quoteItem {
	return quoteItem{
		ID:        q.ID,
		Title:     q.Title,
		Content:   q.Content,
		Email:     q.Email,
		Service:   q.Service,
		Status:    string(q.Status),
		CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: q.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromQuoteItem(it quoteItem) models.Quote {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return models.Quote{
		ID:        it.ID,
		Title:     it.Title,
		Content:   it.Content,
		Email:     it.Email,
		Service:   it.Service,
		Status:    models.QuoteStatus(it.Status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}
