package chat

import (
	"automate-chat/internal/database"
	"automate-chat/internal/model"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("chat repository: not found")

type Repository interface {
	GetUser(ctx context.Context, userID string) (model.UserItem, error)
	ListUsersByRole(ctx context.Context, role string) ([]model.UserItem, error)
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	GetConversationByPair(ctx context.Context, customerID, workshopID string) (model.ConversationItem, error)
	ListConversationsByParticipant(ctx context.Context, role, participantID string, limit int) ([]model.ConversationItem, error)
	UpdateConversationOnMessage(ctx context.Context, conversationID, senderRole, latestBody, latestImageURL, timestamp string) error
	ResetUnread(ctx context.Context, conversationID, role, updatedAt string) error
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
	MarkMessagesRead(ctx context.Context, conversationID, senderRole string) ([]string, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetUser(ctx context.Context, userID string) (model.UserItem, error) {
	var user model.UserItem
	err := r.db.Client.GetItem(
		ctx,
		model.UsersTable,
		map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
		&user,
	)
	if err != nil {
		if isNotFound(err) {
			return model.UserItem{}, ErrNotFound
		}
		return model.UserItem{}, err
	}
	return user, nil
}

func (r *DynamoRepository) ListUsersByRole(ctx context.Context, role string) ([]model.UserItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.UsersTable,
		aws.String("byRole"),
		"#role = :role",
		map[string]types.AttributeValue{
			":role": &types.AttributeValueMemberS{Value: role},
		},
		map[string]string{
			"#role": "role",
		},
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.UsersTable,
			"#role = :role",
			map[string]types.AttributeValue{
				":role": &types.AttributeValueMemberS{Value: role},
			},
			map[string]string{
				"#role": "role",
			},
		)
		if err != nil {
			return nil, err
		}
	}

	users := make([]model.UserItem, 0, len(items))
	for _, item := range items {
		var user model.UserItem
		if err := attributevalue.UnmarshalMap(item, &user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})

	return users, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) GetConversationByPair(ctx context.Context, customerID, workshopID string) (model.ConversationItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String("byPair"),
		"pairPk = :pairPk",
		map[string]types.AttributeValue{
			":pairPk": &types.AttributeValueMemberS{Value: model.PairPK(customerID, workshopID)},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return model.ConversationItem{}, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			"pairPk = :pairPk",
			map[string]types.AttributeValue{
				":pairPk": &types.AttributeValueMemberS{Value: model.PairPK(customerID, workshopID)},
			},
			nil,
		)
		if err != nil {
			return model.ConversationItem{}, err
		}
	}

	if len(items) == 0 {
		return model.ConversationItem{}, ErrNotFound
	}

	var conversation model.ConversationItem
	if err := attributevalue.UnmarshalMap(items[0], &conversation); err != nil {
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) ListConversationsByParticipant(ctx context.Context, role, participantID string, limit int) ([]model.ConversationItem, error) {
	indexName := "byCustomer"
	keyAttr := "customerId"
	if role == model.RoleWorkshop {
		indexName = "byWorkshop"
		keyAttr = "workshopId"
	}

	scanForward := false
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String(indexName),
		keyAttr+" = :participantId",
		map[string]types.AttributeValue{
			":participantId": &types.AttributeValueMemberS{Value: participantID},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			keyAttr+" = :participantId",
			map[string]types.AttributeValue{
				":participantId": &types.AttributeValueMemberS{Value: participantID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	return conversations, nil
}

func (r *DynamoRepository) UpdateConversationOnMessage(ctx context.Context, conversationID, senderRole, latestBody, latestImageURL, timestamp string) error {
	unreadAttr := "workshopUnread"
	if senderRole == model.RoleWorkshop {
		unreadAttr = "customerUnread"
	}

	updateExpr := "SET #latestBody = :latestBody, #latestImageUrl = :latestImageUrl, #latestSender = :latestSender, " +
		"#updatedAt = :timestamp, #lastMessageAt = :timestamp ADD #unread :one"

	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		updateExpr,
		map[string]types.AttributeValue{
			":latestBody":     &types.AttributeValueMemberS{Value: latestBody},
			":latestImageUrl": &types.AttributeValueMemberS{Value: latestImageURL},
			":latestSender":   &types.AttributeValueMemberS{Value: senderRole},
			":timestamp":      &types.AttributeValueMemberS{Value: timestamp},
			":one":            &types.AttributeValueMemberN{Value: "1"},
		},
		map[string]string{
			"#latestBody":     "latestBody",
			"#latestImageUrl": "latestImageUrl",
			"#latestSender":   "latestSender",
			"#updatedAt":      "updatedAt",
			"#lastMessageAt":  "lastMessageAt",
			"#unread":         unreadAttr,
		},
	)
}

func (r *DynamoRepository) ResetUnread(ctx context.Context, conversationID, role, updatedAt string) error {
	unreadAttr := "customerUnread"
	if role == model.RoleWorkshop {
		unreadAttr = "workshopUnread"
	}

	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		"SET #unread = :zero, #updatedAt = :updatedAt",
		map[string]types.AttributeValue{
			":zero":      &types.AttributeValueMemberN{Value: "0"},
			":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
		},
		map[string]string{
			"#unread":    unreadAttr,
			"#updatedAt": "updatedAt",
		},
	)
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		ti := parseTime(messages[i].CreatedAt)
		tj := parseTime(messages[j].CreatedAt)
		return ti.Before(tj)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

// allMessages pages through the full message set. Mark-read has to see every
// message, so the single-page query ListMessages uses is not enough here.
func (r *DynamoRepository) allMessages(ctx context.Context, conversationID string) ([]model.MessageItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (r *DynamoRepository) MarkMessagesRead(ctx context.Context, conversationID, senderRole string) ([]string, error) {
	messages, err := r.allMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	flipped := make([]string, 0)
	for _, message := range messages {
		if message.SenderRole != senderRole || message.Status == model.MessageStatusRead {
			continue
		}

		err := r.db.Client.UpdateItem(
			ctx,
			model.MessagesTable,
			map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: message.PK},
			},
			"SET #status = :status",
			map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: model.MessageStatusRead},
			},
			map[string]string{
				"#status": "status",
			},
		)
		if err != nil {
			return nil, err
		}
		flipped = append(flipped, message.MessageID)
	}

	return flipped, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}

func parseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
