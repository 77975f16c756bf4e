package persistence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

const mongoMessageCollection = "dm_messages"

// MongoMessageRepository 基于 MongoDB 的消息日志实现
// 会话对、会话行等需要条件写的状态仍在 SQL 中
type MongoMessageRepository struct {
	db *mongo.Database
}

// NewMongoMessageRepository 创建消息仓储并确保索引存在
func NewMongoMessageRepository(ctx context.Context, db *mongo.Database) (ports.MessageRepository, error) {
	r := &MongoMessageRepository{db: db}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_pair_created"),
		},
		{
			Keys:    bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("idx_receiver_unread"),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "mongoMessageRepo.CreateIndexes")
	}
	return r, nil
}

type mongoMessage struct {
	ID              string     `bson:"_id"`
	SenderID        string     `bson:"sender_id"`
	ReceiverID      string     `bson:"receiver_id"`
	Content         string     `bson:"content"`
	MediaRef        string     `bson:"media_ref,omitempty"`
	Kind            uint8      `bson:"kind"`
	Status          uint8      `bson:"status"`
	BlockReason     string     `bson:"block_reason,omitempty"`
	ReceiverVisible bool       `bson:"receiver_visible"`
	IsRead          bool       `bson:"is_read"`
	ReadAt          *time.Time `bson:"read_at,omitempty"`
	SenderDeleted   bool       `bson:"sender_deleted"`
	ReceiverDeleted bool       `bson:"receiver_deleted"`
	CreatedAt       time.Time  `bson:"created_at"`
}

func (r *MongoMessageRepository) collection() *mongo.Collection {
	return r.db.Collection(mongoMessageCollection)
}

// Append 写入消息
func (r *MongoMessageRepository) Append(ctx context.Context, m *entities.Message) error {
	doc := &mongoMessage{
		ID:              m.ID(),
		SenderID:        m.SenderID(),
		ReceiverID:      m.ReceiverID(),
		Content:         m.Content(),
		MediaRef:        m.MediaRef(),
		Kind:            uint8(m.Kind()),
		Status:          uint8(m.Status()),
		BlockReason:     string(m.BlockReason()),
		ReceiverVisible: m.ReceiverVisible(),
		IsRead:          m.IsRead(),
		ReadAt:          m.ReadAt(),
		SenderDeleted:   m.SenderDeleted(),
		ReceiverDeleted: m.ReceiverDeleted(),
		CreatedAt:       m.CreatedAt().UTC(),
	}
	_, err := r.collection().InsertOne(ctx, doc)
	return errors.Wrap(err, "mongoMessageRepo.Append.InsertOne")
}

// GetByID 根据ID获取消息
func (r *MongoMessageRepository) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	var doc mongoMessage
	err := r.collection().FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "mongoMessageRepo.GetByID.FindOne")
	}
	return doc.toEntity(), nil
}

func visibleFilter(ownerID, otherID string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{
			{Key: "sender_id", Value: ownerID},
			{Key: "receiver_id", Value: otherID},
			{Key: "sender_deleted", Value: false},
		},
		bson.D{
			{Key: "sender_id", Value: otherID},
			{Key: "receiver_id", Value: ownerID},
			{Key: "receiver_visible", Value: true},
			{Key: "receiver_deleted", Value: false},
		},
	}}}
}

// ListVisible 分页拉取 owner 可见的消息，按时间倒序
func (r *MongoMessageRepository) ListVisible(ctx context.Context, ownerID, otherID string, offset, limit int) ([]*entities.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection().Find(ctx, visibleFilter(ownerID, otherID), opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongoMessageRepo.ListVisible.Find")
	}
	defer cursor.Close(ctx)

	messages := make([]*entities.Message, 0, limit)
	for cursor.Next(ctx) {
		var doc mongoMessage
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "mongoMessageRepo.ListVisible.Decode")
		}
		messages = append(messages, doc.toEntity())
	}
	return messages, errors.Wrap(cursor.Err(), "mongoMessageRepo.ListVisible.Cursor")
}

// LastVisible 获取 owner 会话行应展示的最后一条消息
func (r *MongoMessageRepository) LastVisible(ctx context.Context, ownerID, otherID string) (*entities.Message, error) {
	filter := bson.D{
		{Key: "$and", Value: bson.A{
			visibleFilter(ownerID, otherID),
			bson.D{{Key: "$nor", Value: bson.A{bson.D{
				{Key: "sender_id", Value: ownerID},
				{Key: "block_reason", Value: string(valueobjects.BlockReasonReceiverBlocked)},
			}}}},
		}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var doc mongoMessage
	err := r.collection().FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "mongoMessageRepo.LastVisible.FindOne")
	}
	return doc.toEntity(), nil
}

func unreadFilter(readerID, otherID string) bson.D {
	return bson.D{
		{Key: "sender_id", Value: otherID},
		{Key: "receiver_id", Value: readerID},
		{Key: "receiver_visible", Value: true},
		{Key: "is_read", Value: false},
	}
}

// CountUnread 统计未读数
func (r *MongoMessageRepository) CountUnread(ctx context.Context, readerID, otherID string) (int64, error) {
	filter := append(unreadFilter(readerID, otherID),
		bson.E{Key: "receiver_deleted", Value: false},
		bson.E{Key: "status", Value: bson.D{{Key: "$ne", Value: uint8(valueobjects.DeliveryStatusWithdrawn)}}},
	)
	n, err := r.collection().CountDocuments(ctx, filter)
	return n, errors.Wrap(err, "mongoMessageRepo.CountUnread")
}

// MarkRead 批量标记已读，已撤回的消息不受影响
func (r *MongoMessageRepository) MarkRead(ctx context.Context, readerID, otherID string, at time.Time) (int64, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_read", Value: true},
		{Key: "read_at", Value: at.UTC()},
	}}}
	filter := append(unreadFilter(readerID, otherID),
		bson.E{Key: "status", Value: bson.D{{Key: "$ne", Value: uint8(valueobjects.DeliveryStatusWithdrawn)}}},
	)
	result, err := r.collection().UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, errors.Wrap(err, "mongoMessageRepo.MarkRead.UpdateMany")
	}
	return result.ModifiedCount, nil
}

// Withdraw 撤回消息
func (r *MongoMessageRepository) Withdraw(ctx context.Context, id string, content string) (bool, error) {
	withdrawn := uint8(valueobjects.DeliveryStatusWithdrawn)
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: withdrawn}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: withdrawn},
		{Key: "content", Value: content},
		{Key: "media_ref", Value: ""},
	}}}
	result, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errors.Wrap(err, "mongoMessageRepo.Withdraw.UpdateOne")
	}
	return result.ModifiedCount > 0, nil
}

// SoftDelete 单侧软删除
func (r *MongoMessageRepository) SoftDelete(ctx context.Context, id string, bySender bool) error {
	field := "receiver_deleted"
	if bySender {
		field = "sender_deleted"
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: true}}}}
	_, err := r.collection().UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	return errors.Wrap(err, "mongoMessageRepo.SoftDelete.UpdateOne")
}

func (doc *mongoMessage) toEntity() *entities.Message {
	var readAt *time.Time
	if doc.ReadAt != nil {
		t := doc.ReadAt.UTC()
		readAt = &t
	}
	return entities.FromMessageDTO(entities.MessageDTO{
		ID:              doc.ID,
		SenderID:        doc.SenderID,
		ReceiverID:      doc.ReceiverID,
		Content:         doc.Content,
		MediaRef:        doc.MediaRef,
		Kind:            valueobjects.MessageKind(doc.Kind),
		Status:          valueobjects.DeliveryStatus(doc.Status),
		BlockReason:     valueobjects.BlockReason(doc.BlockReason),
		ReceiverVisible: doc.ReceiverVisible,
		Read:            doc.IsRead,
		ReadAt:          readAt,
		SenderDeleted:   doc.SenderDeleted,
		ReceiverDeleted: doc.ReceiverDeleted,
		CreatedAt:       doc.CreatedAt.UTC(),
	})
}
