package usecases

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
	appErrors "go-dm/pkg/errors"
)

// MessagingConfig 私信业务参数
type MessagingConfig struct {
	Enabled              bool
	SystemAllowStranger  bool
	DefaultAllowStranger bool
	MaxContentLength     int
	PreviewLength        int
	WithdrawWindow       time.Duration
	SendQPS              int
	SendBurst            int
}

// Dependencies 私信用例依赖；Profiles/Media/Notifier/Events/Limiter 可为空
type Dependencies struct {
	Messages    ports.MessageRepository
	Pairs       ports.PairRepository
	Views       ports.ViewRepository
	Blocks      ports.BlockRepository
	Greetings   ports.GreetingRepository
	Preferences ports.PreferenceRepository
	Oracle      ports.RelationshipOracle
	Profiles    ports.ProfileLookup
	Media       ports.MediaStore
	Notifier    ports.NotificationSink
	Events      ports.EventPublisher
	IDs         ports.IDGenerator
	Limiter     ports.RateLimiter
	Metrics     ports.MetricsService
	Logger      ports.LogService
}

// MessagingUseCase 私信编排：闸门判定 → 落库 → 推进会话状态 → 更新双方会话行
type MessagingUseCase struct {
	messages  ports.MessageRepository
	blocks    ports.BlockRepository
	greetings ports.GreetingRepository
	profiles  ports.ProfileLookup
	media     ports.MediaStore
	notifier  ports.NotificationSink
	events    ports.EventPublisher
	ids       ports.IDGenerator
	limiter   ports.RateLimiter
	metrics   ports.MetricsService
	logger    ports.LogService

	gate  *DeliveryGate
	state *ConversationStateMachine
	views *ConversationViewStore
	prefs *PreferenceUseCase

	cfg MessagingConfig
	now func() time.Time
	// async 执行发送路径之外的后台任务
	async func(task func())
}

// NewMessagingUseCase 创建私信用例
func NewMessagingUseCase(deps Dependencies, cfg MessagingConfig) *MessagingUseCase {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 1000
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 100
	}
	if cfg.WithdrawWindow <= 0 {
		cfg.WithdrawWindow = 2 * time.Minute
	}
	if cfg.SendQPS <= 0 {
		cfg.SendQPS = 5
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 10
	}
	prefs := NewPreferenceUseCase(deps.Preferences, cfg.DefaultAllowStranger, deps.Logger)
	return &MessagingUseCase{
		messages:  deps.Messages,
		blocks:    deps.Blocks,
		greetings: deps.Greetings,
		profiles:  deps.Profiles,
		media:     deps.Media,
		notifier:  deps.Notifier,
		events:    deps.Events,
		ids:       deps.IDs,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		gate:      NewDeliveryGate(deps.Blocks, deps.Oracle, prefs, deps.Greetings, deps.Pairs, cfg.SystemAllowStranger),
		state:     NewConversationStateMachine(deps.Pairs, deps.Greetings, deps.Metrics, deps.Logger),
		views:     NewConversationViewStore(deps.Views, deps.Messages, deps.Pairs, deps.Oracle, cfg.PreviewLength, deps.Logger),
		prefs:     prefs,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		async:     func(task func()) { go task() },
	}
}

// Preferences 私信设置用例
func (uc *MessagingUseCase) Preferences() *PreferenceUseCase { return uc.prefs }

// ViewStore 会话视图存储（供对账任务复用）
func (uc *MessagingUseCase) ViewStore() *ConversationViewStore { return uc.views }

// SendRequest 发送私信请求
type SendRequest struct {
	SenderID   string                   `json:"-"`
	ReceiverID string                   `json:"receiverId"`
	Content    string                   `json:"content"`
	Kind       valueobjects.MessageKind `json:"kind"`
	MediaRef   string                   `json:"mediaRef,omitempty"`
}

// SendResult 发送结果；被拦截也是正常结果
type SendResult struct {
	Message   *entities.Message `json:"-"`
	MessageID string            `json:"messageId"`
	Outcome   string            `json:"outcome"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Send 发送私信
func (uc *MessagingUseCase) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	start := time.Now()
	if !uc.cfg.Enabled {
		return nil, appErrors.ErrMessagingDisabled
	}
	if err := uc.validateSendRequest(req); err != nil {
		return nil, err
	}

	// 限流检查
	if uc.limiter != nil {
		allowed, err := uc.limiter.Allow(ctx, "dm:tb:send:"+req.SenderID, uc.cfg.SendQPS, uc.cfg.SendBurst)
		if err != nil {
			uc.logger.Warn(ctx, "限流检查失败，放行", map[string]interface{}{"senderId": req.SenderID, "error": err.Error()})
		} else if !allowed {
			return nil, appErrors.ErrSendRateLimited
		}
	}
	if err := uc.ensureUserExists(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	decision, err := uc.gate.Classify(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		uc.logger.Error(ctx, "投递判定失败", err, map[string]interface{}{"senderId": req.SenderID, "receiverId": req.ReceiverID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}

	status, reason := decision.Status, decision.Reason
	createdAt := uc.now()
	knockTaken := false
	if status == valueobjects.DeliveryStatusPending {
		inserted, err := uc.greetings.InsertIfAbsent(ctx, &entities.GreetingRecord{
			SenderID:  req.SenderID,
			TargetID:  req.ReceiverID,
			CreatedAt: createdAt,
		})
		if err != nil {
			uc.logger.Error(ctx, "写入招呼记录失败", err, map[string]interface{}{"senderId": req.SenderID, "receiverId": req.ReceiverID})
			return nil, appErrors.ErrStoreUnavailable(err)
		}
		if inserted {
			knockTaken = true
		} else {
			// 并发请求已用掉额度
			status, reason = valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonKnockUsed
		}
	}

	msg, err := entities.NewMessage(uc.ids.GenerateMessageID(), req.SenderID, req.ReceiverID, req.Kind, req.Content, req.MediaRef, status, reason, createdAt)
	if err != nil {
		uc.releaseKnock(ctx, req, knockTaken)
		return nil, appErrors.InvalidArg(err.Error())
	}
	if err := uc.messages.Append(ctx, msg); err != nil {
		uc.releaseKnock(ctx, req, knockTaken)
		uc.logger.Error(ctx, "保存消息失败", err, map[string]interface{}{
			"messageId":  msg.ID(),
			"senderId":   req.SenderID,
			"receiverId": req.ReceiverID,
		})
		return nil, appErrors.ErrStoreUnavailable(err)
	}

	// 消息已提交，以下步骤失败只记录，由修复流程兜底
	tr, err := uc.state.Advance(ctx, msg, decision.Relation)
	if err != nil {
		uc.logger.Error(ctx, "推进会话状态失败", err, map[string]interface{}{"messageId": msg.ID()})
		tr = &Transition{}
	}
	uc.project(ctx, msg, decision.Relation, tr.Pair)
	uc.publish(ctx, "message.sent", msg)
	if msg.ReceiverVisible() {
		uc.notifyNewMessage(ctx, msg)
	}

	uc.metrics.SendOutcome(status.Outcome(), reason.String(), float64(time.Since(start).Milliseconds()))
	uc.logger.Info(ctx, "私信已处理", map[string]interface{}{
		"messageId":   msg.ID(),
		"senderId":    req.SenderID,
		"receiverId":  req.ReceiverID,
		"outcome":     status.Outcome(),
		"reason":      reason.String(),
		"established": tr.Established,
	})
	return &SendResult{
		Message:   msg,
		MessageID: msg.ID(),
		Outcome:   status.Outcome(),
		CreatedAt: msg.CreatedAt(),
	}, nil
}

func (uc *MessagingUseCase) validateSendRequest(req *SendRequest) error {
	if req == nil {
		return appErrors.ErrEmptyContent
	}
	if err := validatePair(req.SenderID, req.ReceiverID); err != nil {
		return err
	}
	if req.SenderID == req.ReceiverID {
		return appErrors.ErrSelfMessage
	}
	if req.Kind == 0 {
		req.Kind = valueobjects.MessageKindText
	}
	if !req.Kind.UserSendable() {
		return appErrors.ErrInvalidKind
	}
	return validateContent(req.Kind, req.Content, req.MediaRef, uc.cfg.MaxContentLength)
}

// releaseKnock 消息未能落库时归还招呼额度
func (uc *MessagingUseCase) releaseKnock(ctx context.Context, req *SendRequest, taken bool) {
	if !taken {
		return
	}
	if err := uc.greetings.Delete(context.WithoutCancel(ctx), req.SenderID, req.ReceiverID); err != nil {
		uc.logger.Error(ctx, "归还招呼额度失败", err, map[string]interface{}{"senderId": req.SenderID, "receiverId": req.ReceiverID})
	}
}

// project 并发更新双方会话行（两行互不相交）
// 被接收方拉黑时发出的消息不更新任何一行
func (uc *MessagingUseCase) project(ctx context.Context, msg *entities.Message, relation valueobjects.RelationType, pair *entities.ConversationPair) {
	if !msg.ProjectsToViews() {
		return
	}
	sender, receiver := msg.SenderID(), msg.ReceiverID()
	var g errgroup.Group
	g.Go(func() error {
		return uc.projectRow(ctx, sender, receiver, msg, false, relation, pair)
	})
	if msg.ReceiverVisible() {
		var receiverRelation valueobjects.RelationType
		if relation == valueobjects.RelationMutual {
			receiverRelation = valueobjects.RelationMutual
		}
		g.Go(func() error {
			return uc.projectRow(ctx, receiver, sender, msg, true, receiverRelation, pair)
		})
	}
	_ = g.Wait()
}

func (uc *MessagingUseCase) projectRow(
	ctx context.Context,
	ownerID, otherID string,
	msg *entities.Message,
	isRecipient bool,
	relation valueobjects.RelationType,
	pair *entities.ConversationPair,
) error {
	err := uc.views.Upsert(ctx, ownerID, otherID, msg, isRecipient, relation, pair)
	if err == nil {
		return nil
	}
	uc.logger.Warn(ctx, "会话行更新失败，由消息日志重建", map[string]interface{}{
		"ownerId":   ownerID,
		"otherId":   otherID,
		"messageId": msg.ID(),
		"error":     err.Error(),
	})
	if rerr := uc.views.Rebuild(ctx, ownerID, otherID); rerr != nil {
		uc.metrics.ViewRepair("failed")
		uc.logger.Error(ctx, "会话行重建失败，等待后台对账", rerr, map[string]interface{}{"ownerId": ownerID, "otherId": otherID})
		return rerr
	}
	uc.metrics.ViewRepair("repaired")
	return nil
}

func (uc *MessagingUseCase) publish(ctx context.Context, eventType string, msg *entities.Message) {
	if uc.events == nil {
		return
	}
	uc.events.PublishMessage(ctx, &ports.MessageEvent{
		Type:       eventType,
		MessageID:  msg.ID(),
		SenderID:   msg.SenderID(),
		ReceiverID: msg.ReceiverID(),
		Status:     msg.Status().Outcome(),
		TS:         uc.now().UnixMilli(),
	})
}

// notifyNewMessage 接收方关闭通知或对该会话免打扰时不推送
// 设置与会话行的读取放到后台，发送路径不等待
func (uc *MessagingUseCase) notifyNewMessage(ctx context.Context, msg *entities.Message) {
	if uc.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	uc.async(func() {
		receiver := msg.ReceiverID()
		pref, err := uc.prefs.Get(ctx, receiver)
		if err != nil {
			uc.logger.Warn(ctx, "读取通知设置失败，跳过推送", map[string]interface{}{"userId": receiver, "error": err.Error()})
			return
		}
		if !pref.NotificationEnabled {
			return
		}
		if v, err := uc.views.Get(ctx, receiver, msg.SenderID()); err == nil && v != nil && v.Muted {
			return
		}
		uc.notifier.Notify(ctx, receiver, &ports.Notification{
			Type:    "message.new",
			Title:   "新私信",
			Content: msg.Preview(uc.cfg.PreviewLength),
			Data: map[string]interface{}{
				"messageId": msg.ID(),
				"senderId":  msg.SenderID(),
				"status":    msg.Status().Outcome(),
				"createdAt": msg.CreatedAt().UnixMilli(),
			},
		})
	})
}

func (uc *MessagingUseCase) ensureUserExists(ctx context.Context, userID string) error {
	if uc.profiles == nil {
		return nil
	}
	found, err := uc.profiles.BatchGet(ctx, []string{userID})
	if err != nil {
		uc.logger.Error(ctx, "查询用户资料失败", err, map[string]interface{}{"userId": userID})
		return appErrors.Unavailable("profile lookup unavailable", err)
	}
	if _, ok := found[userID]; !ok {
		return appErrors.ErrUserNotFound
	}
	return nil
}

// MarkRead 将 other 发给 reader 的消息标记已读并清空未读数，可重复调用
func (uc *MessagingUseCase) MarkRead(ctx context.Context, readerID, otherUserID string) error {
	if err := validatePair(readerID, otherUserID); err != nil {
		return err
	}
	if readerID == otherUserID {
		return appErrors.ErrSelfMessage
	}
	readAt := uc.now()
	n, err := uc.messages.MarkRead(ctx, readerID, otherUserID, readAt)
	if err != nil {
		uc.logger.Error(ctx, "标记已读失败", err, map[string]interface{}{"readerId": readerID, "otherId": otherUserID})
		return appErrors.ErrStoreUnavailable(err)
	}
	if err := uc.views.ClearUnread(ctx, readerID, otherUserID); err != nil {
		uc.logger.Error(ctx, "清空未读数失败", err, map[string]interface{}{"readerId": readerID, "otherId": otherUserID})
		return appErrors.ErrStoreUnavailable(err)
	}
	if n > 0 && uc.notifier != nil {
		uc.notifier.Notify(ctx, otherUserID, &ports.Notification{
			Type: "message.read",
			Data: map[string]interface{}{
				"readerId": readerID,
				"count":    n,
				"readAt":   readAt.UnixMilli(),
			},
		})
	}
	return nil
}

// Withdraw 发送者在撤回时限内撤回消息
func (uc *MessagingUseCase) Withdraw(ctx context.Context, senderID, messageID string) (*entities.Message, error) {
	if !validUserID(senderID) {
		return nil, appErrors.ErrInvalidUserID
	}
	msg, err := uc.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(senderID) {
		return nil, appErrors.ErrMessageNotFound
	}
	if err := msg.Withdraw(senderID, uc.now(), uc.cfg.WithdrawWindow); err != nil {
		switch err {
		case entities.ErrNotMessageSender:
			if !msg.VisibleTo(senderID) {
				return nil, appErrors.ErrMessageNotFound
			}
			return nil, appErrors.ErrNotSender
		case entities.ErrMessageWithdrawn:
			return nil, appErrors.ErrAlreadyWithdrawn
		case entities.ErrWithdrawWindowPassed:
			return nil, appErrors.ErrWithdrawExpired
		default:
			return nil, appErrors.InvalidArg(err.Error())
		}
	}
	ok, err := uc.messages.Withdraw(ctx, msg.ID(), entities.WithdrawnContent)
	if err != nil {
		uc.logger.Error(ctx, "撤回消息失败", err, map[string]interface{}{"messageId": messageID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	if !ok {
		return nil, appErrors.ErrAlreadyWithdrawn
	}

	uc.repairRow(ctx, msg.SenderID(), msg.ReceiverID())
	if msg.ReceiverVisible() {
		uc.repairRow(ctx, msg.ReceiverID(), msg.SenderID())
		if uc.notifier != nil {
			uc.notifier.Notify(ctx, msg.ReceiverID(), &ports.Notification{
				Type: "message.withdrawn",
				Data: map[string]interface{}{"messageId": msg.ID(), "senderId": msg.SenderID()},
			})
		}
	}
	uc.publish(ctx, "message.withdrawn", msg)
	uc.logger.Info(ctx, "消息已撤回", map[string]interface{}{"messageId": msg.ID(), "senderId": senderID})
	return msg, nil
}

// DeleteMessage 单侧删除，不影响对方
func (uc *MessagingUseCase) DeleteMessage(ctx context.Context, userID, messageID string) error {
	if !validUserID(userID) {
		return appErrors.ErrInvalidUserID
	}
	msg, err := uc.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !msg.IsParticipant(userID) {
		return appErrors.ErrNotParticipant
	}
	if !msg.VisibleTo(userID) {
		// 接收方看不到被拦截的消息，已删除的再次删除视为成功
		if userID == msg.ReceiverID() && !msg.ReceiverVisible() {
			return appErrors.ErrMessageNotFound
		}
		return nil
	}
	bySender := userID == msg.SenderID()
	if err := msg.MarkDeletedBy(userID); err != nil {
		return appErrors.ErrNotParticipant
	}
	if err := uc.messages.SoftDelete(ctx, msg.ID(), bySender); err != nil {
		uc.logger.Error(ctx, "删除消息失败", err, map[string]interface{}{"messageId": messageID, "userId": userID})
		return appErrors.ErrStoreUnavailable(err)
	}
	uc.repairRow(ctx, userID, msg.OtherParty(userID))
	return nil
}

// ListMessages 分页拉取 owner 与 other 之间 owner 可见的历史，按时间倒序
func (uc *MessagingUseCase) ListMessages(ctx context.Context, ownerID, otherUserID string, page, size int) ([]entities.MessageDTO, error) {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return nil, err
	}
	offset, limit := normalizePage(page, size)
	msgs, err := uc.messages.ListVisible(ctx, ownerID, otherUserID, offset, limit)
	if err != nil {
		uc.logger.Error(ctx, "拉取消息历史失败", err, map[string]interface{}{"ownerId": ownerID, "otherId": otherUserID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	out := make([]entities.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		dto := m.ToDTO()
		if m.Kind() == valueobjects.MessageKindImage && m.MediaRef() != "" && uc.media != nil {
			if u, err := uc.media.Resolve(ctx, m.MediaRef()); err == nil {
				dto.MediaURL = u
			} else {
				uc.logger.Warn(ctx, "解析媒体地址失败", map[string]interface{}{"mediaRef": m.MediaRef(), "error": err.Error()})
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

func (uc *MessagingUseCase) loadMessage(ctx context.Context, messageID string) (*entities.Message, error) {
	if messageID == "" || len(messageID) > maxIDLength {
		return nil, appErrors.ErrInvalidMessageID
	}
	msg, err := uc.messages.GetByID(ctx, messageID)
	if err != nil {
		uc.logger.Error(ctx, "查询消息失败", err, map[string]interface{}{"messageId": messageID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	if msg == nil {
		return nil, appErrors.ErrMessageNotFound
	}
	return msg, nil
}

// repairRow 尽力重建单行，失败留给后台对账
func (uc *MessagingUseCase) repairRow(ctx context.Context, ownerID, otherID string) {
	if err := uc.views.Rebuild(ctx, ownerID, otherID); err != nil {
		uc.metrics.ViewRepair("failed")
		uc.logger.Error(ctx, "重建会话行失败", err, map[string]interface{}{"ownerId": ownerID, "otherId": otherID})
	}
}
