// Package ws 提供 WebSocket 接入网关：认证、连接生命周期、上行动作（发送/已读/撤回）与下行分发（通过 Redis Pub/Sub）
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"go-dm/internal/application/usecases"
	"go-dm/internal/auth"
	"go-dm/internal/cache"
	"go-dm/internal/metrics"
	appErrors "go-dm/pkg/errors"
)

// Server 是 WebSocket 网关服务
// - 上行动作直接调用私信用例，限流与权限判定都在用例内完成
// - 每个连接使用单独的写锁，避免并发写触发 gorilla/websocket 冲突
type Server struct {
	JWTSecret string
	Messaging *usecases.MessagingUseCase
	Redis     *redis.Client
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage 上行帧：action 为 send、read、withdraw
type WSMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// SendPayload 发送私信
type SendPayload struct {
	usecases.SendRequest
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

// ReadPayload 标记与某人的会话已读
type ReadPayload struct {
	OtherUserID string `json:"otherUserId"`
}

// WithdrawPayload 撤回消息
type WithdrawPayload struct {
	MessageID string `json:"messageId"`
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	userID  string
}

func (c *conn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(b)
}

func (c *conn) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Token 从查询参数或 Authorization: Bearer 中取 JWT
func Token(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Handle 处理 HTTP 升级为 WebSocket，以及该连接的读/写循环
// - 上线/下线：多设备在线集合，连接退出自动下线
// - 下行：订阅个人投递通道，将 Redis 消息写回客户端
func (s *Server) Handle(c *gin.Context) {
	claims, err := auth.ParseJWT(s.JWTSecret, Token(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": appErrors.CodeUnauthenticated, "error": "invalid token"})
		return
	}
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		deviceID = "web-" + time.Now().Format("150405.000")
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	userID := claims.UserID
	entry := log.WithFields(log.Fields{"user": userID, "device": deviceID})
	entry.Info("WS connected")

	if err := cache.SetDeviceOnline(ctx, s.Redis, userID, deviceID); err != nil {
		entry.WithError(err).Warn("WS presence online failed")
	}
	defer func() {
		_ = cache.SetDeviceOffline(context.Background(), s.Redis, userID, deviceID)
		entry.Info("WS disconnected")
	}()

	cn := &conn{ws: ws, userID: userID}
	sub := s.Redis.Subscribe(ctx, cache.DeliverChannel(userID))
	defer sub.Close()

	// 读循环：处理客户端上行动作，读失败时结束整个连接
	go func() {
		defer cancel()
		for {
			msgType, data, err := ws.ReadMessage()
			if err != nil {
				entry.WithError(err).Debug("WS read closed")
				return
			}
			if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
				continue
			}
			var m WSMessage
			if err := json.Unmarshal(data, &m); err != nil {
				_ = cn.writeJSON(errorFrame(appErrors.InvalidArg("malformed frame"), ""))
				continue
			}
			metrics.WSMessagesTotal.WithLabelValues(m.Action).Inc()
			s.handleInbound(ctx, cn, &m)
		}
	}()

	// 写循环：将 Redis 收到的消息发给客户端
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := cn.writeRaw([]byte(msg.Payload)); err != nil {
				entry.WithError(err).Warn("WS write failed")
				return
			}
		}
	}
}

// handleInbound 上行动作分发
func (s *Server) handleInbound(ctx context.Context, cn *conn, m *WSMessage) {
	switch m.Action {
	case "send":
		var p SendPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			_ = cn.writeJSON(errorFrame(appErrors.InvalidArg("malformed send payload"), ""))
			return
		}
		p.SenderID = cn.userID
		res, err := s.Messaging.Send(ctx, &p.SendRequest)
		if err != nil {
			_ = cn.writeJSON(errorFrame(err, p.ClientMsgID))
			return
		}
		_ = cn.writeJSON(gin.H{"action": "ack", "data": gin.H{
			"clientMsgId": p.ClientMsgID,
			"messageId":   res.MessageID,
			"outcome":     res.Outcome,
			"createdAt":   res.CreatedAt.UnixMilli(),
		}})
	case "read":
		var p ReadPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			_ = cn.writeJSON(errorFrame(appErrors.InvalidArg("malformed read payload"), ""))
			return
		}
		if err := s.Messaging.MarkRead(ctx, cn.userID, p.OtherUserID); err != nil {
			_ = cn.writeJSON(errorFrame(err, ""))
		}
	case "withdraw":
		var p WithdrawPayload
		if err := json.Unmarshal(m.Data, &p); err != nil {
			_ = cn.writeJSON(errorFrame(appErrors.InvalidArg("malformed withdraw payload"), ""))
			return
		}
		msg, err := s.Messaging.Withdraw(ctx, cn.userID, p.MessageID)
		if err != nil {
			_ = cn.writeJSON(errorFrame(err, ""))
			return
		}
		_ = cn.writeJSON(gin.H{"action": "withdrawn", "data": msg.ToDTO()})
	default:
		_ = cn.writeJSON(errorFrame(appErrors.InvalidArg("unknown action"), ""))
	}
}

// errorFrame 下行错误帧，code 与 HTTP 接口的错误码一致
func errorFrame(err error, clientMsgID string) gin.H {
	code := appErrors.CodeOf(err)
	msg := err.Error()
	if code == appErrors.CodeUnknown || code == appErrors.CodeUnavailable || code == appErrors.CodeInternal {
		msg = "temporarily unavailable"
	}
	data := gin.H{"code": code, "error": msg}
	if clientMsgID != "" {
		data["clientMsgId"] = clientMsgID
	}
	return gin.H{"action": "error", "data": data}
}
