package valueobjects

import "errors"

// MessageKind 消息类型值对象（封闭枚举）
// 持久化为 tinyint，对外 JSON 使用字符串名
type MessageKind uint8

const (
	MessageKindText MessageKind = iota + 1
	MessageKindImage
	MessageKindLink
	MessageKindSystem
)

// ParseMessageKind 将外部输入的类型名解析为枚举
func ParseMessageKind(value string) (MessageKind, error) {
	switch value {
	case "", "text":
		return MessageKindText, nil
	case "image":
		return MessageKindImage, nil
	case "link":
		return MessageKindLink, nil
	case "system":
		return MessageKindSystem, nil
	default:
		return 0, errors.New("无效的消息类型")
	}
}

// IsValid 验证消息类型是否有效
func (k MessageKind) IsValid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindLink, MessageKindSystem:
		return true
	default:
		return false
	}
}

// UserSendable 用户可直接发送的类型；系统消息只能由服务内部产生
func (k MessageKind) UserSendable() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindLink:
		return true
	case MessageKindSystem:
		return false
	default:
		return false
	}
}

// String 返回字符串表示
func (k MessageKind) String() string {
	switch k {
	case MessageKindText:
		return "text"
	case MessageKindImage:
		return "image"
	case MessageKindLink:
		return "link"
	case MessageKindSystem:
		return "system"
	default:
		return "unknown"
	}
}

func (k MessageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MessageKind) UnmarshalText(b []byte) error {
	v, err := ParseMessageKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
