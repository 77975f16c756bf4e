package valueobjects

import "errors"

// RelationType 关注关系（以前者视角）
type RelationType string

const (
	RelationStranger  RelationType = "stranger"
	RelationFollowing RelationType = "following"
	RelationMutual    RelationType = "mutual"
)

// NewRelationType 创建关系值对象
func NewRelationType(value string) (RelationType, error) {
	rt := RelationType(value)
	if !rt.IsValid() {
		return "", errors.New("无效的关系类型")
	}
	return rt, nil
}

// RelationFromFollows 由双向关注事实推导 a 视角的关系
func RelationFromFollows(aFollowsB, bFollowsA bool) RelationType {
	switch {
	case aFollowsB && bFollowsA:
		return RelationMutual
	case aFollowsB:
		return RelationFollowing
	default:
		return RelationStranger
	}
}

// IsValid 验证关系类型是否有效
func (rt RelationType) IsValid() bool {
	switch rt {
	case RelationStranger, RelationFollowing, RelationMutual:
		return true
	default:
		return false
	}
}

// String 返回字符串表示
func (rt RelationType) String() string {
	return string(rt)
}
