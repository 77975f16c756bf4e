package external

import (
	"context"
	"errors"
	"strings"
)

// PublicMediaStore 将对象存储中的媒体引用拼成公网地址
type PublicMediaStore struct {
	host   string
	prefix string
}

// NewPublicMediaStore host 形如 https://bucket.oss-cn-hangzhou.aliyuncs.com，prefix 形如 uploads/
func NewPublicMediaStore(host, prefix string) *PublicMediaStore {
	return &PublicMediaStore{
		host:   strings.TrimSuffix(host, "/"),
		prefix: strings.Trim(prefix, "/"),
	}
}

// Resolve 已是完整 URL 的引用原样返回
func (s *PublicMediaStore) Resolve(_ context.Context, mediaRef string) (string, error) {
	ref := strings.TrimSpace(mediaRef)
	if ref == "" {
		return "", errors.New("媒体引用为空")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	ref = strings.TrimPrefix(ref, "/")
	if s.prefix != "" && !strings.HasPrefix(ref, s.prefix+"/") {
		ref = s.prefix + "/" + ref
	}
	if s.host == "" {
		return "/" + ref, nil
	}
	return s.host + "/" + ref, nil
}
