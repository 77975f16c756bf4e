package usecases

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-dm/internal/domain/valueobjects"
	appErrors "go-dm/pkg/errors"
)

const maxIDLength = 64

// validUserID 非空、不超过 64 字符、不含空白
func validUserID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}

func validatePair(a, b string) error {
	if !validUserID(a) || !validUserID(b) {
		return appErrors.ErrInvalidUserID
	}
	return nil
}

// normalizePage 页码从 1 开始，size 缺省 20，上限 100
func normalizePage(page, size int) (offset, limit int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return (page - 1) * size, size
}

// validateContent 按消息类型校验内容
func validateContent(kind valueobjects.MessageKind, content, mediaRef string, maxLen int) error {
	switch kind {
	case valueobjects.MessageKindText:
		if strings.TrimSpace(content) == "" {
			return appErrors.ErrEmptyContent
		}
	case valueobjects.MessageKindImage:
		if strings.TrimSpace(mediaRef) == "" {
			return appErrors.ErrMediaRefRequired
		}
	case valueobjects.MessageKindLink:
		u, err := url.Parse(strings.TrimSpace(content))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return appErrors.ErrInvalidLink
		}
	case valueobjects.MessageKindSystem:
		return appErrors.ErrInvalidKind
	default:
		return appErrors.ErrInvalidKind
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return appErrors.ErrContentTooLong
	}
	return nil
}
