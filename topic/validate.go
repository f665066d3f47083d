package topic

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// 参考章节 4.7 Topic Names and Topic Filters
var (
	ErrEmpty          = errors.New("topic: empty")
	ErrTooLong        = errors.New("topic: longer than 65535 bytes")
	ErrInvalidUTF8    = errors.New("topic: invalid utf-8")
	ErrNullCharacter  = errors.New("topic: contains U+0000")
	ErrWildcardInName = errors.New("topic: topic name contains wildcard")
	ErrBadMultiLevel  = errors.New("topic: '#' must be the last level and occupy it entirely")
	ErrBadSingleLevel = errors.New("topic: '+' must occupy an entire level")
)

const maxLength = 0xFFFF

func validate(s string) error {
	switch {
	case s == "":
		return ErrEmpty
	case len(s) > maxLength:
		return ErrTooLong
	case !utf8.ValidString(s):
		return ErrInvalidUTF8
	case strings.IndexByte(s, 0) >= 0:
		return ErrNullCharacter
	}
	return nil
}

// ValidateName checks a topic name as carried by PUBLISH and the Will.
// 主题名不能包含通配符 [MQTT-3.3.2-2]
func ValidateName(name string) error {
	if err := validate(name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "+#") {
		return ErrWildcardInName
	}
	return nil
}

// ValidateFilter checks a topic filter as carried by SUBSCRIBE and UNSUBSCRIBE.
func ValidateFilter(filter string) error {
	if err := validate(filter); err != nil {
		return err
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") {
			// 多层通配符必须位于它自己的层级, 且必须是主题过滤器的最后一个字符 [MQTT-4.7.1-2]
			if level != "#" || i != len(levels)-1 {
				return ErrBadMultiLevel
			}
		}
		// 单层通配符必须占据过滤器的整个层级 [MQTT-4.7.1-3]
		if strings.Contains(level, "+") && level != "+" {
			return ErrBadSingleLevel
		}
	}
	return nil
}
