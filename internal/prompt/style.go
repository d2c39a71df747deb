package prompt

import (
	"fmt"
	"strings"
)

// Style 语音风格的机器码
type Style string

// 已知的四种风格
const (
	StyleNormal     Style = "normal"
	StyleFormal     Style = "formal"
	StyleCasual     Style = "casual"
	StyleColloquial Style = "colloquial"
)

// StyleOption 风格选项，Label 写入提示词，Display 用于界面下拉框
type StyleOption struct {
	Code    Style  `json:"code"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

var styleOptions = []StyleOption{
	{Code: StyleNormal, Label: "Normal", Display: "常规(Normal)"},
	{Code: StyleFormal, Label: "Formal", Display: "正式(Formal)"},
	{Code: StyleCasual, Label: "Casual", Display: "随意(Casual)"},
	{Code: StyleColloquial, Label: "Colloquial", Display: "口语化(Colloquial)"},
}

// UnknownStyleError 未知的风格标签
type UnknownStyleError struct {
	Label string
}

func (e *UnknownStyleError) Error() string {
	return fmt.Sprintf("未知的风格: %q", e.Label)
}

// StyleOptions 返回风格表的副本，顺序固定
func StyleOptions() []StyleOption {
	out := make([]StyleOption, len(styleOptions))
	copy(out, styleOptions)
	return out
}

// ParseStyle 将标签映射为风格码
//
// 接受英文标签 "Formal"、界面标签 "正式(Formal)" 以及风格码本身，大小写不敏感。
func ParseStyle(label string) (Style, error) {
	key := strings.TrimSpace(label)
	// 界面标签只取括号内的英文部分
	if open := strings.LastIndexAny(key, "(（"); open >= 0 {
		inner := key[open:]
		inner = strings.TrimLeft(inner, "(（")
		inner = strings.TrimRight(inner, ")）")
		key = strings.TrimSpace(inner)
	}
	for _, opt := range styleOptions {
		if strings.EqualFold(key, opt.Label) || strings.EqualFold(key, string(opt.Code)) {
			return opt.Code, nil
		}
	}
	return "", &UnknownStyleError{Label: label}
}

// Label 风格的英文标签
func (s Style) Label() string {
	for _, opt := range styleOptions {
		if opt.Code == s {
			return opt.Label
		}
	}
	return ""
}

// Valid 是否为已知风格
func (s Style) Valid() bool {
	return s.Label() != ""
}
