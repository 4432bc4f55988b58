// Package textutil 提供文档问答相关的文本处理工具函数。
//
// 本包中带 Rune 后缀的偏移量以 Unicode 字符计，其余偏移量以字节计。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// HashString 计算字符串的 MD5 哈希值。
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateRunes 截断字符串到指定的最大 Unicode 字符数。
func TruncateRunes(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return s[:RuneToByteOffset(s, maxLen)]
}

// RuneToByteOffset 将字符偏移转换为字节偏移，超出范围时返回 len(s)。
func RuneToByteOffset(s string, runeIdx int) int {
	if runeIdx <= 0 {
		return 0
	}
	n := 0
	for i := range s {
		if n == runeIdx {
			return i
		}
		n++
	}
	return len(s)
}

// Normalize 对文本做 NFKC 规范化，并把连续空白折叠为单个空格。
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Fold 返回大小写折叠后的文本，用于不区分大小写的比较。
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Span 表示 [Start, End) 字节区间。
type Span struct {
	Start int
	End   int
}

// Token 表示一个词元及其在原文中的字节区间。
type Token struct {
	// Text 是大小写折叠后的词元
	Text string
	Span
}

// Tokenize 按字母和数字切分文本。
func Tokenize(s string) []Token {
	caser := cases.Fold()
	var tokens []Token
	start := -1
	for i, r := range s {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = append(tokens, Token{Text: caser.String(s[start:i]), Span: Span{Start: start, End: i}})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: caser.String(s[start:]), Span: Span{Start: start, End: len(s)}})
	}
	return tokens
}

// SplitSentences 按句末标点和空行切分文本，返回去除首尾空白后的句子区间。
func SplitSentences(s string) []Span {
	var spans []Span
	start := 0
	emit := func(end int) {
		seg := s[start:end]
		trimmedLeft := strings.TrimLeftFunc(seg, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
		if trimmed != "" {
			from := start + len(seg) - len(trimmedLeft)
			spans = append(spans, Span{Start: from, End: from + len(trimmed)})
		}
	}

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		next := i + size
		switch {
		case r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？':
			nr, _ := utf8.DecodeRuneInString(s[next:])
			if next >= len(s) || unicode.IsSpace(nr) {
				emit(next)
				start = next
			}
		case r == '\n':
			nr, _ := utf8.DecodeRuneInString(s[next:])
			if next < len(s) && nr == '\n' {
				emit(i)
				start = next
			}
		}
		i = next
	}
	emit(len(s))
	return spans
}

// Window 表示滑动窗口切分出的一段文本，Start 和 End 为字符偏移。
type Window struct {
	Text  string
	Start int
	End   int
}

// SlidingWindows 以 size 为窗口、step 为步长按字符切分文本。
func SlidingWindows(text string, size, step int) []Window {
	if size <= 0 {
		return nil
	}
	if step <= 0 {
		step = size
	}
	runes := []rune(text)
	var windows []Window
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, Window{Text: string(runes[start:end]), Start: start, End: end})
	}
	return windows
}

// Segment 表示按字符数切分出的文本段，Offset 为该段在原文中的字节偏移。
type Segment struct {
	Text   string
	Offset int
}

// SplitRunes 按最多 size 个字符切分文本，切分点总在字符边界上。
func SplitRunes(text string, size int) []Segment {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []Segment{{Text: text}}
	}
	var segments []Segment
	offset := 0
	for offset < len(text) {
		end := offset + RuneToByteOffset(text[offset:], size)
		segments = append(segments, Segment{Text: text[offset:end], Offset: offset})
		offset = end
	}
	return segments
}

// SquaredL2Distance 计算两个向量欧氏距离的平方，与 Milvus L2 度量一致。
// 长度不一致时返回 +Inf。
func SquaredL2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// SimilarityFromDistance 把距离映射为 (0, 1] 区间的相似度。
func SimilarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
