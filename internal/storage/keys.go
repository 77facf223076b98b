package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// objectKey 生成 <category>/<yyyy>/<mm>/<dd>/<base>.<ext>，各段只保留小写字母、数字、- 和 _
func objectKey(opts SaveOptions, now time.Time) string {
	now = now.UTC()
	category := cleanSegment(opts.Category)
	if category == "" {
		category = "misc"
	}
	base := strings.Trim(cleanSegment(strings.ReplaceAll(strings.TrimSpace(opts.BaseName), " ", "-")), "-_")
	if base == "" {
		base = fmt.Sprintf("%d", now.UnixNano())
	}
	return path.Join(category, now.Format("2006/01/02"), base+"."+cleanExtension(opts.Extension))
}

func cleanSegment(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cleanExtension(ext string) string {
	if cleaned := cleanSegment(strings.TrimPrefix(strings.TrimSpace(ext), ".")); cleaned != "" {
		return cleaned
	}
	return "bin"
}

func contentTypeFor(ext string) string {
	if typeName := mime.TypeByExtension("." + cleanExtension(ext)); typeName != "" {
		return typeName
	}
	return "application/octet-stream"
}

// withPrefix 把桶内前缀拼到 key 前面，前缀两端的 / 会被去掉
func withPrefix(prefix, key string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
