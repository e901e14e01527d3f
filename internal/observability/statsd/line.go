package statsd

import (
	"strconv"
	"strings"
)

// Kind is the StatsD metric type suffix.
type Kind string

const (
	KindCount  Kind = "c"
	KindGauge  Kind = "g"
	KindTiming Kind = "ms"
)

// DefaultPrefix namespaces every metric emitted by the service.
const DefaultPrefix = "track_analysis"

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_", "#", "_")

// metricName joins prefix and name into a dotted StatsD key. It returns ""
// when name has no usable characters.
func metricName(prefix, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	n = squeezeDots(nameReplacer.Replace(n))
	if n == "" {
		return ""
	}
	if prefix == "" {
		return n
	}
	return prefix + "." + n
}

// cleanPrefix trims whitespace and surrounding dots.
func cleanPrefix(prefix string) string {
	return squeezeDots(strings.TrimSpace(prefix))
}

func squeezeDots(s string) string {
	parts := strings.Split(s, ".")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// encodeLine renders one datagram: name:value|kind|#k:v,... with tags
// sorted by key. Local tags override global ones.
func encodeLine(name string, value float64, kind Kind, global, local map[string]string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	if kind == KindCount {
		b.WriteString(strconv.FormatInt(int64(value), 10))
	} else {
		b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	b.WriteByte('|')
	b.WriteString(string(kind))

	tags := mergeTags(global, local)
	if len(tags) == 0 {
		return b.String()
	}
	b.WriteString("|#")
	for i, k := range sortedKeys(tags) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(tags[k])
	}
	return b.String()
}

func mergeTags(global, local map[string]string) map[string]string {
	if len(global) == 0 && len(local) == 0 {
		return nil
	}
	merged := normalizeTags(global)
	for k, v := range normalizeTags(local) {
		merged[k] = v
	}
	return merged
}
