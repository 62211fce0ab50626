package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces sensitive values.
const Redacted = "***REDACTED***"

var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"authorization",
	"bearer",
	"cookie",
}

func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, Redacted)
		}
		if looksLikeSessionToken(v) {
			return slog.String(a.Key, MaskSessionToken(v))
		}
		if strings.HasPrefix(strings.ToLower(v), "bearer ") {
			return slog.String(a.Key, "Bearer "+Redacted)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey reports whether an attribute key names secret material.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// MaskSessionToken keeps the subject id and hides the signature.
func MaskSessionToken(v string) string {
	subject, _, ok := strings.Cut(v, ".")
	if !ok {
		return Redacted
	}
	return subject + "." + Redacted
}

// looksLikeSessionToken matches "<digits>.<64 hex>".
func looksLikeSessionToken(v string) bool {
	subject, sig, ok := strings.Cut(v, ".")
	if !ok || subject == "" || len(sig) != 64 {
		return false
	}
	for i := 0; i < len(subject); i++ {
		if subject[i] < '0' || subject[i] > '9' {
			return false
		}
	}
	for i := 0; i < len(sig); i++ {
		c := sig[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
