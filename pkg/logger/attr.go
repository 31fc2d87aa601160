package logger

import (
	"fmt"
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// EntityType records the entity kind under the key "entity_type".
func EntityType[T ~string](t T) slog.Attr {
	return slog.String("entity_type", string(t))
}

// EntityID records the entity identifier under the key "entity_id".
// Type-wide operations log "*".
func EntityID(id string) slog.Attr {
	if id == "" {
		id = "*"
	}
	return slog.String("entity_id", id)
}

// Subject records the grant holder ("user:42", "role:editors") under the key "subject".
func Subject(s fmt.Stringer) slog.Attr {
	return slog.String("subject", s.String())
}

// Mask records a permission mask under the key "mask" using its textual form.
func Mask(m fmt.Stringer) slog.Attr {
	return slog.String("mask", m.String())
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RoleID records the role identifier under the key "role_id".
func RoleID(id string) slog.Attr {
	return slog.String("role_id", id)
}

// Depth records the cascade depth under the key "depth".
func Depth(d int) slog.Attr {
	return slog.Int("depth", d)
}

// Count records a number of affected rows or items under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Private records the privacy flag under the key "private".
func Private(v bool) slog.Attr {
	return slog.Bool("private", v)
}

// Banned records the ban flag under the key "banned".
func Banned(v bool) slog.Attr {
	return slog.Bool("banned", v)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
