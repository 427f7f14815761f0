package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugTagKey struct{}

// DebugTagField is the field CDebugf adds to lines logged under EnableDebugMode.
const DebugTagField = "debug_tag"

// EnableDebugMode marks ctx so that CDebugf logs with it regardless of the logger's level. Those
// lines carry tag in DebugTagField, which tells one traced run or reload apart from another. An
// empty tag is replaced with a random one.
func EnableDebugMode(ctx context.Context, tag string) context.Context {
	if tag == "" {
		tag = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugTagKey{}, tag)
}

// DebugTag returns the tag ctx was marked with, or "" when debug mode is off.
func DebugTag(ctx context.Context) string {
	tag, _ := ctx.Value(debugTagKey{}).(string)
	return tag
}
