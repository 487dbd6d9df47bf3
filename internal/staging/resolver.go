package staging

import (
	"fmt"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
)

// Role of an image within its room. Derived from the room, never cached
// on the image row.
type Role int

const (
	RoleReference Role = iota
	RoleSecondary
)

func (r Role) String() string {
	if r == RoleReference {
		return "reference"
	}
	return "secondary"
}

// RoleOf derives an image's role. An image outside any room behaves as a
// reference: it owns its history and nothing is locked.
func RoleOf(room *models.Room, image *models.Image) Role {
	if room == nil || image.RoomID == nil {
		return RoleReference
	}
	if room.IsReference(image.ID) {
		return RoleReference
	}
	return RoleSecondary
}

// Defaults computes the options the editor is seeded with for an image.
//
// Reference images seed from their own latest settings; secondary angles
// seed from the ROOM's reference image settings, never their own history,
// so every angle renders in the same style as the reference. The TV
// restriction for bathrooms and kitchens applies on top.
func Defaults(room *models.Room, image *models.Image) Options {
	opts := DefaultOptions()

	switch RoleOf(room, image) {
	case RoleReference:
		if image.LatestSettings != nil {
			opts = fromSnapshot(image.LatestSettings)
		}
	case RoleSecondary:
		if ref := room.ReferenceImage(); ref != nil && ref.LatestSettings != nil {
			opts = fromSnapshot(ref.LatestSettings)
		}
	}

	if room != nil && TVRestricted(room.RoomType) {
		opts.IncludeTV = false
	}
	return opts
}

// Resolve validates requested options for submission and returns the
// effective, legal option set.
//
// For a secondary angle, style_preset, wall_decorations and include_tv
// are pinned to the values inherited from the room's reference; a request
// that differs on any of them is rejected with a ValidationError before
// anything is sent. Only fix_white_balance is freely editable per angle.
// include_tv is forced to false for TV-restricted room types regardless
// of the caller's input.
func Resolve(room *models.Room, image *models.Image, roomType string, requested Options) (Options, error) {
	if !IsValidStylePreset(requested.StylePreset) {
		return Options{}, &ValidationError{
			Field:  "style_preset",
			Reason: fmt.Sprintf("unknown style preset %q", requested.StylePreset),
		}
	}

	if RoleOf(room, image) == RoleSecondary {
		inherited := Defaults(room, image)
		if requested.StylePreset != inherited.StylePreset {
			return Options{}, lockedFieldError("style_preset", inherited.StylePreset)
		}
		if requested.WallDecorations != inherited.WallDecorations {
			return Options{}, lockedFieldError("wall_decorations", inherited.WallDecorations)
		}
		if requested.IncludeTV != inherited.IncludeTV {
			return Options{}, lockedFieldError("include_tv", inherited.IncludeTV)
		}
	}

	effective := requested
	if TVRestricted(roomType) {
		effective.IncludeTV = false
	}
	return effective, nil
}

func lockedFieldError(field string, inherited interface{}) error {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("locked for secondary angles; inherited value is %v", inherited),
	}
}

func fromSnapshot(s *models.SettingsSnapshot) Options {
	return Options{
		StylePreset:     s.StylePreset,
		FixWhiteBalance: s.FixWhiteBalance,
		WallDecorations: s.WallDecorations,
		IncludeTV:       s.IncludeTV,
	}
}

// Snapshot converts options to the wire snapshot shape.
func (o Options) Snapshot() *models.SettingsSnapshot {
	return &models.SettingsSnapshot{
		StylePreset:     o.StylePreset,
		FixWhiteBalance: o.FixWhiteBalance,
		WallDecorations: o.WallDecorations,
		IncludeTV:       o.IncludeTV,
	}
}
