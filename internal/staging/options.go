package staging

import "strings"

// Options is the fully-populated option set a staging job is submitted
// with. All fields are required; defaults are explicit, never implied by
// a missing key.
type Options struct {
	StylePreset     string `json:"style_preset"`
	FixWhiteBalance bool   `json:"fix_white_balance"`
	WallDecorations bool   `json:"wall_decorations"`
	IncludeTV       bool   `json:"include_tv"`
}

// Style presets
const (
	StyleModern       = "modern"
	StyleScandinavian = "scandinavian"
	StyleIndustrial   = "industrial"
	StyleMinimalist   = "minimalist"
	StyleBohemian     = "bohemian"
	StyleCoastal      = "coastal"
	StyleFarmhouse    = "farmhouse"
	StyleLuxury       = "luxury"
)

// StylePresets lists every selectable design aesthetic.
var StylePresets = []string{
	StyleModern,
	StyleScandinavian,
	StyleIndustrial,
	StyleMinimalist,
	StyleBohemian,
	StyleCoastal,
	StyleFarmhouse,
	StyleLuxury,
}

// Room types
const (
	RoomTypeLivingRoom = "living_room"
	RoomTypeBedroom    = "bedroom"
	RoomTypeBathroom   = "bathroom"
	RoomTypeKitchen    = "kitchen"
	RoomTypeDiningRoom = "dining_room"
	RoomTypeOffice     = "office"
	RoomTypeOther      = "other"
)

// RoomTypes lists the enumerated room types. Property-level room creation
// also accepts free-form labels; NormalizeRoomType maps those onto this
// set before a job is submitted.
var RoomTypes = []string{
	RoomTypeLivingRoom,
	RoomTypeBedroom,
	RoomTypeBathroom,
	RoomTypeKitchen,
	RoomTypeDiningRoom,
	RoomTypeOffice,
	RoomTypeOther,
}

// freeFormAliases maps labels offered at property-level room creation
// onto the enumerated types.
var freeFormAliases = map[string]string{
	"home_office": RoomTypeOffice,
	"outdoor":     RoomTypeOther,
}

// DefaultOptions returns the seed options used when no history exists:
// modern style, no white-balance fix, wall decorations on, no TV.
func DefaultOptions() Options {
	return Options{
		StylePreset:     StyleModern,
		FixWhiteBalance: false,
		WallDecorations: true,
		IncludeTV:       false,
	}
}

// IsValidStylePreset reports whether preset is one of the 8 enumerated
// presets.
func IsValidStylePreset(preset string) bool {
	for _, p := range StylePresets {
		if p == preset {
			return true
		}
	}
	return false
}

// NormalizeRoomType converts a room-type label (enumerated id or a
// free-form label such as "Home Office") into an enumerated room type.
// Unknown labels map to "other".
func NormalizeRoomType(label string) string {
	id := strings.ToLower(strings.TrimSpace(label))
	id = strings.ReplaceAll(id, " ", "_")
	for _, t := range RoomTypes {
		if t == id {
			return t
		}
	}
	if mapped, ok := freeFormAliases[id]; ok {
		return mapped
	}
	return RoomTypeOther
}

// TVRestricted reports whether a TV may never be placed in rooms of this
// type. Applies at submission time, not merely as a UI hint.
func TVRestricted(roomType string) bool {
	t := NormalizeRoomType(roomType)
	return t == RoomTypeBathroom || t == RoomTypeKitchen
}
