package vision

import "strings"

// RoomType is the room classification reported by the analyzer.
type RoomType string

const (
	RoomKitchen  RoomType = "kitchen"
	RoomBathroom RoomType = "bathroom"
	RoomLiving   RoomType = "living_room"
	RoomBedroom  RoomType = "bedroom"
	RoomDining   RoomType = "dining_room"
	RoomBasement RoomType = "basement"
	RoomOffice   RoomType = "office"
	RoomLaundry  RoomType = "laundry"
	RoomExterior RoomType = "exterior"
	RoomOther    RoomType = "other"
	RoomUnknown  RoomType = ""
)

var knownRoomTypes = []RoomType{
	RoomKitchen, RoomBathroom, RoomLiving, RoomBedroom, RoomDining,
	RoomBasement, RoomOffice, RoomLaundry, RoomExterior, RoomOther,
}

// ParseRoomType maps free text such as "Living Room" onto a RoomType.
// Unrecognised values map to RoomOther; empty input maps to RoomUnknown.
func ParseRoomType(raw string) RoomType {
	clean := strings.ToLower(strings.TrimSpace(raw))
	if clean == "" {
		return RoomUnknown
	}
	clean = strings.Join(strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(clean)), "_")
	for _, rt := range knownRoomTypes {
		if string(rt) == clean {
			return rt
		}
	}
	switch clean {
	case "living", "lounge", "family_room":
		return RoomLiving
	case "dining":
		return RoomDining
	case "bath", "washroom", "ensuite":
		return RoomBathroom
	case "home_office", "study":
		return RoomOffice
	case "laundry_room", "utility_room":
		return RoomLaundry
	case "facade", "outside":
		return RoomExterior
	}
	return RoomOther
}

// Condition describes the current state of the photographed room.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionUnknown   Condition = "unknown"
)

// ParseCondition normalises analyzer output onto the Condition enum.
func ParseCondition(raw string) Condition {
	switch Condition(strings.ToLower(strings.TrimSpace(raw))) {
	case ConditionExcellent:
		return ConditionExcellent
	case ConditionGood:
		return ConditionGood
	case ConditionFair, "dated", "average":
		return ConditionFair
	case ConditionPoor, "needs_renovation", "needs renovation":
		return ConditionPoor
	default:
		return ConditionUnknown
	}
}

// Opening is a window, door or pass-through in a wall.
type Opening struct {
	Type     string `json:"type"`
	Wall     string `json:"wall"`
	Size     string `json:"size"`
	Position string `json:"position"`
}

// Wall describes one wall as seen in the photo.
type Wall struct {
	Position   string    `json:"position"`
	Dimensions string    `json:"dimensions,omitempty"`
	Material   string    `json:"material,omitempty"`
	Openings   []Opening `json:"openings,omitempty"`
}

// RoomAnalysis is the structured description of a photographed room. It is
// treated as immutable once produced.
type RoomAnalysis struct {
	RoomType                RoomType  `json:"room_type"`
	Condition               Condition `json:"condition"`
	StructuralElements      []string  `json:"structural_elements"`
	Fixtures                []string  `json:"fixtures"`
	LayoutType              string    `json:"layout_type"`
	Lighting                string    `json:"lighting"`
	Perspective             string    `json:"perspective"`
	PreservationConstraints []string  `json:"preservation_constraints"`
	Confidence              float64   `json:"confidence"`

	WallCount          int      `json:"wall_count,omitempty"`
	Walls              []Wall   `json:"walls,omitempty"`
	CeilingHeight      string   `json:"ceiling_height,omitempty"`
	SpatialZones       []string `json:"spatial_zones,omitempty"`
	ArchitecturalLines []string `json:"architectural_lines,omitempty"`

	// Degraded marks a neutral analysis substituted after a failed call.
	Degraded bool `json:"degraded,omitempty"`
}

// QuickCheck is the cheap pre-flight answer: is this a usable room photo?
type QuickCheck struct {
	RoomType   RoomType `json:"room_type"`
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
}

// NeutralAnalysis is the low-confidence stand-in used when analysis fails.
func NeutralAnalysis(hint RoomType) RoomAnalysis {
	rt := hint
	if rt == RoomUnknown {
		rt = RoomOther
	}
	return RoomAnalysis{
		RoomType:   rt,
		Condition:  ConditionUnknown,
		LayoutType: "unknown",
		Confidence: 0.1,
		Degraded:   true,
	}
}

// Photo is an encoded input image.
type Photo struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// GeneratedImage is an encoded output image.
type GeneratedImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// ValidationResult is one structural-fidelity verdict.
type ValidationResult struct {
	IsAcceptable    bool     `json:"is_acceptable"`
	Score           float64  `json:"score"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
