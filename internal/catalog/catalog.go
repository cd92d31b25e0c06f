// Package catalog holds the static style and room knowledge used when
// compiling renovation prompts.
package catalog

import (
	"sort"
	"strings"
)

// Style describes the materials, palette and lighting of a design style.
type Style struct {
	Key         string
	Name        string
	Description string
	Materials   []string
	Colors      []string
	Finishes    []string
	Fixtures    []string
	Lighting    string
	Mood        string
	Keywords    []string
}

// Room describes what matters when renovating a given room type.
type Room struct {
	Key                    string
	Name                   string
	Description            string
	PreservationPriorities []string
	KeyElements            []string
	SuggestedStyle         string
	Keywords               []string
}

// LookupStyle returns the catalog entry for key. Keys are matched loosely, so
// "Mid-Century Modern" and "mid_century_modern" resolve to the same entry.
func LookupStyle(key string) (Style, bool) {
	s, ok := styles[NormalizeKey(key)]
	return s, ok
}

// LookupRoom returns the catalog entry for a room type.
func LookupRoom(key string) (Room, bool) {
	r, ok := rooms[NormalizeKey(key)]
	return r, ok
}

// Styles returns every style sorted by key.
func Styles() []Style {
	out := make([]Style, 0, len(styles))
	for _, s := range styles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Rooms returns every room type sorted by key.
func Rooms() []Room {
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// StyleNames lists display names, used when asking users to pick a style.
func StyleNames() []string {
	all := Styles()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	return names
}

// NormalizeKey lowercases and joins words with underscores.
func NormalizeKey(key string) string {
	clean := strings.ToLower(strings.TrimSpace(key))
	clean = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(clean)
	return strings.Join(strings.Fields(clean), "_")
}

var styles = map[string]Style{
	"modern": {
		Key:         "modern",
		Name:        "Modern",
		Description: "clean lines, uncluttered surfaces and a restrained palette",
		Materials:   []string{"flat-panel cabinetry", "quartz countertops", "large-format porcelain tile", "matte black metal accents"},
		Colors:      []string{"crisp white", "charcoal", "warm grey", "black accents"},
		Finishes:    []string{"matte", "handleless or slim pulls", "seamless surfaces"},
		Fixtures:    []string{"linear pendant lights", "integrated LED strips", "minimal faucets"},
		Lighting:    "even, bright ambient light with concealed LED accents",
		Mood:        "calm, sleek and airy",
		Keywords:    []string{"modern", "sleek", "minimal"},
	},
	"farmhouse": {
		Key:         "farmhouse",
		Name:        "Farmhouse",
		Description: "relaxed rural character with honest, hard-wearing materials",
		Materials:   []string{"shaker cabinetry", "butcher block or honed stone counters", "shiplap wall paneling", "wide-plank wood floors"},
		Colors:      []string{"warm white", "sage green", "natural oak", "aged black iron"},
		Finishes:    []string{"satin paint", "oil-rubbed bronze", "distressed wood"},
		Fixtures:    []string{"apron-front sink", "bridge faucet", "lantern or barn pendant lights"},
		Lighting:    "warm, soft light from pendants and natural daylight",
		Mood:        "welcoming, lived-in and cosy",
		Keywords:    []string{"farmhouse", "rustic", "country", "shiplap"},
	},
	"scandinavian": {
		Key:         "scandinavian",
		Name:        "Scandinavian",
		Description: "light, functional spaces with natural materials and soft textiles",
		Materials:   []string{"pale oak", "white lacquered cabinetry", "wool and linen textiles", "terrazzo accents"},
		Colors:      []string{"soft white", "pale grey", "light birch", "muted pastel accents"},
		Finishes:    []string{"matte lacquer", "oiled wood", "brushed steel"},
		Fixtures:    []string{"paper or opal glass pendants", "simple wall sconces"},
		Lighting:    "diffuse, bright daylight supplemented by warm layered lamps",
		Mood:        "serene, bright and hygge",
		Keywords:    []string{"scandinavian", "scandi", "nordic", "hygge"},
	},
	"industrial": {
		Key:         "industrial",
		Name:        "Industrial",
		Description: "raw, utilitarian surfaces inspired by converted warehouses",
		Materials:   []string{"exposed brick", "polished concrete", "blackened steel", "reclaimed timber"},
		Colors:      []string{"charcoal", "rust", "tobacco brown", "concrete grey"},
		Finishes:    []string{"raw metal", "sealed concrete", "weathered wood"},
		Fixtures:    []string{"caged pendants", "Edison bulbs", "open metal shelving"},
		Lighting:    "moody, directional light with warm filament bulbs",
		Mood:        "edgy, urban and robust",
		Keywords:    []string{"industrial", "loft", "warehouse", "exposed brick"},
	},
	"traditional": {
		Key:         "traditional",
		Name:        "Traditional",
		Description: "classic proportions, detailed millwork and rich materials",
		Materials:   []string{"raised-panel cabinetry", "marble", "hardwood flooring", "crown molding"},
		Colors:      []string{"cream", "navy", "burgundy", "walnut"},
		Finishes:    []string{"polished brass", "glazed cabinetry", "satin nickel"},
		Fixtures:    []string{"chandeliers", "classic sconces", "cross-handle faucets"},
		Lighting:    "warm, layered light from chandeliers and sconces",
		Mood:        "elegant, formal and timeless",
		Keywords:    []string{"traditional", "classic", "timeless"},
	},
	"coastal": {
		Key:         "coastal",
		Name:        "Coastal",
		Description: "breezy seaside palette with natural woven textures",
		Materials:   []string{"whitewashed wood", "rattan and jute", "beadboard", "glass tile"},
		Colors:      []string{"sandy beige", "seafoam", "ocean blue", "crisp white"},
		Finishes:    []string{"weathered", "brushed nickel", "light stains"},
		Fixtures:    []string{"woven pendants", "glass globe lights"},
		Lighting:    "abundant bright daylight with airy, cool tones",
		Mood:        "relaxed, fresh and light",
		Keywords:    []string{"coastal", "beach", "nautical", "seaside"},
	},
	"mid_century_modern": {
		Key:         "mid_century_modern",
		Name:        "Mid-Century Modern",
		Description: "1950s-60s organic forms, tapered legs and warm wood tones",
		Materials:   []string{"walnut veneer", "terrazzo", "geometric tile", "molded plywood"},
		Colors:      []string{"mustard", "teal", "burnt orange", "walnut"},
		Finishes:    []string{"satin wood", "brass", "lacquer"},
		Fixtures:    []string{"sputnik chandeliers", "globe pendants", "arc floor lamps"},
		Lighting:    "warm ambient light with sculptural statement fixtures",
		Mood:        "retro, optimistic and warm",
		Keywords:    []string{"mid century", "mid-century", "midcentury", "retro"},
	},
	"bohemian": {
		Key:         "bohemian",
		Name:        "Bohemian",
		Description: "eclectic layering of pattern, texture and collected objects",
		Materials:   []string{"patterned cement tile", "macrame", "rattan", "vintage rugs"},
		Colors:      []string{"terracotta", "ochre", "deep green", "jewel tones"},
		Finishes:    []string{"handmade", "aged brass", "natural fibres"},
		Fixtures:    []string{"woven pendants", "lantern lights", "plant hangers"},
		Lighting:    "warm, low, glowing light from many small sources",
		Mood:        "free-spirited, layered and cosy",
		Keywords:    []string{"bohemian", "boho", "eclectic"},
	},
	"transitional": {
		Key:         "transitional",
		Name:        "Transitional",
		Description: "a balanced blend of traditional warmth and modern restraint",
		Materials:   []string{"shaker cabinetry", "quartz", "engineered hardwood", "subway tile"},
		Colors:      []string{"greige", "soft white", "taupe", "slate blue"},
		Finishes:    []string{"brushed nickel", "satin", "eased edges"},
		Fixtures:    []string{"drum pendants", "simple chandeliers"},
		Lighting:    "balanced warm-neutral layered lighting",
		Mood:        "comfortable, refined and neutral",
		Keywords:    []string{"transitional"},
	},
	"contemporary": {
		Key:         "contemporary",
		Name:        "Contemporary",
		Description: "current, design-forward finishes with bold contrasts",
		Materials:   []string{"high-gloss cabinetry", "sintered stone", "glass", "brushed metal"},
		Colors:      []string{"bright white", "jet black", "bold accent colour"},
		Finishes:    []string{"high gloss", "polished chrome", "frameless glass"},
		Fixtures:    []string{"statement pendants", "recessed lighting"},
		Lighting:    "crisp, cool-white lighting with dramatic accents",
		Mood:        "bold, fresh and striking",
		Keywords:    []string{"contemporary"},
	},
	"japandi": {
		Key:         "japandi",
		Name:        "Japandi",
		Description: "Japanese restraint meets Scandinavian function",
		Materials:   []string{"light ash", "bamboo", "washi paper", "natural plaster"},
		Colors:      []string{"warm beige", "charcoal", "clay", "soft black"},
		Finishes:    []string{"raw wood", "limewash", "matte ceramic"},
		Fixtures:    []string{"paper lanterns", "low-profile fixtures"},
		Lighting:    "soft, indirect, warm light",
		Mood:        "quiet, grounded and balanced",
		Keywords:    []string{"japandi", "zen", "wabi sabi"},
	},
}

var rooms = map[string]Room{
	"kitchen": {
		Key:         "kitchen",
		Name:        "kitchen",
		Description: "a working kitchen where cabinetry, counters and appliances define the space",
		PreservationPriorities: []string{
			"plumbing locations (sink position) and appliance footprints",
			"cabinet run layout and counter heights",
			"island or peninsula footprint if present",
			"range hood and ventilation position",
		},
		KeyElements:    []string{"cabinetry", "countertops", "backsplash", "appliances", "lighting", "flooring"},
		SuggestedStyle: "modern",
		Keywords:       []string{"kitchen", "cabinets", "countertop", "backsplash", "island"},
	},
	"bathroom": {
		Key:         "bathroom",
		Name:        "bathroom",
		Description: "a bathroom with fixed wet-area plumbing",
		PreservationPriorities: []string{
			"toilet, sink and shower/tub plumbing positions",
			"shower or tub footprint",
			"window placement and ventilation",
		},
		KeyElements:    []string{"vanity", "tile", "shower", "tub", "mirror", "lighting"},
		SuggestedStyle: "contemporary",
		Keywords:       []string{"bathroom", "bath", "shower", "vanity", "toilet", "tub"},
	},
	"living_room": {
		Key:         "living_room",
		Name:        "living room",
		Description: "a main living space for relaxing and gathering",
		PreservationPriorities: []string{
			"fireplace position and surround if present",
			"built-in shelving and window seats",
			"traffic flow between doorways",
		},
		KeyElements:    []string{"seating", "flooring", "wall finish", "lighting", "fireplace", "window treatments"},
		SuggestedStyle: "transitional",
		Keywords:       []string{"living room", "lounge", "family room", "sitting room"},
	},
	"bedroom": {
		Key:         "bedroom",
		Name:        "bedroom",
		Description: "a private sleeping space",
		PreservationPriorities: []string{
			"closet and built-in positions",
			"window placement relative to the bed wall",
		},
		KeyElements:    []string{"bed wall", "flooring", "lighting", "storage", "textiles"},
		SuggestedStyle: "scandinavian",
		Keywords:       []string{"bedroom", "master suite", "guest room"},
	},
	"dining_room": {
		Key:         "dining_room",
		Name:        "dining room",
		Description: "a dining space centred on the table",
		PreservationPriorities: []string{
			"chandelier or ceiling outlet position",
			"openings to kitchen and living areas",
		},
		KeyElements:    []string{"table zone", "lighting", "wall finish", "flooring", "storage"},
		SuggestedStyle: "traditional",
		Keywords:       []string{"dining room", "dining"},
	},
	"basement": {
		Key:         "basement",
		Name:        "basement",
		Description: "a below-grade space with exposed structure and utilities",
		PreservationPriorities: []string{
			"support columns and beams",
			"mechanical equipment and utility access",
			"egress window positions",
		},
		KeyElements:    []string{"flooring", "ceiling treatment", "lighting", "wall finish"},
		SuggestedStyle: "industrial",
		Keywords:       []string{"basement", "cellar", "rec room"},
	},
	"office": {
		Key:         "office",
		Name:        "home office",
		Description: "a workspace with desk and storage",
		PreservationPriorities: []string{
			"electrical outlet positions",
			"window placement for natural light at the desk",
		},
		KeyElements:    []string{"desk zone", "storage", "lighting", "wall finish"},
		SuggestedStyle: "mid_century_modern",
		Keywords:       []string{"office", "study", "workspace"},
	},
	"laundry": {
		Key:         "laundry",
		Name:        "laundry room",
		Description: "a utility room with washer and dryer hookups",
		PreservationPriorities: []string{
			"washer and dryer hookups and venting",
			"utility sink position",
		},
		KeyElements:    []string{"cabinetry", "countertop", "tile", "storage"},
		SuggestedStyle: "farmhouse",
		Keywords:       []string{"laundry", "utility room", "mudroom"},
	},
	"exterior": {
		Key:         "exterior",
		Name:        "home exterior",
		Description: "the outside facade of a house",
		PreservationPriorities: []string{
			"rooflines and building massing",
			"window and door openings in the facade",
			"landscape grade and driveway layout",
		},
		KeyElements:    []string{"siding", "trim", "front door", "roofing", "landscaping"},
		SuggestedStyle: "transitional",
		Keywords:       []string{"exterior", "facade", "curb appeal", "front of the house"},
	},
}
