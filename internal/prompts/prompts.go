// Package prompts compiles renovation data into a single image-generation
// instruction. Section order matters: geometry constraints come before any
// style direction.
package prompts

import (
	"fmt"
	"strings"

	"renovateAi/internal/catalog"
	"renovateAi/internal/vision"
)

// Section headers, in output order.
const (
	HeaderScene       = "SCENE DESCRIPTION"
	HeaderStructure   = "STRUCTURAL PRESERVATION"
	HeaderMaterials   = "MATERIALS & FINISHES"
	HeaderLighting    = "LIGHTING"
	HeaderPerspective = "PERSPECTIVE"
	HeaderQuality     = "OUTPUT QUALITY"
	HeaderConstraints = "USER CONSTRAINTS"
	HeaderIntent      = "DESIGN INTENT"
	HeaderVoice       = "VOICE CONSULTATION SUMMARY"
	HeaderCorrection  = "STRUCTURAL CORRECTION"
	HeaderVariation   = "VARIATION"
)

// DesignIntent is the conversation's accumulated intent.
type DesignIntent struct {
	Changes   []string
	Preserve  []string
	Materials []string
}

// Conditioning flags structural inputs sent alongside the prompt.
type Conditioning struct {
	HasDepthMap bool
	HasEdgeMap  bool
}

// Reinforcement carries the result of a failed structural validation into
// the next attempt's prompt.
type Reinforcement struct {
	Score  float64
	Issues []string
}

// Data is everything Compile needs. It is built fresh for each call.
type Data struct {
	RoomType       string
	Style          string
	CustomRoomType string
	CustomStyle    string
	Constraints    string
	VariationIndex int
	Analysis       *vision.RoomAnalysis
	Intent         *DesignIntent
	Conditioning   Conditioning
	VoiceSummary   string
	Reinforcement  *Reinforcement
}

var universalInvariants = []string{
	"Keep the exact room dimensions and proportions.",
	"Keep every wall in its current position and angle. Do not add, remove or move walls.",
	"Keep the ceiling height and ceiling features exactly as they are.",
	"Keep every window and door at its current position and size, and keep their count unchanged.",
	"Keep the camera position, camera angle and field of view identical to the original photo.",
}

// variationHints are selected by VariationIndex mod 4.
var variationHints = [...]string{
	"Emphasise accent details: distinctive hardware, a statement light fixture and one bold focal element, all within the chosen style.",
	"Emphasise warmth: warmer colour temperature, softer textiles and inviting wood tones, all within the chosen style.",
	"Emphasise natural texture: visible wood grain, stone, woven fibres and tactile surfaces, all within the chosen style.",
	"Emphasise minimalism: fewer objects, clean surfaces and generous negative space, all within the chosen style.",
}

// Compile renders d as an ordered, sectioned instruction. The output depends
// only on d.
func Compile(d Data) string {
	return compile(d, false)
}

// CompileQuick is Compile without the analyzer and conditioning material, for
// the no-analysis path. The universal structural invariants are kept.
func CompileQuick(d Data) string {
	return compile(d, true)
}

type resolved struct {
	room      *catalog.Room
	roomLabel string
	style     *catalog.Style
	styleName string
}

func resolve(d Data) resolved {
	var r resolved
	switch {
	case strings.TrimSpace(d.CustomRoomType) != "":
		r.roomLabel = collapse(d.CustomRoomType)
	default:
		if room, ok := catalog.LookupRoom(d.RoomType); ok {
			r.room = &room
			r.roomLabel = room.Name
		} else if label := collapse(strings.ReplaceAll(d.RoomType, "_", " ")); label != "" {
			r.roomLabel = label
		} else {
			r.roomLabel = "room"
		}
	}

	switch {
	case strings.TrimSpace(d.CustomStyle) != "":
		r.styleName = collapse(d.CustomStyle)
	default:
		if style, ok := catalog.LookupStyle(d.Style); ok {
			r.style = &style
			r.styleName = strings.ToLower(style.Name)
		} else {
			r.styleName = collapse(d.Style)
		}
	}
	return r
}

func compile(d Data, quick bool) string {
	if quick {
		d.Analysis = nil
		d.Conditioning = Conditioning{}
	}
	r := resolve(d)

	var b strings.Builder
	writeScene(&b, r)
	writeStructure(&b, d, r)
	writeMaterials(&b, d, r)
	writeLighting(&b, d, r)
	writePerspective(&b, d)
	writeQuality(&b)

	if c := strings.TrimSpace(d.Constraints); c != "" {
		section(&b, HeaderConstraints)
		b.WriteString(c)
		b.WriteString("\n")
	}
	writeIntent(&b, d.Intent)
	if v := strings.TrimSpace(d.VoiceSummary); v != "" {
		section(&b, HeaderVoice)
		b.WriteString(v)
		b.WriteString("\n")
	}
	writeCorrection(&b, d.Reinforcement)
	if d.VariationIndex > 0 {
		section(&b, fmt.Sprintf("%s %d", HeaderVariation, d.VariationIndex))
		b.WriteString(variationHints[d.VariationIndex%len(variationHints)])
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, header string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(header)
	b.WriteString(":\n")
}

func bullets(b *strings.Builder, items ...string) {
	for _, item := range items {
		if item = collapse(item); item != "" {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
}

func writeScene(b *strings.Builder, r resolved) {
	section(b, HeaderScene)
	if r.styleName == "" {
		fmt.Fprintf(b, "Photorealistic renovation of this %s, keeping its character while refreshing every finish.\n", r.roomLabel)
	} else {
		fmt.Fprintf(b, "Photorealistic renovation of this %s in a %s style.", r.roomLabel, r.styleName)
		if r.style != nil {
			fmt.Fprintf(b, " The style is defined by %s, and the finished space should feel %s.", r.style.Description, r.style.Mood)
		}
		b.WriteString("\n")
	}
	if r.room != nil {
		fmt.Fprintf(b, "The photo shows %s.\n", r.room.Description)
	}
}

func writeStructure(b *strings.Builder, d Data, r resolved) {
	section(b, HeaderStructure)
	b.WriteString("These are hard constraints and override every style direction below.\n")

	seen := map[string]struct{}{}
	add := func(items ...string) {
		for _, item := range items {
			key := strings.ToLower(collapse(item))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			bullets(b, item)
		}
	}

	add(universalInvariants...)
	if a := d.Analysis; a != nil {
		for _, el := range a.StructuralElements {
			add("Preserve " + el + ".")
		}
		add(a.PreservationConstraints...)
		for _, w := range a.Walls {
			add(describeWall(w))
		}
		if a.CeilingHeight != "" {
			add("Ceiling height stays " + a.CeilingHeight + ".")
		}
		if a.LayoutType != "" && a.LayoutType != "unknown" {
			add("Keep the " + a.LayoutType + " layout.")
		}
	}
	if r.room != nil {
		for _, p := range r.room.PreservationPriorities {
			add("Preserve " + p + ".")
		}
	}

	if d.Conditioning.HasDepthMap || d.Conditioning.HasEdgeMap {
		var maps []string
		if d.Conditioning.HasDepthMap {
			maps = append(maps, "depth map")
		}
		if d.Conditioning.HasEdgeMap {
			maps = append(maps, "edge map")
		}
		add(fmt.Sprintf("The supplied %s conditioning takes precedence over this text: where they disagree, follow the conditioning maps.", strings.Join(maps, " and ")))
	}
}

func describeWall(w vision.Wall) string {
	if strings.TrimSpace(w.Position) == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The %s wall stays in place", w.Position)
	if w.Dimensions != "" {
		fmt.Fprintf(&b, " (%s)", w.Dimensions)
	}
	if len(w.Openings) > 0 {
		parts := make([]string, 0, len(w.Openings))
		for _, o := range w.Openings {
			desc := o.Type
			if o.Size != "" {
				desc += " " + o.Size
			}
			if o.Position != "" {
				desc += " at " + o.Position
			}
			parts = append(parts, desc)
		}
		fmt.Fprintf(&b, " with its %s", strings.Join(parts, ", "))
	}
	b.WriteString(".")
	return b.String()
}

func writeMaterials(b *strings.Builder, d Data, r resolved) {
	section(b, HeaderMaterials)
	switch {
	case r.style != nil:
		bullets(b,
			"Materials: "+strings.Join(r.style.Materials, ", "),
			"Colors: "+strings.Join(r.style.Colors, ", "),
			"Finishes: "+strings.Join(r.style.Finishes, ", "),
			"Fixtures: "+strings.Join(r.style.Fixtures, ", "),
		)
	case r.styleName != "":
		bullets(b, fmt.Sprintf("Choose materials, colors, finishes and fixtures that authentically express a %s style.", r.styleName))
	default:
		bullets(b, "Choose durable, contemporary materials and finishes that suit the room.")
	}
	if d.Intent != nil && len(d.Intent.Materials) > 0 {
		bullets(b, "Homeowner material preferences, which take priority: "+strings.Join(d.Intent.Materials, ", "))
	}
}

func writeLighting(b *strings.Builder, d Data, r resolved) {
	section(b, HeaderLighting)
	if r.style != nil {
		bullets(b, "Style lighting: "+r.style.Lighting+".")
	}
	if d.Analysis != nil && strings.TrimSpace(d.Analysis.Lighting) != "" {
		bullets(b,
			"Existing light in the photo: "+d.Analysis.Lighting+".",
			"Match the direction, intensity and colour temperature of the existing light.",
		)
		return
	}
	bullets(b, "Keep natural light entering through the existing windows.")
}

func writePerspective(b *strings.Builder, d Data) {
	section(b, HeaderPerspective)
	bullets(b, "Same camera position, height and angle as the original photo.")
	if a := d.Analysis; a != nil {
		if strings.TrimSpace(a.Perspective) != "" {
			bullets(b, "Original camera: "+a.Perspective+".")
		}
		if len(a.ArchitecturalLines) > 0 {
			bullets(b, "Keep these lines aligned: "+strings.Join(a.ArchitecturalLines, ", ")+".")
		}
	}
}

func writeQuality(b *strings.Builder) {
	section(b, HeaderQuality)
	bullets(b,
		"Photorealistic, high resolution, professional interior photography.",
		"Realistic material textures, reflections and shadows.",
		"No text, watermarks, people, warped geometry or rendering artifacts.",
	)
}

func writeIntent(b *strings.Builder, intent *DesignIntent) {
	if intent == nil || (len(intent.Changes) == 0 && len(intent.Preserve) == 0 && len(intent.Materials) == 0) {
		return
	}
	section(b, HeaderIntent)
	if len(intent.Changes) > 0 {
		bullets(b, "Changes requested: "+strings.Join(intent.Changes, "; "))
	}
	if len(intent.Preserve) > 0 {
		bullets(b, "Keep unchanged: "+strings.Join(intent.Preserve, "; "))
	}
	if len(intent.Materials) > 0 {
		bullets(b, "Preferred materials: "+strings.Join(intent.Materials, ", "))
	}
}

func writeCorrection(b *strings.Builder, r *Reinforcement) {
	if r == nil {
		return
	}
	section(b, HeaderCorrection)
	bullets(b,
		fmt.Sprintf("The previous render scored %.2f for structural fidelity, which is not acceptable.", r.Score),
		"Walls, windows, doors and ceiling must match the original photo exactly. Do not change room geometry.",
	)
	if issues := vision.SummarizeIssues(r.Issues, 5); issues != "" {
		bullets(b, "Fix these deviations: "+issues)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
