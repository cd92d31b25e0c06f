package prompts

import (
	"encoding/json"
	"net/http"

	"renovateAi/internal/vision"
)

// CompileRequest is the JSON body accepted by CompileHandler.
type CompileRequest struct {
	RoomType       string               `json:"room_type"`
	Style          string               `json:"style"`
	CustomRoomType string               `json:"custom_room_type"`
	CustomStyle    string               `json:"custom_style"`
	Constraints    string               `json:"constraints"`
	VoiceSummary   string               `json:"voice_summary"`
	VariationIndex int                  `json:"variation_index"`
	Quick          bool                 `json:"quick"`
	Analysis       *vision.RoomAnalysis `json:"analysis"`
	Changes        []string             `json:"desired_changes"`
	Preserve       []string             `json:"preserve"`
	Materials      []string             `json:"materials"`
	HasDepthMap    bool                 `json:"has_depth_map"`
	HasEdgeMap     bool                 `json:"has_edge_map"`
}

// Data converts the request into compiler input.
func (req CompileRequest) Data() Data {
	d := Data{
		RoomType:       req.RoomType,
		Style:          req.Style,
		CustomRoomType: req.CustomRoomType,
		CustomStyle:    req.CustomStyle,
		Constraints:    req.Constraints,
		VoiceSummary:   req.VoiceSummary,
		VariationIndex: req.VariationIndex,
		Analysis:       req.Analysis,
		Conditioning:   Conditioning{HasDepthMap: req.HasDepthMap, HasEdgeMap: req.HasEdgeMap},
	}
	if len(req.Changes)+len(req.Preserve)+len(req.Materials) > 0 {
		d.Intent = &DesignIntent{Changes: req.Changes, Preserve: req.Preserve, Materials: req.Materials}
	}
	return d
}

// CompileHandler handles POST /api/prompts/compile.
func CompileHandler(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.VariationIndex < 0 {
		http.Error(w, "variation_index must not be negative", http.StatusBadRequest)
		return
	}

	prompt := Compile(req.Data())
	if req.Quick {
		prompt = CompileQuick(req.Data())
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"prompt": prompt})
}
