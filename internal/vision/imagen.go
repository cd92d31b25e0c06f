package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// VertexImagen implements ImageGenerator via the Vertex AI prediction API.
type VertexImagen struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

const capabilityImagen = "vision.imagen"

// NewVertexImagen dials the prediction service once; the client is reused
// for every render and released by Close.
func NewVertexImagen(ctx context.Context, cfg VertexImagenConfig) (*VertexImagen, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	location := strings.TrimSpace(cfg.Location)
	model := strings.TrimSpace(cfg.Model)
	if projectID == "" || location == "" || model == "" {
		return nil, Unavailable(capabilityImagen, fmt.Errorf("imagen: missing project/location/model"))
	}

	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location))}
	if sa := strings.TrimSpace(cfg.ServiceAccountJSON); sa != "" {
		options = append(options, option.WithCredentialsJSON([]byte(sa)))
	} else if path := strings.TrimSpace(cfg.ServiceAccount); path != "" {
		options = append(options, option.WithCredentialsFile(path))
	} else if key := strings.TrimSpace(cfg.APIKey); key != "" {
		options = append(options, option.WithAPIKey(key))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return nil, Unavailable(capabilityImagen, fmt.Errorf("imagen: prediction client: %w", err))
	}
	return &VertexImagen{
		client:   client,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, location, model),
	}, nil
}

// Close releases the prediction client.
func (v *VertexImagen) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

// Generate edits the input photo when present, otherwise renders from text.
func (v *VertexImagen) Generate(ctx context.Context, req ImageRequest) (GeneratedImage, error) {
	if v == nil || v.client == nil {
		return GeneratedImage{}, Unavailable(capabilityImagen, fmt.Errorf("imagen: client not configured"))
	}
	instance, params, err := buildImagenRequest(req)
	if err != nil {
		return GeneratedImage{}, err
	}

	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return GeneratedImage{}, Classify(capabilityImagen, fmt.Errorf("imagen: predict: %w", err))
	}
	return decodeImagenPrediction(resp)
}

func buildImagenRequest(req ImageRequest) (*structpb.Value, *structpb.Value, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, nil, fmt.Errorf("imagen: prompt is required")
	}
	instance := map[string]any{"prompt": req.Prompt}
	params := map[string]any{"sampleCount": 1}
	if req.Input != nil && len(req.Input.Data) > 0 {
		instance["image"] = map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(req.Input.Data),
		}
		params["editMode"] = "inpainting-free-form"
	}

	instanceValue, err := structpb.NewValue(instance)
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: encode instance: %w", err)
	}
	paramsValue, err := structpb.NewValue(params)
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: encode parameters: %w", err)
	}
	return instanceValue, paramsValue, nil
}

func decodeImagenPrediction(resp *aiplatformpb.PredictResponse) (GeneratedImage, error) {
	if resp == nil || len(resp.Predictions) == 0 {
		return GeneratedImage{}, Empty(capabilityImagen, fmt.Errorf("imagen: empty prediction response"))
	}
	fields := resp.Predictions[0].GetStructValue().GetFields()
	field := fields["bytesBase64Encoded"]
	if field == nil || field.GetStringValue() == "" {
		return GeneratedImage{}, Empty(capabilityImagen, fmt.Errorf("imagen: prediction missing bytes"))
	}

	data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
	if err != nil {
		return GeneratedImage{}, Empty(capabilityImagen, fmt.Errorf("imagen: decode result: %w", err))
	}
	mime := "image/png"
	if m := fields["mimeType"].GetStringValue(); m != "" {
		mime = m
	}
	return GeneratedImage{Data: data, MIMEType: mime}, nil
}
