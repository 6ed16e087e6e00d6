package sheet

import (
	"encoding/json"
	"fmt"

	domain "github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type sheetIDRequest struct {
	ID string `json:"id"`
}

type createSheetRequest struct {
	Sheet domain.Sheet `json:"sheet"`
}

type updateSheetRequest struct {
	ID    string       `json:"id"`
	Patch domain.Patch `json:"patch"`
}

type listSheetsRequest struct {
	CampaignID string `json:"campaign,omitempty"`
	PageSize   int32  `json:"page_size,omitempty"`
	PageToken  string `json:"page_token,omitempty"`
}

type sheetResponse struct {
	Sheet domain.Sheet `json:"sheet"`
}

type listSheetsResponse struct {
	Sheets        []domain.Sheet `json:"sheets"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// encodeStruct converts a JSON-tagged value into a Struct message.
func encodeStruct(value any) (*structpb.Struct, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// decodeStruct fills target from a Struct message.
func decodeStruct(in *structpb.Struct, target any) error {
	if in == nil {
		return fmt.Errorf("message is required")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
