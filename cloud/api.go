package cloud

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fastapicloud/buildlogs"
)

// apiDeployment is the JSON representation of a deployment.
type apiDeployment struct {
	ID        string  `json:"id"`
	AppID     string  `json:"app_id"`
	Slug      string  `json:"slug"`
	Status    string  `json:"status"`
	URL       string  `json:"url"`
	CreatedAt apiTime `json:"created_at"`
	UpdatedAt apiTime `json:"updated_at"`
}

func (d apiDeployment) toDomain() buildlogs.Deployment {
	return buildlogs.Deployment{
		ID:        d.ID,
		AppID:     d.AppID,
		Slug:      d.Slug,
		Status:    buildlogs.DeploymentStatus(d.Status),
		URL:       d.URL,
		CreatedAt: time.Time(d.CreatedAt),
		UpdatedAt: time.Time(d.UpdatedAt),
	}
}

// apiErrorResponse is FastAPI's error envelope. Detail is either a string or
// a list of validation errors.
type apiErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type apiValidationError struct {
	Msg string `json:"msg"`
}

// apiTime accepts RFC 3339 timestamps as well as the offset-less ISO 8601
// form Python emits for naive datetimes, which is read as UTC.
type apiTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*t = apiTime{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		*t = apiTime(parsed)
		return nil
	}
	var lastErr error
	for _, layout := range naiveLayouts {
		parsed, err := time.ParseInLocation(layout, *s, time.UTC)
		if err == nil {
			*t = apiTime(parsed)
			return nil
		}
		lastErr = err
	}
	return lastErr
}
