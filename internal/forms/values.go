package forms

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"appcc-workers/internal/common/logger"
)

// localMinuteFormat is the default "date" value: local time, minute precision.
const localMinuteFormat = "2006-01-02T15:04"

var completedStatuses = map[string]struct{}{
	"completed":  {},
	"completado": {},
}

// IsCompletedStatus reports whether a record status means the control was signed off.
func IsCompletedStatus(status string) bool {
	_, ok := completedStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// InitialValues seeds the value map from defaults and an optional prior
// record. The bool result is true when the record is already completed.
// Undecodable record data is logged and ignored.
func InitialValues(user *User, record *Record, now time.Time, log logger.Logger) (Values, bool) {
	values := Values{
		KeyDate:          now.Format(localMinuteFormat),
		KeyResponsible:   "",
		KeyResponsibleID: int64(0),
	}
	if user != nil {
		values[KeyResponsible] = user.Name
		values[KeyResponsibleID] = user.ID
	}

	if record == nil {
		return values, false
	}

	data, err := decodeFormData(record.FormData)
	if err != nil {
		rdErr := &RecordDataError{RecordID: record.ID, Cause: err}
		if log != nil {
			log.Warn("ignoring record form data", map[string]interface{}{
				"recordId": record.ID,
				"error":    rdErr,
			})
		}
	}
	for k, v := range data {
		values[k] = v
	}

	return values, IsCompletedStatus(record.Status)
}

func decodeFormData(data any) (map[string]any, error) {
	var raw []byte
	switch d := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return d, nil
	case Values:
		return d, nil
	case string:
		raw = []byte(d)
	case []byte:
		raw = d
	case json.RawMessage:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode formData: %w", err)
	}
	return out, nil
}
