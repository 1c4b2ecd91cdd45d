package bounty

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"

	"bounty-backend/core/bounty"
)

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

func validateFields(fields map[string]string) error {
	for k := range fields {
		if !fieldName.MatchString(k) {
			return errors.Wrapf(bounty.ErrInvalidArgument, "filter field %q", k)
		}
	}
	return nil
}

// matchFields reports whether every filter names a top-level field of data
// whose text equals the wanted value. Field names are validated by the caller.
func matchFields(data json.RawMessage, fields map[string]string) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return false, errors.Wrap(err, "decode account data")
	}
	for k, want := range fields {
		raw, ok := top[k]
		if !ok {
			return false, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		if s != want {
			return false, nil
		}
	}
	return true, nil
}
