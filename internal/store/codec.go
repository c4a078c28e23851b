package store

import (
	"encoding/json"

	"github.com/shoplane/fulfillment/pkg/api"
)

// Variables and history are persisted as JSON. The Value envelope carries
// its own type tag, so a bag read back from disk (or from another process)
// keeps the declared kinds intact instead of collapsing everything to
// float64 the way plain JSON numbers would.

func encodeVariables(vars api.VariableBag) ([]byte, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	return json.Marshal(vars)
}

func decodeVariables(data []byte) (api.VariableBag, error) {
	if len(data) == 0 {
		return api.VariableBag{}, nil
	}
	var vars api.VariableBag
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func encodeHistory(history []api.ActivityRecord) ([]byte, error) {
	if len(history) == 0 {
		return nil, nil
	}
	return json.Marshal(history)
}

func decodeHistory(data []byte) ([]api.ActivityRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var history []api.ActivityRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}
