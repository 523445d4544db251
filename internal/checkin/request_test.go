package checkin

import (
	"encoding/json"
	"testing"

	"checkin-desk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_UnmarshalKeepsOrder(t *testing.T) {
	var r Request
	require.NoError(t, json.Unmarshal([]byte(`{"t3":"__auto__","t1":"__skip__","t2":"__undo__","t1":"__clear__"}`), &r))

	assert.Equal(t, Request{
		{TeamID: "t3", Action: domain.ActionAuto},
		{TeamID: "t1", Action: domain.ActionClear},
		{TeamID: "t2", Action: domain.ActionUndo},
	}, r)
	assert.Equal(t, []string{"t3", "t1", "t2"}, r.TeamIDs())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t3":"__auto__","t1":"__clear__","t2":"__undo__"}`, string(b))
}

func TestRequest_UnmarshalRejectsNonObject(t *testing.T) {
	var r Request
	assert.Error(t, json.Unmarshal([]byte(`["t1"]`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"t1": 3}`), &r))

	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.Nil(t, r)
}

func TestSelect(t *testing.T) {
	checkedIn := map[string]bool{"done": true, "done2": true}
	r := Request{
		{TeamID: "new", Action: domain.ActionAuto},
		{TeamID: "done", Action: domain.ActionSkip},
		{TeamID: "done2", Action: domain.ActionUndo},
		{TeamID: "done", Action: domain.ActionAuto},
	}

	got := Select(r, checkedIn)
	assert.Equal(t, []string{"new", "done2", "done"}, got.TeamIDs())
}
