package lifecycle

import (
	"testing"

	"github.com/danmuck/geoctl/internal/gateway"
	"github.com/danmuck/geoctl/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideTable(t *testing.T) {
	present := resource.FromID("http://store.local", "9")
	desired := &Desired{
		Value:       "<p>hello</p>",
		Permissions: []gateway.Permission{{Group: "everyone", CanRead: true}},
		Options:     map[string]string{"type": "STRING"},
	}

	cases := []struct {
		name    string
		current resource.Reference
		desired *Desired
		want    Action
		id      string
	}{
		{"absent to present", resource.Absent(), desired, Create, ""},
		{"sentinel to present", resource.Reference{URI: resource.NoData}, desired, Create, ""},
		{"present to absent", present, nil, Delete, "9"},
		{"present to present", present, desired, Update, "9"},
		{"absent to absent", resource.Absent(), nil, NoOp, ""},
		{"sentinel to absent", resource.Reference{URI: resource.NoData}, nil, NoOp, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.current, tc.desired)
			assert.Equal(t, tc.want, got.Action)
			assert.Equal(t, tc.id, got.ResourceID)
		})
	}
}

func TestDecideUpdateCarriesPermissionsAndOptions(t *testing.T) {
	desired := &Desired{
		Value:       "v2",
		Permissions: []gateway.Permission{{User: "admin", CanRead: true, CanWrite: true}},
		Options:     map[string]string{"k": "v"},
	}
	got := Decide(resource.FromID("http://s", "3"), desired)
	require.Equal(t, Update, got.Action)
	require.Same(t, desired, got.Desired)
	assert.Equal(t, desired.Permissions, got.Desired.Permissions)
	assert.Equal(t, desired.Options, got.Desired.Options)
}

func TestDecideIsTotalAndDeterministic(t *testing.T) {
	refs := []resource.Reference{
		resource.Absent(),
		{URI: resource.NoData},
		{URI: "  "},
		resource.FromID("http://s", "1"),
		{URI: "rest/geostore/data/2"},
	}
	desires := []*Desired{nil, {}, {Value: "x"}}
	valid := map[Action]bool{NoOp: true, Create: true, Update: true, Delete: true}

	for _, ref := range refs {
		for _, d := range desires {
			first := Decide(ref, d)
			require.True(t, valid[first.Action], "unexpected action %v", first.Action)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, Decide(ref, d))
			}
		}
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "create", Create.String())
	assert.Equal(t, "update", Update.String())
	assert.Equal(t, "delete", Delete.String())
	assert.Equal(t, "noop", NoOp.String())
}
