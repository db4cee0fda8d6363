package commands

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/asset"
)

type event struct {
	kind    string
	changed int
	visible []int
}

type recordingViewer struct {
	events []event
}

func (v *recordingViewer) record(kind string, visible []int, changed int) {
	v.events = append(v.events, event{kind: kind, changed: changed, visible: append([]int(nil), visible...)})
}

func (v *recordingViewer) FetchNewImages(visible []int, changed int) error {
	v.record("fetch", visible, changed)
	return nil
}

func (v *recordingViewer) RemoveImagesFromCache(visible []int, changed int) error {
	v.record("remove", visible, changed)
	return nil
}

func (v *recordingViewer) SetImageInCell(_ context.Context, index int, _ asset.Size, deliver func(string, image.Image)) error {
	v.record("set", nil, index)
	deliver("id", nil)
	return nil
}

func (v *recordingViewer) kinds(kind string) []event {
	var out []event
	for _, e := range v.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var cell = asset.Size{Width: 100, Height: 100}

func TestScroll_Forward(t *testing.T) {
	v := &recordingViewer{}
	s := scrollScript{From: 0, To: 4, Step: 2, Visible: 3, Cell: cell}

	delivered := 0
	res, err := s.run(context.Background(), v, 10, func(string, image.Image) { delivered++ })
	require.NoError(t, err)

	assert.Equal(t, scrollResult{Steps: 2, Appeared: 7, Disappeared: 4}, res)
	assert.Equal(t, 7, delivered)

	fetches := v.kinds("fetch")
	require.Len(t, fetches, 7)
	assert.Equal(t, event{"fetch", 0, nil}, fetches[0])
	assert.Equal(t, event{"fetch", 1, []int{0}}, fetches[1])
	assert.Equal(t, event{"fetch", 3, []int{0, 1, 2}}, fetches[3])
	assert.Equal(t, event{"fetch", 4, []int{0, 1, 2, 3}}, fetches[4])

	removes := v.kinds("remove")
	require.Len(t, removes, 4)
	assert.Equal(t, event{"remove", 0, []int{1, 2, 3, 4}}, removes[0])
	assert.Equal(t, event{"remove", 1, []int{2, 3, 4}}, removes[1])
	assert.Equal(t, event{"remove", 3, []int{4, 5, 6}}, removes[3])
}

func TestScroll_Backward(t *testing.T) {
	v := &recordingViewer{}
	s := scrollScript{From: 4, To: 0, Step: 3, Visible: 2, Cell: cell}

	res, err := s.run(context.Background(), v, 10, func(string, image.Image) {})
	require.NoError(t, err)
	assert.Equal(t, scrollResult{Steps: 2, Appeared: 5, Disappeared: 3}, res)

	fetches := v.kinds("fetch")
	require.Len(t, fetches, 5)
	// Cells above the viewport appear bottom-up.
	assert.Equal(t, event{"fetch", 2, []int{4, 5}}, fetches[2])
	assert.Equal(t, event{"fetch", 1, []int{2, 4, 5}}, fetches[3])
	assert.Equal(t, event{"fetch", 0, []int{1, 2}}, fetches[4])

	removes := v.kinds("remove")
	require.Len(t, removes, 3)
	assert.Equal(t, event{"remove", 5, []int{1, 2, 4}}, removes[0])
	assert.Equal(t, event{"remove", 4, []int{1, 2}}, removes[1])
	assert.Equal(t, event{"remove", 2, []int{0, 1}}, removes[2])
}

func TestScroll_ClipsToList(t *testing.T) {
	v := &recordingViewer{}
	s := scrollScript{From: 0, To: 10, Step: 5, Visible: 4, Cell: cell}

	res, err := s.run(context.Background(), v, 6, func(string, image.Image) {})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Steps)
	for _, e := range v.events {
		assert.Less(t, e.changed, 6)
	}
	assert.Equal(t, res.Appeared, res.Disappeared)
}

func TestScroll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scrollScript{From: 0, To: 100, Step: 1, Visible: 3, Cell: cell}
	_, err := s.run(ctx, &recordingViewer{}, 200, func(string, image.Image) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScrollScript_Validate(t *testing.T) {
	tests := []struct {
		name string
		s    scrollScript
	}{
		{"negative from", scrollScript{From: -1, Step: 1, Visible: 1, Cell: cell}},
		{"zero step", scrollScript{Step: 0, Visible: 1, Cell: cell}},
		{"zero visible", scrollScript{Step: 1, Visible: 0, Cell: cell}},
		{"zero cell", scrollScript{Step: 1, Visible: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.s.validate())
		})
	}
	assert.NoError(t, scrollScript{Step: 1, Visible: 1, Cell: cell}.validate())
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []int{0, 1}, difference([]int{0, 1, 2}, []int{2, 3, 4}))
	assert.Nil(t, difference([]int{2, 3}, []int{1, 2, 3, 4}))
	assert.Equal(t, []int{5}, difference([]int{5}, nil))
}
