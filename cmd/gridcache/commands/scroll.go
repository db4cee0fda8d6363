package commands

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/pkg/asset"
)

// viewer is the slice of grid.Controller a scroll drives.
type viewer interface {
	FetchNewImages(visible []int, changed int) error
	RemoveImagesFromCache(visible []int, changed int) error
	SetImageInCell(ctx context.Context, index int, cell asset.Size, deliver func(assetID string, img image.Image)) error
}

// scrollScript moves a viewport of Visible cells so that its first cell
// goes from From to To, Step indices at a time. To may be below From.
type scrollScript struct {
	From    int
	To      int
	Step    int
	Visible int
	Cell    asset.Size
}

// scrollResult counts what a replay did.
type scrollResult struct {
	Steps       int
	Appeared    int
	Disappeared int
}

func (s scrollScript) validate() error {
	switch {
	case s.From < 0 || s.To < 0:
		return errors.New("scroll positions must not be negative")
	case s.Step <= 0:
		return fmt.Errorf("step must be positive, got %d", s.Step)
	case s.Visible <= 0:
		return fmt.Errorf("visible must be positive, got %d", s.Visible)
	case s.Cell.IsZero():
		return fmt.Errorf("cell size must be positive, got %s", s.Cell)
	}
	return nil
}

// run replays the script against v over a list of count assets. Images
// for cells are handed to deliver, possibly after run returns.
//
// Cells are reported the way a grid view reports them: an appearing cell is
// announced against the cells already on screen, and a disappearing cell
// against the cells that remain.
func (s scrollScript) run(ctx context.Context, v viewer, count int, deliver func(assetID string, img image.Image)) (scrollResult, error) {
	if err := s.validate(); err != nil {
		return scrollResult{}, err
	}

	var (
		res      scrollResult
		onScreen []int
	)

	appear := func(i int) error {
		if err := v.FetchNewImages(onScreen, i); err != nil {
			return err
		}
		if err := v.SetImageInCell(ctx, i, s.Cell, deliver); err != nil {
			return err
		}
		onScreen = insertSorted(onScreen, i)
		res.Appeared++
		return nil
	}
	disappear := func(i int) error {
		onScreen = removeSorted(onScreen, i)
		res.Disappeared++
		return v.RemoveImagesFromCache(onScreen, i)
	}

	for _, i := range s.viewport(s.From, count) {
		if err := appear(i); err != nil {
			return res, err
		}
	}

	top := s.From
	for top != s.To {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		next := top + s.Step
		if s.To < s.From {
			next = top - s.Step
		}
		if (s.To >= s.From && next > s.To) || (s.To < s.From && next < s.To) {
			next = s.To
		}
		forward := next > top

		before := s.viewport(top, count)
		after := s.viewport(next, count)

		entering := difference(after, before)
		if !forward {
			slices.Reverse(entering)
		}
		for _, i := range entering {
			if err := appear(i); err != nil {
				return res, err
			}
		}

		leaving := difference(before, after)
		if !forward {
			slices.Reverse(leaving)
		}
		for _, i := range leaving {
			if err := disappear(i); err != nil {
				return res, err
			}
		}

		top = next
		res.Steps++
		logger.Debug("scrolled", logger.Index(top), logger.Count(len(onScreen)))
	}

	return res, nil
}

// viewport returns the indices on screen when the first cell is top.
func (s scrollScript) viewport(top, count int) []int {
	end := min(top+s.Visible, count)
	if top >= end {
		return nil
	}
	out := make([]int, 0, end-top)
	for i := top; i < end; i++ {
		out = append(out, i)
	}
	return out
}

// difference returns the elements of a missing from b. Both are sorted.
func difference(a, b []int) []int {
	var out []int
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j < len(b) && b[j] == x {
			continue
		}
		out = append(out, x)
	}
	return out
}

func insertSorted(s []int, x int) []int {
	i, _ := slices.BinarySearch(s, x)
	return slices.Insert(s, i, x)
}

func removeSorted(s []int, x int) []int {
	if i, ok := slices.BinarySearch(s, x); ok {
		return slices.Delete(s, i, i+1)
	}
	return s
}
