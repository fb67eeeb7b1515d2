package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() ImageInput {
	size := int64(2048)
	return ImageInput{
		ImageName:  "Sunset",
		ImageURL:   "https://cdn.example/sunset.jpg",
		Tags:       []string{"sky"},
		Size:       &size,
		Format:     "jpg",
		Category:   "nature",
		Resolution: &Resolution{Width: 1920, Height: 1080},
	}
}

func TestImageInputValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ImageInput)
		field  string
	}{
		{"missing name", func(in *ImageInput) { in.ImageName = "  " }, "imageName"},
		{"missing url", func(in *ImageInput) { in.ImageURL = "" }, "imageUrl"},
		{"non http url", func(in *ImageInput) { in.ImageURL = "ftp://cdn.example/a.jpg" }, "imageUrl"},
		{"bad download url", func(in *ImageInput) { in.DownloadURL = "cdn.example/a.jpg" }, "downloadUrl"},
		{"long description", func(in *ImageInput) { in.Description = strings.Repeat("x", 501) }, "description"},
		{"missing size", func(in *ImageInput) { in.Size = nil }, "size"},
		{"negative size", func(in *ImageInput) { n := int64(-1); in.Size = &n }, "size"},
		{"missing format", func(in *ImageInput) { in.Format = "" }, "format"},
		{"missing category", func(in *ImageInput) { in.Category = "" }, "category"},
		{"missing resolution", func(in *ImageInput) { in.Resolution = nil }, "resolution"},
		{"zero width", func(in *ImageInput) { in.Resolution = &Resolution{Width: 0, Height: 10} }, "resolution.width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, -1, verr.Index)
		})
	}
}

func TestImageInputNormalizes(t *testing.T) {
	in := validInput()
	in.ImageName = "  Sunset  "
	in.Tags = []string{" sky ", "", "sky", "orange"}
	in.Description = strings.Repeat("é", 500)
	require.NoError(t, in.Validate())
	assert.Equal(t, "Sunset", in.ImageName)
	assert.Equal(t, []string{"sky", "orange"}, in.Tags)

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	img := in.NewImage(now)
	assert.False(t, img.ID.IsZero())
	assert.Equal(t, in.ImageURL, img.DownloadURL)
	assert.Equal(t, now, img.CreatedAt)
	assert.Equal(t, now, img.UpdatedAt)
	assert.Zero(t, img.Views)
}

func TestImageUpdateValidate(t *testing.T) {
	empty := ""
	name := " New name "
	badURL := "nope"
	negative := int64(-5)

	err := (&ImageUpdate{}).Validate()
	assert.ErrorIs(t, err, ErrValidation)

	err = (&ImageUpdate{Category: &empty}).Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "category", verr.Field)

	assert.ErrorIs(t, (&ImageUpdate{ImageURL: &badURL}).Validate(), ErrValidation)

	blank := "   "
	err = (&ImageUpdate{DownloadURL: &blank}).Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "downloadUrl", verr.Field)
	assert.ErrorIs(t, (&ImageUpdate{Size: &negative}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&ImageUpdate{Resolution: &Resolution{Width: 10}}).Validate(), ErrValidation)

	update := ImageUpdate{ImageName: &name, Tags: &[]string{"a", " a ", "b"}}
	require.NoError(t, update.Validate())
	assert.Equal(t, "New name", *update.ImageName)
	assert.Equal(t, []string{"a", "b"}, *update.Tags)
	assert.Equal(t, map[string]any{"imageName": "New name", "tags": []string{"a", "b"}}, update.Fields())
}

func TestImageUpdateApplyTo(t *testing.T) {
	in := validInput()
	img := in.NewImage(time.Unix(0, 0).UTC())
	name := "Renamed"
	featured := true
	later := time.Unix(100, 0).UTC()

	ImageUpdate{ImageName: &name, IsFeatured: &featured}.ApplyTo(img, later)
	assert.Equal(t, "Renamed", img.ImageName)
	assert.True(t, img.IsFeatured)
	assert.Equal(t, "nature", img.Category)
	assert.Equal(t, later, img.UpdatedAt)
}

func TestImageQueryMatches(t *testing.T) {
	in := validInput()
	in.Description = "Evening over the (sea)"
	img := in.NewImage(time.Now())

	assert.True(t, ImageQuery{}.Matches(img))
	assert.True(t, ImageQuery{Category: "nature"}.Matches(img))
	assert.False(t, ImageQuery{Category: "Nature"}.Matches(img))
	assert.True(t, ImageQuery{Tag: "sky"}.Matches(img))
	assert.False(t, ImageQuery{Tag: "sk"}.Matches(img))
	assert.True(t, ImageQuery{Search: "SUN"}.Matches(img))
	assert.True(t, ImageQuery{Search: "(sea)"}.Matches(img))
	assert.True(t, ImageQuery{Search: "Sk"}.Matches(img))
	assert.False(t, ImageQuery{Search: "forest"}.Matches(img))
	assert.False(t, ImageQuery{Featured: true}.Matches(img))
}

func TestParseID(t *testing.T) {
	_, err := ParseID("not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)

	id, err := ParseID("65a1f0c2e4b0a1b2c3d4e5f6")
	require.NoError(t, err)
	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", id.Hex())
}

func TestCategoryCache(t *testing.T) {
	cache := newCategoryCache(time.Minute)
	_, generation, ok := cache.get()
	assert.False(t, ok)

	cache.set(generation, []string{"nature", "space"})
	got, _, ok := cache.get()
	require.True(t, ok)
	assert.Equal(t, []string{"nature", "space"}, got)

	got[0] = "mutated"
	again, _, _ := cache.get()
	assert.Equal(t, "nature", again[0])

	cache.purge()
	_, _, ok = cache.get()
	assert.False(t, ok)

	t.Run("list read before a purge is dropped", func(t *testing.T) {
		_, before, ok := cache.get()
		require.False(t, ok)
		cache.purge()
		cache.set(before, []string{"nature"})
		_, _, ok = cache.get()
		assert.False(t, ok)
	})

	disabled := newCategoryCache(0)
	_, generation, _ = disabled.get()
	disabled.set(generation, []string{"nature"})
	_, _, ok = disabled.get()
	assert.False(t, ok)
}
