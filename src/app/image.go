package app

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxDescriptionLength = 500

var httpURLPattern = regexp.MustCompile(`^https?://.+`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return httpURLPattern.MatchString(fl.Field().String())
	})
	return v
}

type (
	// Resolution is the pixel size of an image.
	Resolution struct {
		Width  int `json:"width" bson:"width" validate:"gt=0"`
		Height int `json:"height" bson:"height" validate:"gt=0"`
	}

	// Image is the stored wallpaper metadata record.
	Image struct {
		ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
		ImageName   string             `json:"imageName" bson:"imageName"`
		ImageURL    string             `json:"imageUrl" bson:"imageUrl"`
		DownloadURL string             `json:"downloadUrl" bson:"downloadUrl"`
		Description string             `json:"description" bson:"description"`
		Tags        []string           `json:"tags" bson:"tags"`
		Size        int64              `json:"size" bson:"size"`
		Format      string             `json:"format" bson:"format"`
		Category    string             `json:"category" bson:"category"`
		Resolution  Resolution         `json:"resolution" bson:"resolution"`
		IsFeatured  bool               `json:"isFeatured" bson:"isFeatured"`
		Downloads   int64              `json:"downloads" bson:"downloads"`
		Views       int64              `json:"views" bson:"views"`
		Likes       int64              `json:"likes" bson:"likes"`
		CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
		UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
	}

	// ImageInput is the create payload. Size and Resolution are pointers so a
	// missing value can be told apart from zero.
	ImageInput struct {
		ImageName   string      `json:"imageName" validate:"required"`
		ImageURL    string      `json:"imageUrl" validate:"required,httpurl"`
		DownloadURL string      `json:"downloadUrl" validate:"omitempty,httpurl"`
		Description string      `json:"description" validate:"max=500"`
		Tags        []string    `json:"tags"`
		Size        *int64      `json:"size" validate:"required,gte=0"`
		Format      string      `json:"format" validate:"required"`
		Category    string      `json:"category" validate:"required"`
		Resolution  *Resolution `json:"resolution" validate:"required"`
		IsFeatured  bool        `json:"isFeatured"`
	}

	// ImageUpdate is a partial update; nil fields keep their stored value.
	ImageUpdate struct {
		ImageName   *string     `json:"imageName"`
		ImageURL    *string     `json:"imageUrl"`
		DownloadURL *string     `json:"downloadUrl"`
		Description *string     `json:"description"`
		Tags        *[]string   `json:"tags"`
		Size        *int64      `json:"size"`
		Format      *string     `json:"format"`
		Category    *string     `json:"category"`
		Resolution  *Resolution `json:"resolution"`
		IsFeatured  *bool       `json:"isFeatured"`
	}

	// ImageQuery narrows a listing. The zero value matches every record.
	ImageQuery struct {
		Category string
		Tag      string
		Search   string
		Featured bool
	}

	// Counter names an engagement counter on Image.
	Counter string
)

const (
	CounterViews     Counter = "views"
	CounterLikes     Counter = "likes"
	CounterDownloads Counter = "downloads"
)

func (c Counter) Valid() bool {
	switch c {
	case CounterViews, CounterLikes, CounterDownloads:
		return true
	}
	return false
}

// Validate trims the input and checks every rule of the create contract.
func (in *ImageInput) Validate() error {
	in.ImageName = strings.TrimSpace(in.ImageName)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.DownloadURL = strings.TrimSpace(in.DownloadURL)
	in.Format = strings.TrimSpace(in.Format)
	in.Category = strings.TrimSpace(in.Category)
	in.Tags = normalizeTags(in.Tags)

	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		return fieldError(fieldErrs[0])
	}
	return invalid("", err.Error())
}

// NewImage builds a record from a validated input.
func (in ImageInput) NewImage(now time.Time) *Image {
	downloadURL := in.DownloadURL
	if downloadURL == "" {
		downloadURL = in.ImageURL
	}
	return &Image{
		ID:          primitive.NewObjectID(),
		ImageName:   in.ImageName,
		ImageURL:    in.ImageURL,
		DownloadURL: downloadURL,
		Description: in.Description,
		Tags:        in.Tags,
		Size:        *in.Size,
		Format:      in.Format,
		Category:    in.Category,
		Resolution:  *in.Resolution,
		IsFeatured:  in.IsFeatured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the fields that are present and reports whether any are.
func (u *ImageUpdate) Validate() error {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(u.ImageName)
	trim(u.ImageURL)
	trim(u.DownloadURL)
	trim(u.Format)
	trim(u.Category)

	if u.Empty() {
		return invalid("", "no updatable fields in request")
	}
	required := []struct {
		field string
		value *string
	}{{"imageName", u.ImageName}, {"downloadUrl", u.DownloadURL}, {"format", u.Format}, {"category", u.Category}}
	for _, r := range required {
		if r.value != nil && *r.value == "" {
			return invalid(r.field, "must not be empty")
		}
	}
	if u.ImageURL != nil && !httpURLPattern.MatchString(*u.ImageURL) {
		return invalid("imageUrl", "must be an http(s) URL")
	}
	if u.DownloadURL != nil && !httpURLPattern.MatchString(*u.DownloadURL) {
		return invalid("downloadUrl", "must be an http(s) URL")
	}
	if u.Description != nil && utf8.RuneCountInString(*u.Description) > maxDescriptionLength {
		return invalid("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	if u.Size != nil && *u.Size < 0 {
		return invalid("size", "must be >= 0")
	}
	if u.Resolution != nil && (u.Resolution.Width <= 0 || u.Resolution.Height <= 0) {
		return invalid("resolution", "width and height must be > 0")
	}
	if u.Tags != nil {
		tags := normalizeTags(*u.Tags)
		u.Tags = &tags
	}
	return nil
}

func (u ImageUpdate) Empty() bool {
	return u.ImageName == nil && u.ImageURL == nil && u.DownloadURL == nil &&
		u.Description == nil && u.Tags == nil && u.Size == nil && u.Format == nil &&
		u.Category == nil && u.Resolution == nil && u.IsFeatured == nil
}

// Fields returns the present fields keyed by their document names.
func (u ImageUpdate) Fields() map[string]any {
	fields := map[string]any{}
	set := func(name string, present bool, value func() any) {
		if present {
			fields[name] = value()
		}
	}
	set("imageName", u.ImageName != nil, func() any { return *u.ImageName })
	set("imageUrl", u.ImageURL != nil, func() any { return *u.ImageURL })
	set("downloadUrl", u.DownloadURL != nil, func() any { return *u.DownloadURL })
	set("description", u.Description != nil, func() any { return *u.Description })
	set("tags", u.Tags != nil, func() any { return *u.Tags })
	set("size", u.Size != nil, func() any { return *u.Size })
	set("format", u.Format != nil, func() any { return *u.Format })
	set("category", u.Category != nil, func() any { return *u.Category })
	set("resolution", u.Resolution != nil, func() any { return *u.Resolution })
	set("isFeatured", u.IsFeatured != nil, func() any { return *u.IsFeatured })
	return fields
}

// ApplyTo merges the present fields into img.
func (u ImageUpdate) ApplyTo(img *Image, now time.Time) {
	if u.ImageName != nil {
		img.ImageName = *u.ImageName
	}
	if u.ImageURL != nil {
		img.ImageURL = *u.ImageURL
	}
	if u.DownloadURL != nil {
		img.DownloadURL = *u.DownloadURL
	}
	if u.Description != nil {
		img.Description = *u.Description
	}
	if u.Tags != nil {
		img.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.Size != nil {
		img.Size = *u.Size
	}
	if u.Format != nil {
		img.Format = *u.Format
	}
	if u.Category != nil {
		img.Category = *u.Category
	}
	if u.Resolution != nil {
		img.Resolution = *u.Resolution
	}
	if u.IsFeatured != nil {
		img.IsFeatured = *u.IsFeatured
	}
	img.UpdatedAt = now
}

// Matches reports whether img satisfies q. Search is a case-insensitive
// substring match over name, tags and description.
func (q ImageQuery) Matches(img *Image) bool {
	if q.Category != "" && img.Category != q.Category {
		return false
	}
	if q.Featured && !img.IsFeatured {
		return false
	}
	if q.Tag != "" && !containsTag(img.Tags, q.Tag) {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	if strings.Contains(strings.ToLower(img.ImageName), needle) ||
		strings.Contains(strings.ToLower(img.Description), needle) {
		return true
	}
	for _, tag := range img.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// ParseID turns a hex identifier into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "httpurl":
		reason = "must be an http(s) URL"
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		reason = fmt.Sprintf("must be >= %s", fe.Param())
	case "gt":
		reason = fmt.Sprintf("must be > %s", fe.Param())
	default:
		reason = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return invalid(field, reason)
}
