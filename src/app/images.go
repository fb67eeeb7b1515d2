package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultRandomLimit = 32
	MaxRandomLimit     = 100
)

// ImageStore persists image records.
type ImageStore interface {
	Insert(ctx context.Context, images []*Image) error
	// Find returns matches in insertion order; limit 0 means no limit.
	Find(ctx context.Context, q ImageQuery, skip, limit int64) ([]Image, error)
	Count(ctx context.Context, q ImageQuery) (int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Image, error)
	Update(ctx context.Context, id primitive.ObjectID, update ImageUpdate, now time.Time) (*Image, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Increment(ctx context.Context, id primitive.ObjectID, counter Counter, now time.Time) (*Image, error)
	Categories(ctx context.Context) ([]string, error)
	Sample(ctx context.Context, size int) ([]Image, error)
}

// EmptyResultPolicy decides how browse and search report zero matches.
type EmptyResultPolicy string

const (
	EmptyAsNotFound EmptyResultPolicy = "not_found"
	EmptyAsEmpty    EmptyResultPolicy = "empty"
)

func (p EmptyResultPolicy) Valid() bool {
	return p == EmptyAsNotFound || p == EmptyAsEmpty
}

type ImageServiceOptions struct {
	// Objects is optional; without it uploads are unavailable and deletes
	// skip blob cleanup.
	Objects     ObjectStore
	Policy      EmptyResultPolicy
	CategoryTTL time.Duration
	Logger      logrus.FieldLogger
}

// ImageService holds the business rules for image metadata.
type ImageService struct {
	store      ImageStore
	objects    ObjectStore
	policy     EmptyResultPolicy
	categories *categoryCache
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewImageService(store ImageStore, opts ImageServiceOptions) *ImageService {
	policy := opts.Policy
	if !policy.Valid() {
		policy = EmptyAsNotFound
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageService{
		store:      store,
		objects:    opts.Objects,
		policy:     policy,
		categories: newCategoryCache(opts.CategoryTTL),
		log:        logger.WithField("component", "images"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateOne validates and stores a single record.
func (s *ImageService) CreateOne(ctx context.Context, in ImageInput) (*Image, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	img := in.NewImage(s.now())
	if err := s.store.Insert(ctx, []*Image{img}); err != nil {
		return nil, storeErr("insert image", err)
	}
	s.categories.purge()
	return img, nil
}

// CreateMany validates every record before storing any of them; the first
// invalid record rejects the whole batch.
func (s *ImageService) CreateMany(ctx context.Context, inputs []ImageInput) ([]*Image, error) {
	if len(inputs) == 0 {
		return nil, invalid("", "at least one record is required")
	}
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Index = i
			}
			return nil, err
		}
	}
	now := s.now()
	images := make([]*Image, len(inputs))
	for i, in := range inputs {
		images[i] = in.NewImage(now)
	}
	if err := s.store.Insert(ctx, images); err != nil {
		return nil, storeErr("insert images", err)
	}
	s.categories.purge()
	return images, nil
}

func (s *ImageService) List(ctx context.Context) ([]Image, error) {
	images, err := s.store.Find(ctx, ImageQuery{}, 0, 0)
	if err != nil {
		return nil, storeErr("list images", err)
	}
	return images, nil
}

func (s *ImageService) Paginate(ctx context.Context, req PageRequest) (*Page[Image], error) {
	page, err := Paginate(ctx, req,
		func(ctx context.Context) (int64, error) { return s.store.Count(ctx, ImageQuery{}) },
		func(ctx context.Context, skip, limit int64) ([]Image, error) {
			return s.store.Find(ctx, ImageQuery{}, skip, limit)
		})
	if err != nil {
		return nil, storeErr("paginate images", err)
	}
	return page, nil
}

func (s *ImageService) Get(ctx context.Context, rawID string) (*Image, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get image", err)
	}
	return img, nil
}

func (s *ImageService) Update(ctx context.Context, rawID string, update ImageUpdate) (*Image, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	img, err := s.store.Update(ctx, id, update, s.now())
	if err != nil {
		return nil, storeErr("update image", err)
	}
	if update.Category != nil {
		s.categories.purge()
	}
	return img, nil
}

// Delete removes the record and, best effort, the blob it points at. A failed
// blob delete is logged and counted but never fails the call.
func (s *ImageService) Delete(ctx context.Context, rawID string) (*Image, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get image", err)
	}
	if key, ok := s.storedKey(img); ok {
		if err := s.objects.Delete(ctx, key); err != nil {
			orphanedObjects.Inc()
			s.log.WithError(err).WithFields(logrus.Fields{"id": rawID, "key": key}).
				Warn("object delete failed, blob left behind")
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, storeErr("delete image", err)
	}
	s.categories.purge()
	return img, nil
}

func (s *ImageService) ByCategory(ctx context.Context, category string) ([]Image, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, invalid("category", "is required")
	}
	images, err := s.store.Find(ctx, ImageQuery{Category: category}, 0, 0)
	if err != nil {
		return nil, storeErr("find by category", err)
	}
	return s.emptyResult(images, "no images found in category: %s", category)
}

func (s *ImageService) ByTag(ctx context.Context, tag string) ([]Image, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, invalid("tag", "is required")
	}
	images, err := s.store.Find(ctx, ImageQuery{Tag: tag}, 0, 0)
	if err != nil {
		return nil, storeErr("find by tag", err)
	}
	return s.emptyResult(images, "no images found with tag: %s", tag)
}

func (s *ImageService) Featured(ctx context.Context) ([]Image, error) {
	images, err := s.store.Find(ctx, ImageQuery{Featured: true}, 0, 0)
	if err != nil {
		return nil, storeErr("find featured", err)
	}
	return images, nil
}

// Categories lists the distinct non-empty categories.
func (s *ImageService) Categories(ctx context.Context) ([]string, error) {
	cached, generation, ok := s.categories.get()
	if ok {
		return cached, nil
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, storeErr("distinct categories", err)
	}
	result := make([]string, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c) != "" {
			result = append(result, c)
		}
	}
	s.categories.set(generation, result)
	return result, nil
}

func (s *ImageService) CountByCategory(ctx context.Context, category string) (int64, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, invalid("category", "is required")
	}
	count, err := s.store.Count(ctx, ImageQuery{Category: category})
	if err != nil {
		return 0, storeErr("count by category", err)
	}
	return count, nil
}

// Search matches query as a literal, case-insensitive substring of the name,
// any tag or the description.
func (s *ImageService) Search(ctx context.Context, query string) ([]Image, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("query", "is required")
	}
	images, err := s.store.Find(ctx, ImageQuery{Search: query}, 0, 0)
	if err != nil {
		return nil, storeErr("search images", err)
	}
	return s.emptyResult(images, "no images found for search query: %s", query)
}

// ParseRandomLimit coerces the raw limit into [1, MaxRandomLimit].
func ParseRandomLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultRandomLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxRandomLimit {
		return MaxRandomLimit
	}
	return limit
}

func (s *ImageService) Random(ctx context.Context, limit int) ([]Image, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxRandomLimit {
		limit = MaxRandomLimit
	}
	images, err := s.store.Sample(ctx, limit)
	if err != nil {
		return nil, storeErr("sample images", err)
	}
	return images, nil
}

func (s *ImageService) Increment(ctx context.Context, rawID string, counter Counter) (*Image, error) {
	if !counter.Valid() {
		return nil, invalid("counter", "is unknown")
	}
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Increment(ctx, id, counter, s.now())
	if err != nil {
		return nil, storeErr("increment "+string(counter), err)
	}
	return img, nil
}

// DownloadURL counts a download and returns where the bytes can be fetched:
// a presigned URL for blobs in the object store, the stored URL otherwise.
func (s *ImageService) DownloadURL(ctx context.Context, rawID string) (string, *Image, error) {
	img, err := s.Increment(ctx, rawID, CounterDownloads)
	if err != nil {
		return "", nil, err
	}
	if key, ok := s.storedKey(img); ok {
		signed, err := s.objects.PresignedURL(ctx, key)
		if err != nil {
			return "", nil, err
		}
		return signed, img, nil
	}
	if img.DownloadURL == "" {
		return img.ImageURL, img, nil
	}
	return img.DownloadURL, img, nil
}

// Upload carries the bytes of an uploaded file plus its metadata. ImageURL,
// Size and Format of Meta are filled in from the upload.
type Upload struct {
	Filename string
	Data     []byte
	Meta     ImageInput
}

// Upload stores the bytes in the object store, then the metadata record.
// The blob is removed again when the record cannot be stored.
func (s *ImageService) Upload(ctx context.Context, up Upload) (*Image, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("%w: object storage", ErrUnavailable)
	}
	if len(up.Data) == 0 {
		return nil, invalid("image", "is required")
	}
	mtype := mimetype.Detect(up.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, invalid("image", fmt.Sprintf("must be an image, got %s", mtype.String()))
	}

	key := uuid.NewString() + mtype.Extension()
	meta := up.Meta
	meta.ImageURL = s.objects.URL(key)
	meta.DownloadURL = ""
	size := int64(len(up.Data))
	meta.Size = &size
	meta.Format = strings.TrimPrefix(mtype.Extension(), ".")
	if strings.TrimSpace(meta.ImageName) == "" {
		meta.ImageName = strings.TrimSuffix(filepath.Base(up.Filename), filepath.Ext(up.Filename))
	}
	if meta.Resolution == nil {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data)); err == nil {
			meta.Resolution = &Resolution{Width: cfg.Width, Height: cfg.Height}
		} else {
			return nil, invalid("resolution", fmt.Sprintf("can not be read from %s files, send width and height", mtype.String()))
		}
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.objects.Upload(ctx, key, bytes.NewReader(up.Data), size, mtype.String()); err != nil {
		return nil, err
	}
	img, err := s.CreateOne(ctx, meta)
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			orphanedObjects.Inc()
			s.log.WithError(delErr).WithField("key", key).Warn("rollback of uploaded object failed")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"id": img.ID.Hex(), "key": key, "size": size}).Info("image uploaded")
	return img, nil
}

func (s *ImageService) storedKey(img *Image) (string, bool) {
	if s.objects == nil {
		return "", false
	}
	if key, ok := s.objects.KeyFromURL(img.ImageURL); ok {
		return key, true
	}
	return s.objects.KeyFromURL(img.DownloadURL)
}

func (s *ImageService) emptyResult(images []Image, format string, args ...any) ([]Image, error) {
	if len(images) == 0 && s.policy == EmptyAsNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return images, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidID) {
		return err
	}
	return storageErr(op, err)
}
