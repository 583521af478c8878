package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CreateInput describes a new resource.
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Owner       string
	Data        string
	Attributes  []Attribute
	Permissions []Permission
}

// Patch updates selected fields; nil fields are left untouched.
type Patch struct {
	Data        *string
	Name        *string
	Description *string
	Permissions []Permission
	// Attributes are upserted by name.
	Attributes []Attribute
}

// Query selects one page of a category search.
type Query struct {
	Category string
	Text     string
	Start    int
	Limit    int
}

// Service owns resource semantics on top of a Backend.
type Service struct {
	backend Backend
	// mu serializes read-modify-write sequences against the backend.
	mu  sync.Mutex
	now func() time.Time
}

// NewService wraps backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

// Backend exposes the wrapped storage, mostly for shutdown.
func (s *Service) Backend() Backend {
	return s.backend
}

// ParseID converts a path id into a store id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", ErrInvalidRequest, raw)
	}
	return id, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (int64, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, fmt.Errorf("%w: missing name", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Category) == "" {
		return 0, fmt.Errorf("%w: missing category", ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.backend.NextID(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	res := Resource{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.ToUpper(strings.TrimSpace(in.Category)),
		Owner:       in.Owner,
		Data:        in.Data,
		Attributes:  append([]Attribute(nil), in.Attributes...),
		Permissions: append([]Permission(nil), in.Permissions...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.backend.Put(ctx, res); err != nil {
		return 0, err
	}
	log.Debug().Int64("id", id).Str("category", res.Category).Msg("store.Service.Create")
	return id, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Resource, error) {
	return s.backend.Get(ctx, id)
}

// Data returns the raw stored payload.
func (s *Service) Data(ctx context.Context, id int64) (string, error) {
	res, err := s.backend.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return res.Data, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if patch.Data != nil {
		res.Data = *patch.Data
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != "" {
		res.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		res.Description = *patch.Description
	}
	if patch.Permissions != nil {
		res.Permissions = append([]Permission(nil), patch.Permissions...)
	}
	for _, attr := range patch.Attributes {
		if strings.TrimSpace(attr.Name) == "" {
			return fmt.Errorf("%w: missing attribute name", ErrInvalidRequest)
		}
		res.Attributes = upsertAttribute(res.Attributes, attr)
	}
	res.UpdatedAt = s.now()
	return s.backend.Put(ctx, res)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	log.Debug().Int64("id", id).Msg("store.Service.Delete")
	return nil
}

func (s *Service) Attributes(ctx context.Context, id int64) ([]Attribute, error) {
	res, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := append([]Attribute(nil), res.Attributes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetAttribute upserts one attribute by name.
func (s *Service) SetAttribute(ctx context.Context, id int64, attr Attribute) error {
	name := strings.TrimSpace(attr.Name)
	if name == "" {
		return fmt.Errorf("%w: missing attribute name", ErrInvalidRequest)
	}
	attr.Name = name
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	res.Attributes = upsertAttribute(res.Attributes, attr)
	res.UpdatedAt = s.now()
	return s.backend.Put(ctx, res)
}

func upsertAttribute(attrs []Attribute, attr Attribute) []Attribute {
	attr.Name = strings.TrimSpace(attr.Name)
	for i := range attrs {
		if attrs[i].Name == attr.Name {
			attrs[i] = attr
			return attrs
		}
	}
	return append(attrs, attr)
}

// Search returns the total match count and one page of matches ordered by id.
func (s *Service) Search(ctx context.Context, q Query) (int, []Resource, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return 0, nil, err
	}
	category := strings.ToUpper(strings.TrimSpace(q.Category))
	text := strings.ToLower(strings.Trim(strings.TrimSpace(q.Text), "*"))
	matches := make([]Resource, 0, len(all))
	for _, res := range all {
		if category != "" && res.Category != category {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(res.Name), text) &&
			!strings.Contains(strings.ToLower(res.Description), text) {
			continue
		}
		matches = append(matches, res)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	start := q.Start
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return total, matches[start:end], nil
}

// DecodeDataURI splits a "data:" uri into its media type and payload. Values
// that are not data uris are returned as plain text.
func DecodeDataURI(raw string) (string, []byte, error) {
	if !strings.HasPrefix(raw, "data:") {
		return "text/plain; charset=utf-8", []byte(raw), nil
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data uri", ErrInvalidRequest)
	}
	mediaType := header
	isBase64 := false
	if strings.HasSuffix(header, ";base64") {
		isBase64 = true
		mediaType = strings.TrimSuffix(header, ";base64")
	}
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		out, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: data uri payload: %v", ErrInvalidRequest, err)
		}
		return mediaType, out, nil
	}
	out, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: data uri payload: %v", ErrInvalidRequest, err)
	}
	return mediaType, []byte(out), nil
}
