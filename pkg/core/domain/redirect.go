package domain

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// MaxGroupLength bounds the group identifier.
	MaxGroupLength = 32
	// MaxSlugLength bounds the slug identifier.
	MaxSlugLength = 128

	// PartitionAll is the global index partition.
	PartitionAll = "ALL"

	userPartitionPrefix = "USER:"
)

var (
	groupPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	slugPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Redirect maps a (group, slug) pair to a target URL
type Redirect struct {
	Group     string    `json:"group"`
	Slug      string    `json:"slug"`
	Target    string    `json:"target"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Key returns the composite lookup key of the redirect.
func (r *Redirect) Key() string {
	return CompositeKey(r.Group, r.Slug)
}

// CreateInput holds the admin supplied fields of a new redirect
type CreateInput struct {
	Group  string `json:"group"`
	Slug   string `json:"slug"`
	Target string `json:"target"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Target *string `json:"target,omitempty"`
	Title  *string `json:"title,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Group  *string `json:"group,omitempty"`
	Slug   *string `json:"slug,omitempty"`
}

// IsEmpty reports whether the patch touches no field.
func (p Patch) IsEmpty() bool {
	return p.Target == nil && p.Title == nil && p.Notes == nil && p.Group == nil && p.Slug == nil
}

// RedirectView is a record together with its current click count
type RedirectView struct {
	Redirect *Redirect `json:"redirect"`
	Clicks   int64     `json:"clicks"`
}

// UpdateResult describes the outcome of an update. OldKey and NewKey are
// only set when the update changed the composite key.
type UpdateResult struct {
	Redirect *Redirect `json:"redirect"`
	Renamed  bool      `json:"renamed"`
	OldKey   string    `json:"old_key,omitempty"`
	NewKey   string    `json:"new_key,omitempty"`
}

// Page is one slice of an index partition
type Page struct {
	Keys       []string
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// ListItem is a single entry of a listing. Redirect is nil when the stored
// value could not be decoded.
type ListItem struct {
	Key       string    `json:"key"`
	Redirect  *Redirect `json:"redirect"`
	Clicks    int64     `json:"clicks"`
	Corrupted bool      `json:"corrupted,omitempty"`
}

// ListResult is a page of redirects plus pagination metadata
type ListResult struct {
	Items      []ListItem `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
}

// CompositeKey joins group and slug into the store key.
func CompositeKey(group, slug string) string {
	return group + "/" + slug
}

// SplitKey is the inverse of CompositeKey.
func SplitKey(key string) (group, slug string, ok bool) {
	group, slug, ok = strings.Cut(key, "/")
	return group, slug, ok && group != "" && slug != ""
}

// UserPartition names the index partition of a creator.
func UserPartition(createdBy string) string {
	return userPartitionPrefix + createdBy
}

// PartitionOwner returns the creator of a USER partition.
func PartitionOwner(partition string) (string, bool) {
	return strings.CutPrefix(partition, userPartitionPrefix)
}

// ValidGroup checks the admin side group rule.
func ValidGroup(group string) bool {
	return groupPattern.MatchString(group)
}

// ValidSlug checks the admin side slug rule.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// reservedKeys are the two-segment paths served by fixed routes ahead of
// /{group}/{slug}. Keep in sync with the router.
var reservedKeys = map[string]bool{
	"api/v1":      true,
	"auth/logout": true,
}

// Reserved reports whether group/slug is shadowed by a fixed route and so
// could never be resolved.
func Reserved(group, slug string) bool {
	return reservedKeys[CompositeKey(group, slug)]
}

// ReservedKeys lists the shadowed composite keys.
func ReservedKeys() []string {
	keys := make([]string, 0, len(reservedKeys))
	for k := range reservedKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidTarget reports whether target is an absolute URL.
func ValidTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
