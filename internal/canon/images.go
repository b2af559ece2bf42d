package canon

import (
	"fmt"
	"sort"
	"strings"
)

type Image struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	IsPrimary    bool   `json:"is_primary"`
	DisplayOrder int    `json:"display_order"`
}

// URLResolver builds a public URL for a stored filename belonging to a record.
type URLResolver interface {
	PublicURL(recordID, filename string) string
}

var imagePaths = []string{"media.photos.images", "images", "photos.images", "media.images", "imageFiles"}

// imageSource returns the first non-empty candidate array and its path.
func imageSource(details map[string]any) (string, []any) {
	for _, p := range imagePaths {
		if arr := LookupSlice(details, p); len(arr) > 0 {
			return p, arr
		}
	}
	return "", nil
}

// ExtractImages normalizes whichever image array the payload carries. The
// result has one entry per source entry and at most one primary.
func ExtractImages(doc Document, urls URLResolver) []Image {
	_, arr := imageSource(doc.Details)
	if len(arr) == 0 {
		return []Image{}
	}
	out := make([]Image, 0, len(arr))
	for i, entry := range arr {
		out = append(out, imageFromEntry(doc.ID, i, entry, urls))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].DisplayOrder < out[b].DisplayOrder })
	seen := false
	for i := range out {
		if out[i].IsPrimary {
			if seen {
				out[i].IsPrimary = false
			}
			seen = true
		}
	}
	return out
}

func imageFromEntry(recordID string, idx int, entry any, urls URLResolver) Image {
	img := Image{ID: fmt.Sprintf("img-%d", idx), DisplayOrder: idx}
	switch e := entry.(type) {
	case string:
		img.URL = resolveURL(recordID, e, urls)
	case map[string]any:
		if id := firstString(e, "id", "imageId", "image_id"); id != "" {
			img.ID = id
		}
		if u := firstString(e, "url", "publicUrl", "public_url", "src", "href"); u != "" {
			img.URL = u
		} else if name := firstString(e, "fileName", "file_name", "filename", "name", "path"); name != "" {
			img.URL = resolveURL(recordID, name, urls)
		}
		img.IsPrimary = truthy(e["isPrimary"]) || truthy(e["is_primary"]) || truthy(e["primary"])
		for _, k := range []string{"displayOrder", "display_order", "order", "position"} {
			if v, ok := e[k]; ok {
				img.DisplayOrder = int(Amount(v, float64(idx)))
				break
			}
		}
	}
	return img
}

func resolveURL(recordID, ref string, urls URLResolver) string {
	if ref == "" || strings.Contains(ref, "://") || urls == nil {
		return ref
	}
	return urls.PublicURL(recordID, ref)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true") || b == "1"
	case float64:
		return b != 0
	}
	return false
}

// PrimaryImage returns the flagged image, else the first one.
func PrimaryImage(images []Image) (Image, bool) {
	if len(images) == 0 {
		return Image{}, false
	}
	for _, img := range images {
		if img.IsPrimary {
			return img, true
		}
	}
	return images[0], true
}

// MarkPrimary sets the primary flag on the entry with imageID inside the
// selected source array and clears it everywhere else. String entries are
// promoted to objects so the flag can be stored. Returns false when no entry
// matches.
func MarkPrimary(details map[string]any, imageID string) bool {
	path, arr := imageSource(details)
	if path == "" {
		return false
	}
	target := -1
	for i, entry := range arr {
		id := fmt.Sprintf("img-%d", i)
		if m, ok := entry.(map[string]any); ok {
			if s := firstString(m, "id", "imageId", "image_id"); s != "" {
				id = s
			}
		}
		if id == imageID {
			target = i
			break
		}
	}
	if target < 0 {
		return false
	}
	for i, entry := range arr {
		m, ok := entry.(map[string]any)
		if !ok {
			s, _ := entry.(string)
			m = map[string]any{"id": fmt.Sprintf("img-%d", i), "url": s}
			if !strings.Contains(s, "://") {
				m = map[string]any{"id": fmt.Sprintf("img-%d", i), "fileName": s}
			}
			arr[i] = m
		}
		delete(m, "is_primary")
		delete(m, "primary")
		m["isPrimary"] = i == target
	}
	return true
}

// AppendImage adds an uploaded image to the payload's existing image array,
// or to a new v2 media array when the payload has none yet.
func AppendImage(details map[string]any, id, url string) map[string]any {
	if details == nil {
		details = map[string]any{}
	}
	entry := func(n int) map[string]any {
		return map[string]any{
			"id":           id,
			"url":          url,
			"isPrimary":    n == 0,
			"displayOrder": float64(n),
		}
	}
	if p, arr := imageSource(details); p != "" {
		if parent, key := parentOf(details, p); parent != nil {
			parent[key] = append(arr, entry(len(arr)))
			return details
		}
	}
	media, _ := details["media"].(map[string]any)
	if media == nil {
		media = map[string]any{}
		details["media"] = media
	}
	photos, _ := media["photos"].(map[string]any)
	if photos == nil {
		photos = map[string]any{}
		media["photos"] = photos
	}
	arr, _ := photos["images"].([]any)
	photos["images"] = append(arr, entry(len(arr)))
	return details
}

// parentOf returns the map holding the last segment of a dotted path.
func parentOf(details map[string]any, p string) (map[string]any, string) {
	i := strings.LastIndex(p, ".")
	if i < 0 {
		return details, p
	}
	return LookupMap(details, p[:i]), p[i+1:]
}
