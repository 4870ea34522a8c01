package application

import (
	"slices"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/example/music-school-scheduler/internal/scheduler"
)

const defaultPreviewTTL = 30 * time.Second

// previewCache memoizes conflict previews for identical requests. Every
// committed mutation flushes it, so entries never outlive the state they
// were computed from.
type previewCache struct {
	entries *gocache.Cache
}

func newPreviewCache(ttl time.Duration) *previewCache {
	if ttl <= 0 {
		ttl = defaultPreviewTTL
	}
	return &previewCache{entries: gocache.New(ttl, 2*ttl)}
}

func (c *previewCache) Get(key string) ([]scheduler.Conflict, bool) {
	if c == nil {
		return nil, false
	}
	value, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	conflicts, _ := value.([]scheduler.Conflict)
	return slices.Clone(conflicts), true
}

func (c *previewCache) Store(key string, conflicts []scheduler.Conflict) {
	if c == nil {
		return
	}
	c.entries.SetDefault(key, slices.Clone(conflicts))
}

func (c *previewCache) Invalidate() {
	if c == nil {
		return
	}
	c.entries.Flush()
}

func (c *previewCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.ItemCount()
}

func buildPreviewKey(req LessonRequest) string {
	builder := strings.Builder{}
	builder.WriteString(req.TeacherID)
	builder.WriteString("|")
	builder.WriteString(strings.Join(req.StudentIDs, ","))
	builder.WriteString("|")
	builder.WriteString(req.RoomID)
	builder.WriteString("|")
	builder.WriteString(req.Start.UTC().Format(time.RFC3339Nano))
	builder.WriteString("|")
	builder.WriteString(strconv.Itoa(req.DurationMinutes))
	return builder.String()
}
