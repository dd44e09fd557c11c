package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	errs []error
	tags []map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestWithTagsMerges(t *testing.T) {
	rec := &recordMonitor{}
	m := WithTags(rec, map[string]string{"component": "gateway", "mode": "shadow"})
	m.CaptureException(errors.New("boom"), map[string]string{"mode": "enforced"})

	assert.Len(t, rec.errs, 1)
	assert.Equal(t, map[string]string{"component": "gateway", "mode": "enforced"}, rec.tags[0])
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, NopMonitor{}, OrNop(nil))
	rec := &recordMonitor{}
	assert.Same(t, rec, OrNop(rec))
}

func TestGlobalInit(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	Init(nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, rec.errs, 1)
}
