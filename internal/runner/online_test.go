package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-classifier/internal/core/garment"
	"garment-classifier/internal/core/images"
	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
)

type fakeEncoder struct {
	corrupt map[types.ImageRef]bool
}

func (e *fakeEncoder) Encode(ref types.ImageRef) (types.EncodedImage, error) {
	if e.corrupt[ref] {
		return types.EncodedImage{}, fmt.Errorf("%w: %s", images.ErrUnreadableImage, ref)
	}
	return types.EncodedImage{Ref: ref, Base64: "eA=="}, nil
}

type fakeClassifier struct {
	calls atomic.Int32
	slow  types.ImageRef
	fail  types.ImageRef
}

func (c *fakeClassifier) Classify(ctx context.Context, img types.EncodedImage) types.Result {
	c.calls.Add(1)
	if img.Ref == c.slow {
		time.Sleep(20 * time.Millisecond)
	}
	if img.Ref == c.fail {
		return types.Failed(img.Ref, types.FailureRateLimited, errors.New("429"))
	}
	return types.Succeeded(img.Ref, garment.Analysis{
		Color: garment.ColorBlack, Trend: garment.TrendFormal, Category: garment.CategoryMens, Price: garment.PricePremium,
	})
}

func TestOnlineRunner(t *testing.T) {
	refs := []types.ImageRef{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	encoder := &fakeEncoder{corrupt: map[types.ImageRef]bool{"c.jpg": true}}
	classifier := &fakeClassifier{slow: "a.jpg", fail: "d.jpg"}
	recorder := metrics.NewRecorder()

	results, err := NewOnlineRunner(encoder, classifier, 2, recorder).WithProgress(io.Discard).Run(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, results, len(refs))

	sort.Slice(results, func(i, j int) bool { return results[i].Ref < results[j].Ref })

	for i, res := range results {
		assert.Equal(t, refs[i], res.Ref)
	}
	assert.True(t, results[0].Ok())
	assert.True(t, results[1].Ok())
	assert.Equal(t, types.FailureUnreadableImage, results[2].Failure.Kind)
	assert.Equal(t, types.FailureRateLimited, results[3].Failure.Kind)
	assert.True(t, results[4].Ok())

	// the corrupt image never reaches the classifier
	assert.Equal(t, int32(4), classifier.calls.Load())
}

func TestOnlineRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier := &fakeClassifier{}
	recorder := metrics.NewRecorder()
	results, err := NewOnlineRunner(&fakeEncoder{}, classifier, 4, recorder).WithProgress(io.Discard).Run(ctx, []types.ImageRef{"a.jpg", "b.jpg"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), classifier.calls.Load())

	// nothing was classified, so no outcome is recorded
	series, err := testutil.GatherAndCount(recorder.Registry(), "garment_classifications_total")
	require.NoError(t, err)
	assert.Zero(t, series)
}
