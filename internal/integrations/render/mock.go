package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const mockPrefix = "mock"

// Elapsed-time boundaries of the simulated job.
const (
	mockQueuedFor    = 5 * time.Second
	mockRenderingFor = 15 * time.Second
	mockSavingFor    = 20 * time.Second
)

// MockClient fabricates render ids that embed their creation time and
// derives the status from the time elapsed since.  It keeps no state, so
// any process can answer for any id.
type MockClient struct {
	// BaseURL prefixes the placeholder video and thumbnail URLs.
	BaseURL string
	Now     func() time.Time
}

// NewMockClient returns a MockClient whose placeholder assets live under baseURL.
func NewMockClient(baseURL string) *MockClient {
	return &MockClient{BaseURL: strings.TrimRight(baseURL, "/"), Now: time.Now}
}

func (m *MockClient) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Submit returns a new id of the form mock-<unixMillis>-<uuid>.
func (m *MockClient) Submit(_ context.Context, _ Job) (string, error) {
	return fmt.Sprintf("%s-%d-%s", mockPrefix, m.now().UnixMilli(), uuid.NewString()), nil
}

// Status buckets the time since the id was issued: queued below 5s,
// rendering below 15s, saving below 20s, done afterwards.
func (m *MockClient) Status(_ context.Context, renderID string) (Status, error) {
	issued, err := ParseMockID(renderID)
	if err != nil {
		return Status{}, err
	}
	st := Status{ID: renderID, Label: MockLabel(m.now().Sub(issued))}
	if st.Label == LabelDone {
		st.URL = m.BaseURL + "/mock-renders/" + renderID + ".mp4"
		st.ThumbnailURL = m.BaseURL + "/mock-renders/" + renderID + ".jpg"
		st.Duration = mockSavingFor.Seconds()
	}
	return st, nil
}

// IsMockID reports whether id was produced by MockClient.
func IsMockID(id string) bool {
	return strings.HasPrefix(id, mockPrefix+"-")
}

// ParseMockID extracts the issue time embedded in a mock id.
func ParseMockID(id string) (time.Time, error) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 || parts[0] != mockPrefix {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRenderID, id)
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRenderID, id)
	}
	return time.UnixMilli(ms), nil
}

// MockLabel maps elapsed time to a provider label.  Negative values, as
// produced by clock skew between hosts, count as queued.
func MockLabel(elapsed time.Duration) string {
	switch {
	case elapsed < mockQueuedFor:
		return LabelQueued
	case elapsed < mockRenderingFor:
		return LabelRendering
	case elapsed < mockSavingFor:
		return LabelSaving
	default:
		return LabelDone
	}
}
