package shell

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/querydesk/internal/ui/features"
)

func setupTestHandlers(t *testing.T) (*Handlers, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	return NewHandlers(fixture.Env), fixture
}

func TestHome_RedirectsToGenerate(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := f.Do(h.Home, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/generate", rec.Header().Get("Location"))
}

func TestLoginPage(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := f.Do(h.LoginPage, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signed-out")
}

func TestSelectProject(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := f.Do(h.SelectProject, features.SignalsRequest(t, http.MethodPost, "/project", ProjectSignals{Project: "beta"}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="shell-status"`)
	assert.Contains(t, body, "Project: beta")
	assert.NotContains(t, body, "Project ID:")
}

func TestSelectProject_Unknown(t *testing.T) {
	h, f := setupTestHandlers(t)

	rec := f.Do(h.SelectProject, features.SignalsRequest(t, http.MethodPost, "/project", ProjectSignals{Project: "gamma"}))

	assert.Contains(t, rec.Body.String(), "unknown project")
	assert.False(t, f.HasSession(), "nothing is saved")
}

func TestUpdates_PushesStatusOnNotify(t *testing.T) {
	h, f := setupTestHandlers(t)
	f.Do(h.SelectProject, features.SignalsRequest(t, http.MethodPost, "/project", ProjectSignals{Project: "beta"}))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/updates", nil).WithContext(ctx)
	for _, c := range f.Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.Updates(rec, req)
		close(done)
	}()

	// The stream subscribes asynchronously, so ping for a while.
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		f.Notifier.Broadcast()
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	assert.Contains(t, rec.Body.String(), "Project: beta")
}
