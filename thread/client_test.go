package thread_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liminal "github.com/liminal-ai-security/liminal-sdk-go"
	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/testutil"
	"github.com/liminal-ai-security/liminal-sdk-go/thread"
)

const (
	threadsPath = "/api/v1/threads"
	historyPath = "/api/v1/sdk/get_context_history"
)

func newClient(t *testing.T, mock *testutil.MockServer) *liminal.Client {
	t.Helper()
	client, err := liminal.New(liminal.Config{ServerURL: mock.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func expectedThread() thread.Thread {
	created := time.Date(2024, 3, 18, 23, 22, 17, 976000000, time.UTC)
	return thread.Thread{
		ID:              167,
		ModelInstanceID: 5,
		UserID:          2,
		Name:            "My thread",
		Source:          "sdk",
		Type:            thread.TypeDefault,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestCreate(t *testing.T) {
	mock := testutil.NewMockServer(t)
	mock.On(http.MethodPost, threadsPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertJSONBody(t, r, map[string]any{"name": "My thread", "modelInstanceId": 5})
		testutil.JSONResponse(t, w, http.StatusCreated, map[string]any{"data": testutil.FixtureThread()})
	})
	client := newClient(t, mock)

	got, err := client.Threads.Create(context.Background(), 5, "My thread")
	require.NoError(t, err)
	if diff := cmp.Diff(expectedThread(), *got); diff != "" {
		t.Errorf("Create() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetAvailable(t *testing.T) {
	mock := testutil.NewMockServer(t)
	mock.OnData(http.MethodGet, threadsPath, testutil.FixtureThreads())
	client := newClient(t, mock)

	threads, err := client.Threads.GetAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, 167, threads[0].ID)
	assert.Equal(t, thread.TypeTrainer, threads[1].Type)
}

func TestGetByID(t *testing.T) {
	mock := testutil.NewMockServer(t)
	mock.OnJSON(http.MethodGet, threadsPath+"/167", http.StatusOK, testutil.FixtureThread())
	client := newClient(t, mock)

	got, err := client.Threads.GetByID(context.Background(), 167)
	require.NoError(t, err)
	if diff := cmp.Diff(expectedThread(), *got); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	mock := testutil.NewMockServer(t)
	client := newClient(t, mock)

	_, err := client.Threads.GetByID(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, sdkerrors.IsNotFound(err))
}

func TestGetDeidentifiedContextHistory(t *testing.T) {
	mock := testutil.NewMockServer(t)
	mock.On(http.MethodPost, historyPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertJSONBody(t, r, map[string]any{"threadId": 167})
		testutil.JSONResponse(t, w, http.StatusOK, map[string]any{"data": testutil.FixtureContextHistory()})
	})
	client := newClient(t, mock)

	history, err := client.Threads.GetDeidentifiedContextHistory(context.Background(), 167)
	require.NoError(t, err)
	want := []thread.DeidentifiedToken{
		{DeidText: "PERSON_0", HashText: "8a3f"},
		{DeidText: "EMAIL_ADDRESS_0", HashText: "19bc"},
	}
	if diff := cmp.Diff(want, history); diff != "" {
		t.Errorf("GetDeidentifiedContextHistory() mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomRoutes(t *testing.T) {
	mock := testutil.NewMockServer(t)
	mock.OnData(http.MethodGet, "/v2/threads", testutil.FixtureThreads())

	client, err := liminal.New(liminal.Config{
		ServerURL: mock.URL,
		Routes:    liminal.Routes{Thread: thread.Routes{Threads: "/v2/threads"}},
	})
	require.NoError(t, err)
	defer client.Close()

	threads, err := client.Threads.GetAvailable(context.Background())
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}
