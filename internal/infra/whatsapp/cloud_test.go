package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("component", "test")
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screenshot.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0o644))
	return path
}

func TestCloudClient_SendUploadsThenMessages(t *testing.T) {
	var uploadSeen, messageSeen bool
	var messageBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/1555000/media":
			uploadSeen = true
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whatsapp", r.FormValue("messaging_product"))

			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "screenshot.png", hdr.Filename)

			json.NewEncoder(w).Encode(map[string]string{"id": "media-42"})

		case "/1555000/messages":
			messageSeen = true
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&messageBody))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"messages": []map[string]string{{"id": "wamid.1"}},
			})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "1555000", "token-123", quietLog())
	err := c.Send(context.Background(), "919900112233", writeTestImage(t), "Cause List\n11-03-2026")
	require.NoError(t, err)

	assert.True(t, uploadSeen)
	assert.True(t, messageSeen)
	assert.Equal(t, "whatsapp", messageBody["messaging_product"])
	assert.Equal(t, "individual", messageBody["recipient_type"])
	assert.Equal(t, "919900112233", messageBody["to"])
	assert.Equal(t, "image", messageBody["type"])

	img := messageBody["image"].(map[string]interface{})
	assert.Equal(t, "media-42", img["id"])
	assert.Equal(t, "Cause List\n11-03-2026", img["caption"])
}

func TestCloudClient_UploadFailureAbortsSend(t *testing.T) {
	var messageCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1555000/messages" {
			messageCalls++
		}
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid OAuth access token"}}`)
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "1555000", "bad", quietLog())
	err := c.Send(context.Background(), "919900112233", writeTestImage(t), "c")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token",
		"API error message is surfaced in the failure reason")
	assert.Equal(t, 0, messageCalls, "message step never runs after a failed upload")
}

func TestCloudClient_MessageErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1555000/media" {
			json.NewEncoder(w).Encode(map[string]string{"id": "media-42"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "1555000", "token", quietLog())
	err := c.Send(context.Background(), "919900112233", writeTestImage(t), "c")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestCloudClient_UploadWithoutMediaID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "1555000", "token", quietLog())
	_, err := c.UploadMedia(context.Background(), writeTestImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no media id")
}

func TestCloudClient_SendText(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1555000/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.2"}},
		})
	}))
	defer srv.Close()

	c := NewCloudClient(srv.URL, "1555000", "token", quietLog())
	require.NoError(t, c.SendText(context.Background(), "919900112233", "2 sent, 1 failed"))

	assert.Equal(t, "text", body["type"])
	txt := body["text"].(map[string]interface{})
	assert.Equal(t, "2 sent, 1 failed", txt["body"])
	assert.Equal(t, false, txt["preview_url"])
}

func TestCloudClient_OpenAndCloseAreNoOps(t *testing.T) {
	c := NewCloudClient("", "id", "token", quietLog())
	assert.NoError(t, c.Open(context.Background()))
	assert.NoError(t, c.Close())
	assert.Equal(t, DefaultGraphAPIURL, c.baseURL)
}
