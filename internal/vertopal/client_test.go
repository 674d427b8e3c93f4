package vertopal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spiffcs/morph/internal/convert"
)

func writeInputFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Credentials{
		Endpoint: endpoint,
		AppID:    "app-123",
		Token:    "secret-token",
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// decodeTaskPayload parses the form-encoded "data" field API requests carry.
func decodeTaskPayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	if err := r.ParseForm(); err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.PostFormValue("data")), &payload); err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestConvertWorkflow(t *testing.T) {
	input := writeInputFile(t, "report.md", "# quarterly report\n")
	output := filepath.Join(filepath.Dir(input), "report.pdf")

	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/file", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		if header.Filename != "report.md" {
			t.Errorf("uploaded filename = %q", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "# quarterly report\n" {
			t.Errorf("uploaded content = %q", content)
		}
		fmt.Fprint(w, `{"result":{"output":{"connector":"up-1"}}}`)
	})
	mux.HandleFunc("/convert/file", func(w http.ResponseWriter, r *http.Request) {
		payload := decodeTaskPayload(t, r)
		if payload["connector"] != "up-1" {
			t.Errorf("convert connector = %v", payload["connector"])
		}
		params, _ := payload["parameters"].(map[string]any)
		if params["output"] != "pdf" {
			t.Errorf("output format = %v", params["output"])
		}
		if payload["mode"] != "async" {
			t.Errorf("mode = %v", payload["mode"])
		}
		fmt.Fprint(w, `{"entity":{"id":"conv-1","status":"running"}}`)
	})
	mux.HandleFunc("/convert/status", func(w http.ResponseWriter, r *http.Request) {
		payload := decodeTaskPayload(t, r)
		if payload["connector"] != "conv-1" {
			t.Errorf("status connector = %v", payload["connector"])
		}
		polls++
		if polls == 1 {
			fmt.Fprint(w, `{"result":{"output":{"entity":{"status":"running"}}}}`)
			return
		}
		fmt.Fprint(w, `{"result":{"output":{"entity":{"status":"completed"},"result":{"output":{"status":"successful"}}}}}`)
	})
	mux.HandleFunc("/download/url", func(w http.ResponseWriter, r *http.Request) {
		payload := decodeTaskPayload(t, r)
		if payload["connector"] != "conv-1" {
			t.Errorf("download connector = %v", payload["connector"])
		}
		fmt.Fprint(w, `{"result":{"output":{"connector":"dl-1","name":"report.pdf"}}}`)
	})
	mux.HandleFunc("/download/url/get", func(w http.ResponseWriter, r *http.Request) {
		payload := decodeTaskPayload(t, r)
		if payload["connector"] != "dl-1" {
			t.Errorf("content connector = %v", payload["connector"])
		}
		fmt.Fprint(w, "%PDF-converted")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	job, err := client.Submit(convert.IOSpec{
		InputPath:    input,
		OutputPath:   output,
		OutputFormat: "pdf",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	status, err := job.Poll()
	if err != nil {
		t.Fatalf("first Poll: %v", err)
	}
	if status.Done {
		t.Fatal("first poll must report a running conversion")
	}
	status, err = job.Poll()
	if err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	if !status.Done || !status.OK {
		t.Fatalf("second poll = %+v, want done and successful", status)
	}

	if err := job.Download(); err != nil {
		t.Fatalf("Download: %v", err)
	}
	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "%PDF-converted" {
		t.Errorf("downloaded content = %q", content)
	}
}

func TestSubmitMissingInputFile(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	_, err := client.Submit(convert.IOSpec{
		InputPath:    filepath.Join(t.TempDir(), "absent.pdf"),
		OutputFormat: "docx",
	})

	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err = %v, want *fs.PathError", err)
	}
}

func TestInputFormatForwarded(t *testing.T) {
	input := writeInputFile(t, "notes.txt", "notes")

	var gotInput any
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/file", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"output":{"connector":"up-1"}}}`)
	})
	mux.HandleFunc("/convert/file", func(w http.ResponseWriter, r *http.Request) {
		params, _ := decodeTaskPayload(t, r)["parameters"].(map[string]any)
		gotInput = params["input"]
		fmt.Fprint(w, `{"entity":{"id":"conv-1","status":"running"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Submit(convert.IOSpec{
		InputPath:    input,
		OutputFormat: "md-gfm",
		InputFormat:  "txt",
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotInput != "txt" {
		t.Errorf("input format = %v, want txt", gotInput)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		want func(t *testing.T, err error)
	}{
		{
			name: "result error payload",
			body: `{"result":{"error":{"code":"INVALID_OUTPUT_FORMAT","message":"Output format is not valid"}}}`,
			want: func(t *testing.T, err error) {
				var remoteErr *convert.RemoteError
				if !errors.As(err, &remoteErr) {
					t.Fatalf("err = %v, want *convert.RemoteError", err)
				}
				if remoteErr.Code != "INVALID_OUTPUT_FORMAT" {
					t.Errorf("code = %q", remoteErr.Code)
				}
			},
		},
		{
			name: "top level error payload",
			body: `{"code":"INVALID_CREDENTIAL","message":"App-ID or token is wrong"}`,
			want: func(t *testing.T, err error) {
				var remoteErr *convert.RemoteError
				if !errors.As(err, &remoteErr) {
					t.Fatalf("err = %v, want *convert.RemoteError", err)
				}
				if remoteErr.Code != "INVALID_CREDENTIAL" {
					t.Errorf("code = %q", remoteErr.Code)
				}
			},
		},
		{
			name: "input not found code",
			body: `{"result":{"error":{"code":"FILE_NOT_EXISTS","message":"file not exists"}}}`,
			want: func(t *testing.T, err error) {
				if !errors.Is(err, convert.ErrInputNotFound) {
					t.Fatalf("err = %v, want ErrInputNotFound", err)
				}
			},
		},
		{
			name: "invalid JSON",
			body: `<html>gateway timeout</html>`,
			want: func(t *testing.T, err error) {
				var netErr *convert.NetworkError
				if !errors.As(err, &netErr) {
					t.Fatalf("err = %v, want *convert.NetworkError", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInputFile(t, "doc.odt", "x")
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Submit(convert.IOSpec{InputPath: input, OutputFormat: "pdf"})
			if err == nil {
				t.Fatal("Submit succeeded, want error")
			}
			tt.want(t, err)
		})
	}
}

func TestConversionNotAccepted(t *testing.T) {
	input := writeInputFile(t, "doc.odt", "x")
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/file", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"output":{"connector":"up-1"}}}`)
	})
	mux.HandleFunc("/convert/file", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"entity":{"id":"conv-1","status":"failed"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(convert.IOSpec{InputPath: input, OutputFormat: "pdf"})

	var remoteErr *convert.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *convert.RemoteError", err)
	}
}

func TestCloseUnblocksInFlightRequests(t *testing.T) {
	input := writeInputFile(t, "doc.odt", "x")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	go func() {
		time.Sleep(50 * time.Millisecond)
		client.Close()
	}()

	start := time.Now()
	_, err := client.Submit(convert.IOSpec{InputPath: input, OutputFormat: "pdf"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Submit blocked %v after Close", elapsed)
	}

	var netErr *convert.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *convert.NetworkError", err)
	}
	// Close again to confirm idempotency.
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDownloadRemovesPartialFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.pdf")
	mux := http.NewServeMux()
	mux.HandleFunc("/download/url", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"output":{"connector":"dl-1","name":"out.pdf"}}}`)
	})
	mux.HandleFunc("/download/url/get", func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are sent so the client's copy fails.
		w.Header().Set("Content-Length", "1024")
		w.Write([]byte("partial"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	j := &job{client: client, connector: "conv-1", outputPath: output}

	err := j.Download()
	var netErr *convert.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *convert.NetworkError", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("partial output file left behind: %v", statErr)
	}
}
