package render

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"stylist/internal/entity"

	"google.golang.org/genai"
)

func TestMapTaskStatus(t *testing.T) {
	tests := map[string]TaskStatus{
		"QUEUED":      TaskStatusPending,
		"in_progress": TaskStatusRunning,
		"Completed":   TaskStatusSucceeded,
		"error":       TaskStatusFailed,
		"canceled":    TaskStatusCancelled,
		"mystery":     TaskStatusRunning,
	}
	for in, want := range tests {
		if got := MapTaskStatus(in); got != want {
			t.Fatalf("MapTaskStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestStubProviderLifecycle(t *testing.T) {
	stub := NewStubProvider()
	ctx := context.Background()

	if _, err := stub.RequestRender(ctx, RenderRequest{}); err == nil {
		t.Fatal("expected error without a source photo")
	}

	sub, err := stub.RequestRender(ctx, RenderRequest{SourcePhoto: "https://img/me.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ProviderJobID == "" || sub.Done() {
		t.Fatalf("expected an acknowledged, unfinished task: %+v", sub)
	}

	polled, err := stub.Poll(ctx, sub.ProviderJobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polled.Status != TaskStatusSucceeded || len(polled.Outputs) != 1 {
		t.Fatalf("unexpected poll result %+v", polled)
	}
	if n := stub.pending(); n != 0 {
		t.Fatalf("finished task should be dropped, %d still tracked", n)
	}

	unknown, err := stub.Poll(ctx, "nope")
	if err != nil || unknown.Status != TaskStatusFailed {
		t.Fatalf("unknown task should fail, got %+v / %v", unknown, err)
	}
}

func TestStubProviderConcurrentRequests(t *testing.T) {
	stub := NewStubProvider()
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := stub.RequestRender(context.Background(), RenderRequest{SourcePhoto: "x"})
			if err == nil {
				ids <- sub.ProviderJobID
			}
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate provider job id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 ids, got %d", len(seen))
	}
	for id := range seen {
		if _, err := stub.Poll(context.Background(), id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := stub.pending(); n != 0 {
		t.Fatalf("expected every polled task to be dropped, %d left", n)
	}
}

func TestStubParseWebhook(t *testing.T) {
	sub, err := NewStubProvider().ParseWebhook([]byte(`{"provider_job_id":"abc","status":"failed","error":"gpu on fire"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ProviderJobID != "abc" || sub.Status != TaskStatusFailed || sub.Error != "gpu on fire" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if _, err := NewStubProvider().ParseWebhook([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestFalSubmitPollAndWebhook(t *testing.T) {
	var (
		mu        sync.Mutex
		submitted map[string]any
		polls     int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/fal-ai/nano-banana/edit":
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &submitted)
			if r.URL.Query().Get("fal_webhook") != "https://api.example.com/hook" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"request_id":"req-1","status":"IN_QUEUE"}`))
		case r.URL.Path == "/fal-ai/nano-banana/requests/req-1/status":
			polls++
			if polls == 1 {
				_, _ = w.Write([]byte(`{"status":"IN_PROGRESS"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
		case r.URL.Path == "/fal-ai/nano-banana/requests/req-1":
			_, _ = w.Write([]byte(`{"images":[{"url":"https://cdn.fal/out.png"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fal, err := NewFalAI("secret", "", srv.Client(), nil, WithFalBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	sub, err := fal.RequestRender(ctx, RenderRequest{
		SourcePhoto:   "https://img/me.png",
		SubjectImages: []string{"https://img/dress.png"},
		Prompt:        "try it on",
		WebhookURL:    "https://api.example.com/hook",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.ProviderJobID != "req-1" || sub.Status != TaskStatusPending {
		t.Fatalf("unexpected submission %+v", sub)
	}
	mu.Lock()
	urls, _ := submitted["image_urls"].([]any)
	mu.Unlock()
	if len(urls) != 2 || urls[0] != "https://img/me.png" {
		t.Fatalf("source photo must be sent first, got %v", urls)
	}

	running, err := fal.Poll(ctx, "req-1")
	if err != nil || running.Status != TaskStatusRunning {
		t.Fatalf("expected running, got %+v / %v", running, err)
	}
	done, err := fal.Poll(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != TaskStatusSucceeded || len(done.Outputs) != 1 || done.Outputs[0] != "https://cdn.fal/out.png" {
		t.Fatalf("unexpected completion %+v", done)
	}

	hook, err := fal.ParseWebhook([]byte(`{"request_id":"req-1","status":"OK","payload":{"images":["https://cdn.fal/a.png"]}}`))
	if err != nil || hook.Status != TaskStatusSucceeded || hook.Outputs[0] != "https://cdn.fal/a.png" {
		t.Fatalf("unexpected webhook result %+v / %v", hook, err)
	}
	failed, err := fal.ParseWebhook([]byte(`{"request_id":"req-1","status":"ERROR","error":"nsfw"}`))
	if err != nil || failed.Status != TaskStatusFailed || failed.Error != "nsfw" {
		t.Fatalf("unexpected webhook failure %+v / %v", failed, err)
	}
}

func TestFalRejectsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	fal, err := NewFalAI("secret", "fal-ai/custom", srv.Client(), nil, WithFalBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = fal.RequestRender(context.Background(), RenderRequest{SourcePhoto: "https://img/me.png", Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestInlineImages(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
			}},
		}},
	}
	images, err := inlineImages(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images) != 1 || images[0] != "data:image/png;base64,AQID" {
		t.Fatalf("unexpected images %v", images)
	}

	blocked := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{SafetyRatings: []*genai.SafetyRating{{Blocked: true}}}},
	}
	if _, err := inlineImages(blocked); err == nil {
		t.Fatal("expected error for blocked content")
	}
}

func TestBuildPromptAndInputs(t *testing.T) {
	if p := BuildPrompt(entity.JobKindItemTryOn, ""); !strings.Contains(p, "garment") {
		t.Fatalf("unexpected try-on prompt %q", p)
	}
	if p := BuildPrompt(entity.JobKindLookImage, "Oxford Shirt and Derby Shoes"); !strings.HasSuffix(p, "Outfit: Oxford Shirt and Derby Shoes.") {
		t.Fatalf("unexpected look prompt %q", p)
	}

	inputs := collectInputs(RenderRequest{SourcePhoto: " me ", SubjectImages: []string{"", "a", " b "}})
	if strings.Join(inputs, ",") != "me,a,b" {
		t.Fatalf("unexpected inputs %v", inputs)
	}
}

func TestMediaPreparerKeepsRemoteURLs(t *testing.T) {
	m, err := NewMediaPreparer(nil).PrepareImage(context.Background(), "https://img/a.png", MediaFormatURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Reference() != "https://img/a.png" {
		t.Fatalf("unexpected reference %q", m.Reference())
	}

	inline, err := NewMediaPreparer(nil).PrepareImage(context.Background(), placeholderPNG, MediaFormatURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inline.MimeType != "image/png" || !strings.HasPrefix(inline.Reference(), "data:image/png;base64,") {
		t.Fatalf("unexpected inline media %+v", inline)
	}
}
