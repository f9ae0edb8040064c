package tistorybatch_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tistorybatch "github.com/temirov/tistory-batch/cmd/tistory-batch"
)

const (
	testAPIKeyEnvironmentVariable = "TISTORY_BATCH_TEST_API_KEY"
	chatCompletionPath            = "/chat/completions"
	modelsPath                    = "/models"
	responseContentTypeJSON       = "application/json"
	testConfigurationTemplate     = `common:
  api:
    endpoint: %s
    api_key_env: ` + testAPIKeyEnvironmentVariable + `
    credentials_path: %s
  logging:
    level: error
generation:
  model: gpt-4o-mini
  category: review
batch:
  delay_ms: 0
`
)

type mockProvider struct {
	server *httptest.Server

	mu      sync.Mutex
	prompts []string
	fail    map[string]bool
}

// newMockProvider answers every completion with the same post, except for
// the failing topics, which get a 500.
func newMockProvider(t *testing.T, failingTopics ...string) *mockProvider {
	t.Helper()
	provider := &mockProvider{fail: map[string]bool{}}
	for _, topic := range failingTopics {
		provider.fail[topic] = true
	}
	provider.server = httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, httpRequest *http.Request) {
		responseWriter.Header().Set("Content-Type", responseContentTypeJSON)
		switch httpRequest.URL.Path {
		case modelsPath:
			_, _ = responseWriter.Write([]byte(`{"data":[{"id":"whisper-1"},{"id":"gpt-4-turbo"},{"id":"gpt-4o"}]}`))
		case chatCompletionPath:
			var payload struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if decodeErr := json.NewDecoder(httpRequest.Body).Decode(&payload); decodeErr != nil {
				t.Errorf("decode request: %v", decodeErr)
			}
			userMessage := payload.Messages[len(payload.Messages)-1].Content
			provider.mu.Lock()
			provider.prompts = append(provider.prompts, userMessage)
			provider.mu.Unlock()
			for topic := range provider.fail {
				if strings.Contains(userMessage, "Title: "+topic+"\n") {
					responseWriter.WriteHeader(http.StatusInternalServerError)
					_, _ = responseWriter.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
					return
				}
			}
			_ = json.NewEncoder(responseWriter).Encode(map[string]any{
				"choices": []map[string]any{{
					"message":       map[string]any{"role": "assistant", "content": "# 헤드라인\n본문 **강조** 문장"},
					"finish_reason": "stop",
				}},
			})
		default:
			responseWriter.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(provider.server.Close)
	return provider
}

func (provider *mockProvider) promptCount() int {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	return len(provider.prompts)
}

type cliFixture struct {
	directory       string
	configPath      string
	credentialsPath string
}

func newCLIFixture(t *testing.T, endpoint string) cliFixture {
	t.Helper()
	directory := t.TempDir()
	fixture := cliFixture{
		directory:       directory,
		configPath:      filepath.Join(directory, "config.yaml"),
		credentialsPath: filepath.Join(directory, "credentials.json"),
	}
	document := fmt.Sprintf(testConfigurationTemplate, endpoint, fixture.credentialsPath)
	if err := os.WriteFile(fixture.configPath, []byte(document), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fixture
}

func (fixture cliFixture) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	rootCommand := tistorybatch.NewRootCommand()
	rootCommand.SetArgs(append(args, "--config", fixture.configPath))
	rootCommand.SetIn(strings.NewReader(stdin))
	var commandOutput bytes.Buffer
	rootCommand.SetOut(&commandOutput)
	rootCommand.SetErr(&commandOutput)
	executionErr := rootCommand.Execute()
	return commandOutput.String(), executionErr
}

func TestRunCommandGeneratesAndExports(t *testing.T) {
	provider := newMockProvider(t, "부산 여행")
	fixture := newCLIFixture(t, provider.server.URL)
	t.Setenv(testAPIKeyEnvironmentVariable, "sk-test")

	topicsPath := filepath.Join(fixture.directory, "topics.txt")
	if err := os.WriteFile(topicsPath, []byte("부산 여행\r\n\r\n  제주 카페  \n"), 0o600); err != nil {
		t.Fatalf("write topics: %v", err)
	}
	csvPath := filepath.Join(fixture.directory, "out", "results.csv")
	postsDirectory := filepath.Join(fixture.directory, "posts")
	metricsPath := filepath.Join(fixture.directory, "batch.prom")

	output, err := fixture.execute(t, "",
		"run", "서울 맛집",
		"--topics-file", topicsPath,
		"--tone", "전문적",
		"--keywords", "맛집, 여행",
		"--export", "csv="+csvPath,
		"--export", "posts="+postsDirectory,
		"--export", "digest-txt",
		"--export-dir", fixture.directory,
		"--metrics-textfile", metricsPath,
	)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, output)
	}
	if provider.promptCount() != 3 {
		t.Fatalf("expected 3 completion requests, got %d", provider.promptCount())
	}
	for _, fragment := range []string{
		"[1/3] 서울 맛집",
		"[2/3] 부산 여행",
		"[3/3] 제주 카페",
		"failed: API error: 500",
		"completed: 3/3 processed, 2 succeeded, 1 failed",
		"exported csv: " + csvPath,
		"exported digest-txt: ",
	} {
		if !strings.Contains(output, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, output)
		}
	}

	provider.mu.Lock()
	firstPrompt := provider.prompts[0]
	provider.mu.Unlock()
	for _, fragment := range []string{"Title: 서울 맛집", "Content type: review", "Tone: professional", "Main keywords: 맛집, 여행"} {
		if !strings.Contains(firstPrompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, firstPrompt)
		}
	}

	csvData, readErr := os.ReadFile(csvPath)
	if readErr != nil {
		t.Fatalf("read csv: %v", readErr)
	}
	rows, parseErr := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(csvData), "\ufeff"))).ReadAll()
	if parseErr != nil || len(rows) != 4 {
		t.Fatalf("expected header and three rows, got %d rows (%v):\n%s", len(rows), parseErr, csvData)
	}
	if rows[1][0] != "서울 맛집" || rows[1][6] != "헤드라인\n본문 강조 문장" || rows[2][1] != "failure" {
		t.Fatalf("unexpected csv rows %q", rows)
	}
	postFiles, globErr := filepath.Glob(filepath.Join(postsDirectory, "*.html"))
	if globErr != nil || len(postFiles) != 2 {
		t.Fatalf("expected two post fragments, got %v %v", postFiles, globErr)
	}
	digests, _ := filepath.Glob(filepath.Join(fixture.directory, "tistory_digest_*.txt"))
	if len(digests) != 1 {
		t.Fatalf("expected one digest in the export directory, got %v", digests)
	}
	metricsData, metricsErr := os.ReadFile(metricsPath)
	if metricsErr != nil || !strings.Contains(string(metricsData), `tistory_batch_generation_total{cause="provider",status="failure"} 1`) {
		t.Fatalf("unexpected metrics textfile %v:\n%s", metricsErr, metricsData)
	}
}

func TestRunCommandReadsTopicsFromStandardInputAndHonorsLimit(t *testing.T) {
	provider := newMockProvider(t)
	fixture := newCLIFixture(t, provider.server.URL)
	t.Setenv(testAPIKeyEnvironmentVariable, "sk-test")

	output, err := fixture.execute(t, "첫째\n둘째\n셋째\n", "run", "--topics-file", "-", "--limit", "2")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, output)
	}
	if provider.promptCount() != 2 || !strings.Contains(output, "completed: 2/2 processed") {
		t.Fatalf("expected two processed topics, got %d requests:\n%s", provider.promptCount(), output)
	}
}

func TestRunCommandFailures(t *testing.T) {
	testCases := []struct {
		name          string
		apiKey        string
		failAll       bool
		args          []string
		expectedError string
	}{
		{name: "missing api key", args: []string{"run", "주제"}, expectedError: "missing API key: set " + testAPIKeyEnvironmentVariable},
		{name: "no topics", apiKey: "sk-test", args: []string{"run", "  "}, expectedError: "no topics"},
		{name: "unknown tone", apiKey: "sk-test", args: []string{"run", "주제", "--tone", "angry"}, expectedError: "unknown tone"},
		{name: "unknown export format", apiKey: "sk-test", args: []string{"run", "주제", "--export", "pdf=out.pdf"}, expectedError: "invalid --export"},
		{name: "every topic failed", apiKey: "sk-test", failAll: true, args: []string{"run", "주제"}, expectedError: "all 1 topics failed"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			var failing []string
			if testCase.failAll {
				failing = append(failing, "주제")
			}
			provider := newMockProvider(t, failing...)
			fixture := newCLIFixture(t, provider.server.URL)
			t.Setenv(testAPIKeyEnvironmentVariable, testCase.apiKey)

			output, err := fixture.execute(t, "", testCase.args...)
			if err == nil || !strings.Contains(err.Error(), testCase.expectedError) {
				t.Fatalf("expected error containing %q, got %v\n%s", testCase.expectedError, err, output)
			}
		})
	}
}
