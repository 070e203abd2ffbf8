package resolve

import (
	"errors"
	"testing"

	"github.com/nevindra/conclave"
)

func TestProviderKnownNames(t *testing.T) {
	for _, name := range []string{"openai", "groq", "deepseek", "together", "mistral", "ollama"} {
		p, err := Provider(Config{Provider: name, APIKey: "k"})
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if p.Name() != name {
			t.Errorf("%s: Name() = %q", name, p.Name())
		}
	}
}

func TestProviderUnknownName(t *testing.T) {
	_, err := Provider(Config{Provider: "acme-llm"})
	var cerr *conclave.ErrConfig
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestDefaultBaseURLs(t *testing.T) {
	cases := map[string]string{
		"openai":   "https://api.openai.com/v1",
		"groq":     "https://api.groq.com/openai/v1",
		"deepseek": "https://api.deepseek.com/v1",
		"together": "https://api.together.xyz/v1",
		"mistral":  "https://api.mistral.ai/v1",
		"ollama":   "http://localhost:11434/v1",
	}
	for name, want := range cases {
		if got := defaultBaseURL(name); got != want {
			t.Errorf("%s: base url = %q, want %q", name, got, want)
		}
	}
	if got := defaultBaseURL("other"); got != "" {
		t.Errorf("unknown provider base url = %q, want empty", got)
	}
}
